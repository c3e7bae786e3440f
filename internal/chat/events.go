package chat

import (
	"encoding/json"

	"github.com/neuassist/neuassist/internal/store"
)

// EventType tags one outward stream event.
type EventType string

const (
	EventReasoning   EventType = "reasoning"
	EventAnswerStart EventType = "answer_start"
	EventAnswer      EventType = "answer"
	EventToolResult  EventType = "tool_result"
	EventDone        EventType = "done"
	EventError       EventType = "error"
)

// Event is one unit of the outward streaming protocol. Content carries the
// payload for all types except done, which carries the updated message log
// and the resolved title, and error, which carries the failure text.
type Event struct {
	Type     EventType
	Content  string
	Messages []store.Message
	Title    string
	Err      string
}

// MarshalJSON renders the wire frame for the event type. answer_start keeps
// its empty content field; done never includes content.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventDone:
		messages := e.Messages
		if messages == nil {
			messages = []store.Message{}
		}
		return json.Marshal(struct {
			Type     EventType       `json:"type"`
			Messages []store.Message `json:"messages"`
			Title    string          `json:"title"`
		}{e.Type, messages, e.Title})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Err})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	}
}
