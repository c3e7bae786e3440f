package store

// Message is one entry in a conversation log.
// JSON field names match the persisted file and the client protocol.
type Message struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	IsUser    bool   `json:"isUser"`
	Reasoning string `json:"reasoning,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
}

// Conversation is a durable ordered message log with a display title.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// Summary is the list-view projection of a conversation.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// HistoryItem is one paired user/assistant turn, as served by the history
// endpoint. AI content may be an error reply from a failed turn.
type HistoryItem struct {
	User      string `json:"user"`
	AI        string `json:"ai"`
	Reasoning string `json:"reasoning,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TimestampLayout is the wall-clock format stored on messages.
const TimestampLayout = "2006-01-02 15:04:05"

// TitleTimeLayout is the format embedded in default conversation titles.
const TitleTimeLayout = "2006-01-02 15:04"
