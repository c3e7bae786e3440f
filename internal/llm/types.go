// Package llm consumes an OpenAI-compatible chat-completions endpoint and
// exposes the token stream as typed deltas.
//
// The raw wire protocol is used directly instead of an SDK because the
// orchestration layer needs fields most SDKs hide: the DashScope/DeepSeek
// reasoning_content side channel, the extra_body request extension, and the
// individual tool-call fragments a streaming pass spreads across chunks.
package llm

import "encoding/json"

// Message roles on the upstream wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the upstream context window.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a completed tool invocation request: a name plus a JSON
// argument string.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// MarshalJSON renders the call in chat-completions wire shape.
func (c ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireToolCall{
		ID:   c.ID,
		Type: "function",
		Function: wireFunctionCall{
			Name:      c.Name,
			Arguments: c.Arguments,
		},
	})
}

// UnmarshalJSON parses the chat-completions wire shape.
func (c *ToolCall) UnmarshalJSON(data []byte) error {
	var w wireToolCall
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ID = w.ID
	c.Name = w.Function.Name
	c.Arguments = w.Function.Arguments
	return nil
}

// Tool is a tool declaration advertised to the provider.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ExtraBody carries DashScope request extensions.
type ExtraBody struct {
	EnableThinking bool `json:"enable_thinking"`
	EnableSearch   bool `json:"enable_search"`
}

// ChatRequest describes one upstream call, streaming or not.
type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []Tool
	Extra    *ExtraBody
}

// DeltaKind tags one incremental fragment of model output.
type DeltaKind int

const (
	// DeltaReasoning is a fragment of the pre-answer thinking channel.
	DeltaReasoning DeltaKind = iota
	// DeltaAnswer is a fragment of the final answer text.
	DeltaAnswer
	// DeltaToolCall is a fragment of a tool invocation request.
	DeltaToolCall
	// DeltaEnd marks the end of the stream.
	DeltaEnd
)

// ToolCallFragment is one partial piece of a tool call. Any field may be
// empty; fragments for one call are concatenated by the accumulator.
type ToolCallFragment struct {
	Index int
	ID    string
	Name  string
	Args  string
}

// Delta is a tagged variant over the stream channels.
type Delta struct {
	Kind     DeltaKind
	Text     string           // reasoning or answer fragment
	ToolCall ToolCallFragment // set when Kind == DeltaToolCall
}
