// Package tools holds the tool registry the chat orchestrator and the MCP
// server dispatch against.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/neuassist/neuassist/internal/llm"
)

// AnalyzeInput is the shared argument shape of the academic analysis tools.
type AnalyzeInput struct {
	UseCache bool `json:"use_cache" jsonschema_description:"是否使用本地缓存的教务数据，为 false 时重新登录教务系统抓取"`
}

// Handler executes one tool invocation and returns its text payload.
type Handler func(ctx context.Context, input AnalyzeInput) (string, error)

// Entry is one registered tool.
type Entry struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     Handler

	params json.RawMessage
}

// Registry maps tool names to handlers. It is populated at startup and
// read-only afterwards.
type Registry struct {
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a tool. Registering a duplicate name or a nil handler is a
// programming error and fails.
func (r *Registry) Register(name, description string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %s: already registered", name)
	}

	schema, err := jsonschema.For[AnalyzeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}
	params, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", name, err)
	}

	r.entries[name] = &Entry{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler:     handler,
		params:      params,
	}
	return nil
}

// Declarations returns the registered tools in upstream wire shape, sorted by
// name for a stable context window.
func (r *Registry) Declarations() []llm.Tool {
	decls := make([]llm.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		decls = append(decls, llm.Tool{
			Name:        e.Name,
			Description: e.Description,
			Parameters:  e.params,
		})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// All returns the registered entries sorted by name.
func (r *Registry) All() []*Entry {
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Dispatch runs the named tool with a raw JSON argument string. The second
// return value is always a user-visible payload: the tool output on success,
// a diagnostic string otherwise. The boolean reports success.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (bool, string) {
	entry, ok := r.entries[name]
	if !ok {
		return false, "unknown tool: " + name
	}

	var input AnalyzeInput
	if err := json.Unmarshal([]byte(argsJSON), &input); err != nil {
		return false, fmt.Sprintf("invalid arguments for %s: %v", name, err)
	}

	payload, err := entry.Handler(ctx, input)
	if err != nil {
		return false, err.Error()
	}
	return true, payload
}
