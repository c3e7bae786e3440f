// Package chat drives one conversational turn: it streams model output to
// the caller, detects and dispatches tool calls between streaming passes,
// and persists the finished turn.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neuassist/neuassist/internal/llm"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
)

// Upstream is the model provider as the orchestrator consumes it.
type Upstream interface {
	Stream(ctx context.Context, req llm.ChatRequest) iter.Seq2[llm.Delta, error]
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Dispatcher executes tool calls and advertises their declarations.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, argsJSON string) (bool, string)
	Declarations() []llm.Tool
}

// Request is one validated user turn.
type Request struct {
	ConversationID string
	Message        string
	ModelName      string
	DeepThinking   bool
	WebSearch      bool
}

// Config configures a Service.
type Config struct {
	Upstream   Upstream
	Dispatcher Dispatcher
	Store      *store.Store
	Logger     log.Logger

	SystemPrompt   string
	AnalysisPrompt string
	DefaultModel   string
	ThinkingModels []string
	ToolModels     []string
}

// Service orchestrates turns. One Stream call is one independent run; runs
// share only the conversation store.
type Service struct {
	upstream   Upstream
	dispatcher Dispatcher
	store      *store.Store
	logger     log.Logger
	tracer     trace.Tracer

	systemPrompt   string
	analysisPrompt string
	defaultModel   string
	thinkingModels []string
	toolModels     []string
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Upstream == nil {
		return nil, errors.New("upstream is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.DefaultModel == "" {
		return nil, errors.New("default model is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		upstream:       cfg.Upstream,
		dispatcher:     cfg.Dispatcher,
		store:          cfg.Store,
		logger:         logger,
		tracer:         otel.Tracer("neuassist/chat"),
		systemPrompt:   cfg.SystemPrompt,
		analysisPrompt: cfg.AnalysisPrompt,
		defaultModel:   cfg.DefaultModel,
		thinkingModels: cfg.ThinkingModels,
		toolModels:     cfg.ToolModels,
	}, nil
}

func (s *Service) isThinkingModel(model string) bool {
	return slices.Contains(s.thinkingModels, model)
}

func (s *Service) isToolModel(model string) bool {
	return slices.Contains(s.toolModels, model)
}

// turnState holds the per-turn scalars. isAnswering is turn-level: once any
// answer fragment was streamed, later reasoning fragments are dropped and
// answer_start is never repeated, even across passes.
type turnState struct {
	isAnswering bool
	content     strings.Builder
	reasoning   strings.Builder
	acc         llm.Accumulator
}

// Stream runs one turn and yields outward events in protocol order. The
// sequence ends with a done event, or with an error event when the turn
// fails. The caller stopping iteration cancels the run at the next yield.
func (s *Service) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		model := req.ModelName
		if model == "" {
			model = s.defaultModel
		}
		thinking := s.isThinkingModel(model)

		ctx, span := s.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
			attribute.String("chat.conversation_id", req.ConversationID),
			attribute.String("chat.model", model),
		))
		defer span.End()

		// The user message is durable before any network interaction. A
		// flush failure is soft: the in-memory append stands, so the turn
		// proceeds and only the durability of this write is lost.
		userMsg := store.Message{
			Content:   req.Message,
			Timestamp: time.Now().Format(store.TimestampLayout),
			IsUser:    true,
		}
		if err := s.store.Append(req.ConversationID, userMsg); err != nil {
			if !errors.Is(err, store.ErrPersist) {
				s.failTurn(req.ConversationID, err, yield)
				return
			}
			s.logger.Warn("persisting user message failed", "error", err)
		}

		msgs := s.buildContext(req.ConversationID)
		state := &turnState{}

		extra := &llm.ExtraBody{
			EnableThinking: thinking && req.DeepThinking,
			EnableSearch:   req.WebSearch,
		}
		useTools := s.dispatcher != nil && s.isToolModel(model)
		var tools []llm.Tool
		if useTools {
			tools = s.dispatcher.Declarations()
		}

		stopped, err := s.runPass(ctx, "chat.pass1", llm.ChatRequest{
			Model:    model,
			Messages: msgs,
			Tools:    tools,
			Extra:    extra,
		}, thinking, useTools, state, yield)
		if stopped {
			return
		}
		if err != nil {
			s.failTurn(req.ConversationID, err, yield)
			return
		}

		if call, ok := state.acc.Finish(); ok {
			msgs, stopped = s.toolPhase(ctx, msgs, call, state, yield)
			if stopped {
				return
			}
			if msgs != nil {
				// Pass 2 replaces pass 1's running content as the final answer.
				state.content.Reset()
				stopped, err = s.runPass(ctx, "chat.pass2", llm.ChatRequest{
					Model:    model,
					Messages: msgs,
					Tools:    tools,
					Extra:    extra,
				}, thinking, false, state, yield)
				if stopped {
					return
				}
				if err != nil {
					s.failTurn(req.ConversationID, err, yield)
					return
				}
			}
		}

		if state.content.Len() > 0 {
			assistant := store.Message{
				Content:   state.content.String(),
				Timestamp: time.Now().Format(store.TimestampLayout),
				IsUser:    false,
			}
			if thinking {
				assistant.Reasoning = state.reasoning.String()
			}
			if err := s.store.Append(req.ConversationID, assistant); err != nil {
				s.logger.Warn("persisting assistant message failed", "error", err)
			}
		}

		s.maybeRetitle(ctx, req.ConversationID)

		conv, err := s.store.Get(req.ConversationID)
		if err != nil {
			s.failTurn(req.ConversationID, err, yield)
			return
		}
		yield(Event{Type: EventDone, Messages: conv.Messages, Title: conv.Title})
	}
}

// buildContext assembles the upstream context window: system prompt plus the
// stored history without error turns. The new user message is already in the
// store at this point.
func (s *Service) buildContext(conversationID string) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt}}
	stored, err := s.store.Messages(conversationID)
	if err != nil {
		return msgs
	}
	for _, m := range stored {
		if m.IsError {
			continue
		}
		role := llm.RoleAssistant
		if m.IsUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}

// runPass drives one streaming exchange. feedTools controls whether tool-call
// fragments reach the accumulator; pass 2 ignores them so a turn dispatches
// at most once. The first return value reports that the consumer stopped.
func (s *Service) runPass(ctx context.Context, name string, req llm.ChatRequest, thinking, feedTools bool, state *turnState, yield func(Event) bool) (bool, error) {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	for delta, err := range s.upstream.Stream(ctx, req) {
		if err != nil {
			return false, err
		}
		switch delta.Kind {
		case llm.DeltaReasoning:
			if !thinking || state.isAnswering {
				continue
			}
			state.reasoning.WriteString(delta.Text)
			if !yield(Event{Type: EventReasoning, Content: delta.Text}) {
				return true, nil
			}
		case llm.DeltaAnswer:
			if !state.isAnswering {
				state.isAnswering = true
				if !yield(Event{Type: EventAnswerStart}) {
					return true, nil
				}
			}
			state.content.WriteString(delta.Text)
			if !yield(Event{Type: EventAnswer, Content: delta.Text}) {
				return true, nil
			}
		case llm.DeltaToolCall:
			if feedTools {
				state.acc.Feed(delta.ToolCall)
			}
		case llm.DeltaEnd:
		}
	}
	return false, nil
}

// toolPhase dispatches the accumulated call and extends the context for pass
// 2. A malformed argument buffer abandons the phase: the returned context is
// nil and the turn falls through to persistence with pass 1's content.
func (s *Service) toolPhase(ctx context.Context, msgs []llm.Message, call llm.ToolCall, state *turnState, yield func(Event) bool) ([]llm.Message, bool) {
	if !json.Valid([]byte(call.Arguments)) {
		s.logger.Warn("tool call has malformed arguments, skipping dispatch",
			"tool", call.Name, "arguments", call.Arguments)
		return nil, false
	}

	ctx, span := s.tracer.Start(ctx, "chat.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
	))
	ok, payload := s.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
	span.End()
	if !ok {
		s.logger.Warn("tool dispatch failed", "tool", call.Name, "payload", payload)
	}

	if !yield(Event{Type: EventToolResult, Content: payload}) {
		return nil, true
	}

	// Upstream-context-only messages; the persisted log never sees them.
	msgs = append(msgs,
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
		llm.Message{Role: llm.RoleTool, Content: payload, ToolCallID: call.ID},
		llm.Message{Role: llm.RoleSystem, Content: s.analysisPrompt},
	)
	return msgs, false
}

// failTurn records the failure in the log and emits the terminal error
// event. No done event follows.
func (s *Service) failTurn(conversationID string, err error, yield func(Event) bool) {
	errText := fmt.Sprintf("AI服务错误: %v", err)
	s.logger.Error("turn failed", "conversation_id", conversationID, "error", err)

	errMsg := store.Message{
		Content:   errText,
		Timestamp: time.Now().Format(store.TimestampLayout),
		IsUser:    false,
		IsError:   true,
	}
	if appendErr := s.store.Append(conversationID, errMsg); appendErr != nil {
		s.logger.Warn("persisting error message failed", "error", appendErr)
	}

	yield(Event{Type: EventError, Err: errText})
}
