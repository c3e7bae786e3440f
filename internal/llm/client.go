package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/neuassist/neuassist/internal/log"
)

// httpClientTimeout bounds one whole upstream exchange, including a long
// streaming pass.
const httpClientTimeout = 10 * time.Minute

// ErrNoContent indicates a non-streaming completion returned no choices.
var ErrNoContent = errors.New("no content in completion")

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// HTTPClient overrides the default client; nil uses a shared client with
	// a streaming-friendly timeout.
	HTTPClient *http.Client
	Logger     log.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Wire structures for the chat-completions protocol.
type wireChatRequest struct {
	Model    string     `json:"model"`
	Messages []Message  `json:"messages"`
	Tools    []wireTool `json:"tools,omitempty"`
	Stream   bool       `json:"stream,omitempty"`
	Extra    *ExtraBody `json:"extra_body,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type wireToolCall struct {
	Index    int              `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireFunctionCall `json:"function,omitempty"`
}

type wireFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireDelta struct {
	Content          string         `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	ToolCalls        []wireToolCall `json:"tool_calls,omitempty"`
}

type wireChoice struct {
	Index        int        `json:"index"`
	Delta        *wireDelta `json:"delta,omitempty"`
	Message      *wireDelta `json:"message,omitempty"`
	FinishReason string     `json:"finish_reason"`
}

type wireChatResponse struct {
	Choices []wireChoice  `json:"choices"`
	Error   *wireAPIError `json:"error,omitempty"`
}

type wireAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *Client) makeChatRequest(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	wire := wireChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
		Extra:    req.Extra,
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.httpClient.Do(httpReq)
}

// Stream opens one streaming pass and yields typed deltas in arrival order.
// A chunk with no choices is silently skipped. The sequence ends with a
// DeltaEnd, or with a non-nil error when the exchange fails mid-stream.
func (c *Client) Stream(ctx context.Context, req ChatRequest) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		resp, err := c.makeChatRequest(ctx, req, true)
		if err != nil {
			yield(Delta{}, fmt.Errorf("chat request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			yield(Delta{}, fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk wireChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Debug("skipping malformed stream chunk", "error", err)
				continue
			}
			if chunk.Error != nil {
				yield(Delta{}, fmt.Errorf("chat API error: %s", chunk.Error.Message))
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta == nil {
					continue
				}
				if choice.Delta.ReasoningContent != "" {
					if !yield(Delta{Kind: DeltaReasoning, Text: choice.Delta.ReasoningContent}, nil) {
						return
					}
				}
				if choice.Delta.Content != "" {
					if !yield(Delta{Kind: DeltaAnswer, Text: choice.Delta.Content}, nil) {
						return
					}
				}
				for _, call := range choice.Delta.ToolCalls {
					frag := Delta{Kind: DeltaToolCall, ToolCall: ToolCallFragment{
						Index: call.Index,
						ID:    call.ID,
						Name:  call.Function.Name,
						Args:  call.Function.Arguments,
					}}
					if !yield(frag, nil) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Delta{}, fmt.Errorf("streaming: %w", err))
			return
		}

		yield(Delta{Kind: DeltaEnd}, nil)
	}
}

// Complete issues one non-streaming completion and returns the message text.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := c.makeChatRequest(ctx, req, false)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed wireChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing completion: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", ErrNoContent
	}
	return parsed.Choices[0].Message.Content, nil
}
