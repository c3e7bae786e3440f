package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/neuassist/neuassist/internal/llm"
	"github.com/neuassist/neuassist/internal/store"
)

const (
	titleTimeout  = 10 * time.Second
	titleMaxRunes = 15

	titleSystemPrompt = "你是一个标题生成助手，请根据对话内容生成简短的标题，由两个或三个词语组成，能够显而易见对话的主题"
	titlePromptHeader = "请根据以下对话内容，生成一个简短的标题（不超过15个字）：\n\n"
)

// maybeRetitle regenerates the conversation title once the log holds at
// least four messages. Failures leave the existing title untouched.
func (s *Service) maybeRetitle(ctx context.Context, conversationID string) {
	msgs, err := s.store.Messages(conversationID)
	if err != nil || len(msgs) < 4 {
		return
	}

	title := s.summarizeTitle(ctx, msgs)
	if title == "" {
		return
	}
	if err := s.store.SetTitle(conversationID, title); err != nil {
		s.logger.Warn("updating title failed", "conversation_id", conversationID, "error", err)
	}
}

// summarizeTitle condenses the conversation into a short title with one
// bounded non-streaming call. It returns the empty string on any failure.
func (s *Service) summarizeTitle(ctx context.Context, msgs []store.Message) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	var prompt strings.Builder
	prompt.WriteString(titlePromptHeader)
	for _, m := range msgs {
		role := "AI"
		if m.IsUser {
			role = "用户"
		}
		fmt.Fprintf(&prompt, "%s: %s\n", role, m.Content)
	}

	text, err := s.upstream.Complete(ctx, llm.ChatRequest{
		Model: s.defaultModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: titleSystemPrompt},
			{Role: llm.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		s.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title := strings.Trim(strings.TrimSpace(text), `"'“”‘’`)
	if utf8.RuneCountInString(title) > titleMaxRunes {
		runes := []rune(title)
		title = string(runes[:titleMaxRunes]) + "..."
	}
	return title
}
