// Package summary derives short display titles for conversations, calling
// the language model only when the opening message is too long to use
// directly.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/journal-go/internal/models"
)

const (
	// titleMaxLen caps generated titles; anything longer is truncated with
	// an ellipsis.
	titleMaxLen = 60

	// shortMessageLimit is the length at or below which the first user
	// message is used verbatim as the title.
	shortMessageLimit = 60

	// fallbackLen is how much of the first user message survives when the
	// model cannot produce a title.
	fallbackLen = 50

	ellipsis = "..."
)

// Placeholder titles for conversations the summarizer cannot describe.
const (
	TitleEmptyConversation = "Empty conversation"
	TitleNoUserMessage     = "No user message found"
	TitleUntitled          = "Untitled conversation"
)

const titlePromptFormat = `Create a concise, meaningful title (3-8 words) for a journaling conversation that begins with this message:

"%s"

The title should capture the main theme or emotion. Examples:
- "Processing work stress and anxiety"
- "Reflecting on relationship challenges"
- "Celebrating personal achievements"
- "Exploring career transition fears"

Respond with ONLY the title, no quotes or additional text.`

// Generator produces a completion for a single prompt. *llm.Model
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer generates conversation titles. Failures never escape: every
// path degrades to a deterministic fallback title.
type Summarizer struct {
	model Generator
	log   *slog.Logger
}

// New creates a Summarizer backed by the given model.
func New(model Generator, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{model: model, log: log}
}

// GenerateTitle derives a title from the conversation's messages. Short
// first messages are used verbatim; longer ones go through the model with
// a deterministic truncation fallback when the model fails or returns
// nothing. Safe to call from both synchronous and background callers.
func (s *Summarizer) GenerateTitle(ctx context.Context, messages []models.Message) string {
	if len(messages) == 0 {
		return TitleEmptyConversation
	}

	var first *models.Message
	for i := range messages {
		if messages[i].Role == models.RoleUser {
			first = &messages[i]
			break
		}
	}
	if first == nil {
		return TitleNoUserMessage
	}

	if len([]rune(first.Content)) <= shortMessageLimit {
		return strings.TrimSpace(first.Content)
	}

	reply, err := s.model.Generate(ctx, fmt.Sprintf(titlePromptFormat, first.Content))
	if err != nil {
		s.log.Warn("title generation failed, falling back to truncation", "error", err)
		return fallbackTitle(first.Content)
	}

	title := strings.TrimSpace(reply)
	title = strings.TrimSpace(strings.Trim(title, `"'`))
	if title == "" {
		s.log.Warn("title generation returned empty reply, falling back to truncation")
		return fallbackTitle(first.Content)
	}

	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen-len(ellipsis)]) + ellipsis
	}
	return title
}

// fallbackTitle is the deterministic degradation path: the first
// fallbackLen characters of the source message, with an ellipsis when the
// message was longer.
func fallbackTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= fallbackLen {
		title := strings.TrimSpace(content)
		if title == "" {
			return TitleUntitled
		}
		return title
	}
	return strings.TrimSpace(string(runes[:fallbackLen])) + ellipsis
}
