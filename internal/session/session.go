// Package session orchestrates one live chat: it keeps the in-memory turn
// history and session state, pushes both sides of each exchange to the
// store, and mediates between the caller and the language model.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/models"
	"github.com/raphaelgruber/journal-go/internal/prompt"
	"github.com/raphaelgruber/journal-go/internal/store"
)

// firstTitleLen is how much of the first user message becomes the initial
// conversation title.
const firstTitleLen = 50

// Chatter is the model-invocation collaborator. *llm.Model satisfies it.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt string, turns []llm.Turn, tools []llm.Tool) (*llm.Reply, error)
	ContinueWithToolResult(ctx context.Context, systemPrompt string, turns []llm.Turn, call *llm.ToolCall, result string, tools []llm.Tool) (*llm.Reply, error)
}

// Notifier receives best-effort summary-generation requests.
// *summary.Trigger satisfies it.
type Notifier interface {
	Enqueue(conversationID string) bool
}

// Config tunes session behavior.
type Config struct {
	// ModelTimeout bounds one model invocation. Zero disables the bound.
	ModelTimeout time.Duration

	// SummaryAfterMessages is the message count at which title
	// summarization is requested. Zero or negative disables the trigger.
	SummaryAfterMessages int
}

// Session is the live state of one conversation. It is not safe for
// concurrent use; one caller drives a session at a time.
type Session struct {
	store   *store.Store
	model   Chatter
	prompts *prompt.Manager
	trigger Notifier
	log     *slog.Logger
	cfg     Config

	conversationID string
	history        []llm.Turn
	userName       string
	mood           string
	goals          []string
	messageCount   int
	summaryDone    bool
	dirty          bool
}

// New creates a fresh session. The backing conversation is created lazily
// on the first message, not here.
func New(st *store.Store, model Chatter, prompts *prompt.Manager, trigger Notifier, log *slog.Logger, cfg Config, userName string) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		store:    st,
		model:    model,
		prompts:  prompts,
		trigger:  trigger,
		log:      log,
		cfg:      cfg,
		userName: userName,
	}
}

// Resume loads an existing conversation into a new session: its message
// history becomes the turn history and its stored mood/goals seed the
// session state.
func Resume(ctx context.Context, st *store.Store, model Chatter, prompts *prompt.Manager, trigger Notifier, log *slog.Logger, cfg Config, conversationID string) (*Session, error) {
	conv, err := st.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, conversationID)
	}

	messages, err := st.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s := New(st, model, prompts, trigger, log, cfg, "")
	s.conversationID = conv.ID
	s.summaryDone = conv.SummaryGenerated
	s.messageCount = conv.MessageCount
	s.goals = append(s.goals, conv.Goals...)
	if conv.UserName != nil {
		s.userName = *conv.UserName
	}
	if conv.CurrentMood != nil {
		s.mood = *conv.CurrentMood
	}
	for _, m := range messages {
		s.history = append(s.history, llm.Turn{Role: m.Role, Content: m.Content})
	}

	return s, nil
}

// SendMessage runs one full turn exchange: persist the user turn, invoke
// the model with the rendered system prompt and all prior history, persist
// the assistant reply and return it. When the model fails, the error is
// returned and no assistant turn is fabricated; the already persisted user
// turn keeps history intact for a retry.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message must not be empty", store.ErrValidation)
	}

	if err := s.ensureConversation(ctx, text); err != nil {
		return "", err
	}

	if _, err := s.store.AddMessage(ctx, s.conversationID, models.RoleUser, text, nil); err != nil {
		return "", err
	}
	s.messageCount++
	userTurn := llm.Turn{Role: models.RoleUser, Content: text}

	systemPrompt, err := s.prompts.RenderSystemPrompt(prompt.Context{
		UserName:     s.userName,
		Mood:         s.mood,
		Goals:        s.goals,
		MessageCount: len(s.history),
	})
	if err != nil {
		return "", err
	}

	turns := append(append([]llm.Turn{}, s.history...), userTurn)

	callCtx := ctx
	if s.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ModelTimeout)
		defer cancel()
	}

	reply, err := s.model.Chat(callCtx, systemPrompt, turns, sessionTools())
	if err != nil {
		return "", err
	}

	if reply.ToolCall != nil {
		result := s.applyTool(reply.ToolCall)
		reply, err = s.model.ContinueWithToolResult(callCtx, systemPrompt, turns, reply.ToolCall, result, sessionTools())
		if err != nil {
			return "", err
		}
	}

	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty reply", llm.ErrUnavailable)
	}

	if _, err := s.store.AddMessage(ctx, s.conversationID, models.RoleAssistant, content, nil); err != nil {
		return "", err
	}
	s.messageCount++
	s.history = append(s.history, userTurn, llm.Turn{Role: models.RoleAssistant, Content: content})

	s.maybeRequestSummary()

	return content, nil
}

// SetMood updates the session's mood in memory only. The caller persists
// it explicitly via PersistContext.
func (s *Session) SetMood(mood string) {
	s.mood = mood
	s.dirty = true
}

// AddGoal appends a goal to the session state in memory only.
func (s *Session) AddGoal(goal string) {
	s.goals = append(s.goals, goal)
	s.dirty = true
}

// PersistContext pushes the session's mood and goals to the store. It is a
// no-op before the conversation exists or when nothing changed since the
// last persist.
func (s *Session) PersistContext(ctx context.Context) error {
	if s.conversationID == "" || !s.dirty {
		return nil
	}

	upd := store.MetadataUpdate{Goals: &s.goals}
	if s.mood != "" {
		mood := s.mood
		upd.Mood = &mood
	}

	if _, err := s.store.UpdateConversationMetadata(ctx, s.conversationID, upd); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// ConversationID returns the backing conversation's ID, or "" before the
// first message.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Mood returns the session's current mood.
func (s *Session) Mood() string {
	return s.mood
}

// Goals returns the session's goals.
func (s *Session) Goals() []string {
	return s.goals
}

// History returns the in-memory turn history.
func (s *Session) History() []llm.Turn {
	return s.history
}

// ensureConversation lazily creates the backing conversation, titled with
// the truncated first message.
func (s *Session) ensureConversation(ctx context.Context, firstMessage string) error {
	if s.conversationID != "" {
		return nil
	}

	var userName, mood *string
	if s.userName != "" {
		userName = &s.userName
	}
	if s.mood != "" {
		mood = &s.mood
	}

	conv, err := s.store.CreateConversation(ctx, initialTitle(firstMessage), userName, mood, s.goals)
	if err != nil {
		return err
	}
	s.conversationID = conv.ID
	s.log.Debug("conversation started", "conversation_id", conv.ID)
	return nil
}

// maybeRequestSummary enqueues background title generation once the
// conversation is long enough. Best-effort: a dropped request just means
// the next turn retries.
func (s *Session) maybeRequestSummary() {
	if s.trigger == nil || s.summaryDone || s.cfg.SummaryAfterMessages <= 0 {
		return
	}
	if s.messageCount < s.cfg.SummaryAfterMessages {
		return
	}
	if s.trigger.Enqueue(s.conversationID) {
		// The trigger rechecks the stored flag, so marking here only
		// suppresses duplicate requests from this session.
		s.summaryDone = true
	}
}

func initialTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= firstTitleLen {
		return text
	}
	return strings.TrimSpace(string(runes[:firstTitleLen])) + "..."
}
