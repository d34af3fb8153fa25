package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/prompt"
	"github.com/raphaelgruber/journal-go/internal/session"
	"github.com/raphaelgruber/journal-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingChatter holds the call open until its context is canceled.
type blockingChatter struct {
	started chan struct{}
}

func (b *blockingChatter) Chat(ctx context.Context, systemPrompt string, turns []llm.Turn, tools []llm.Tool) (*llm.Reply, error) {
	close(b.started)
	<-ctx.Done()
	return nil, fmt.Errorf("%w: %v", llm.ErrUnavailable, ctx.Err())
}

func (b *blockingChatter) ContinueWithToolResult(ctx context.Context, systemPrompt string, turns []llm.Turn, call *llm.ToolCall, result string, tools []llm.Tool) (*llm.Reply, error) {
	return nil, llm.ErrUnavailable
}

func newTestSession(t *testing.T, chat session.Chatter) (*session.Session, *store.Store) {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, prompt.SystemPromptFile), []byte("You are a journaling companion."), 0644))
	pm, err := prompt.NewManager(dir)
	require.NoError(t, err)

	return session.New(st, chat, pm, nil, log, session.Config{}, ""), st
}

func TestAbortedTurnReleasesSession(t *testing.T) {
	chat := &blockingChatter{started: make(chan struct{})}
	sess, st := newTestSession(t, chat)

	call := startTurn(context.Background(), sess, "Hi")
	<-chat.started // the turn is now held inside the model call

	aborted := make(chan struct{})
	go func() {
		call.abort()
		close(aborted)
	}()
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("abort() did not return after canceling the turn")
	}

	assert.ErrorIs(t, call.msg.err, llm.ErrUnavailable)

	// The turn's goroutine has exited, so touching the session again is
	// sequential, not concurrent.
	sess.SetMood("steady")
	require.NoError(t, sess.PersistContext(context.Background()))

	ctx := context.Background()
	conv, err := st.GetConversation(ctx, sess.ConversationID())
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.NotNil(t, conv.CurrentMood)
	assert.Equal(t, "steady", *conv.CurrentMood)

	// The canceled exchange still persisted the user turn.
	msgs, err := st.GetMessages(ctx, sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestCompletedTurnReportsResult(t *testing.T) {
	chat := &blockingChatter{started: make(chan struct{})}
	sess, _ := newTestSession(t, chat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	call := startTurn(ctx, sess, "Hi")
	<-chat.started
	cancel()

	select {
	case msg := <-call.result:
		assert.ErrorIs(t, msg.err, llm.ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("turn never delivered a result")
	}
	<-call.done
}
