package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/journal-go/internal/models"
)

// defaultQueueSize bounds the pending trigger queue. A full queue drops
// the request: summary_generated stays false and a later turn retries.
const defaultQueueSize = 16

// defaultRunTimeout bounds one title generation including the model call.
const defaultRunTimeout = 2 * time.Minute

// Committer is the slice of the store the trigger needs. *store.Store
// satisfies it.
type Committer interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SetTitleAndMarkSummarized(ctx context.Context, id, title string) (bool, error)
}

// Trigger runs title generation in the background, decoupling turn-send
// latency from summarization latency. Requests are queued and processed by
// a single worker; enqueueing never blocks.
type Trigger struct {
	summarizer *Summarizer
	store      Committer
	log        *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan string

	runTimeout time.Duration
	done       chan struct{}
}

// NewTrigger starts the background worker. Call Close to drain and stop.
func NewTrigger(summarizer *Summarizer, store Committer, log *slog.Logger) *Trigger {
	if log == nil {
		log = slog.Default()
	}
	t := &Trigger{
		summarizer: summarizer,
		store:      store,
		log:        log,
		queue:      make(chan string, defaultQueueSize),
		runTimeout: defaultRunTimeout,
		done:       make(chan struct{}),
	}
	go t.worker()
	return t
}

// Enqueue requests title generation for a conversation. Returns false when
// the queue is full or the trigger is closed; the request is simply
// dropped in that case.
func (t *Trigger) Enqueue(conversationID string) bool {
	// The closed check and the send share the mutex so a concurrent Close
	// can never close the queue between them.
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	select {
	case t.queue <- conversationID:
		return true
	default:
		t.log.Debug("summary queue full, dropping request", "conversation_id", conversationID)
		return false
	}
}

// Close stops accepting new requests, waits for queued work to finish and
// stops the worker. Safe to call more than once and concurrently with
// Enqueue.
func (t *Trigger) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()

	<-t.done
}

func (t *Trigger) worker() {
	defer close(t.done)
	for id := range t.queue {
		t.run(id)
	}
}

// run generates and commits a title for one conversation. Every failure is
// logged and swallowed; a missed summary is retried on a later turn.
func (t *Trigger) run(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
	defer cancel()

	conv, err := t.store.GetConversation(ctx, conversationID)
	if err != nil {
		t.log.Warn("summary trigger: load conversation failed", "conversation_id", conversationID, "error", err)
		return
	}
	if conv == nil || conv.SummaryGenerated {
		return
	}

	messages, err := t.store.GetMessages(ctx, conversationID)
	if err != nil {
		t.log.Warn("summary trigger: load messages failed", "conversation_id", conversationID, "error", err)
		return
	}

	title := t.summarizer.GenerateTitle(ctx, messages)

	ok, err := t.store.SetTitleAndMarkSummarized(ctx, conversationID, title)
	if err != nil {
		t.log.Warn("summary trigger: commit title failed", "conversation_id", conversationID, "error", err)
		return
	}
	if ok {
		t.log.Info("conversation title generated", "conversation_id", conversationID, "title", title)
	}
}
