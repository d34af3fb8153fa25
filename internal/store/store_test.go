package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/journal-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path, slog.New(slog.DiscardHandler))
	require.NoError(t, err, "should open test database")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func TestCreateConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Morning pages", strptr("Sam"), strptr("calm"), []string{"write daily"})
	require.NoError(t, err)

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Morning pages", conv.Title)
	assert.Equal(t, 0, conv.MessageCount)
	assert.False(t, conv.SummaryGenerated)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Morning pages", got.Title)
	require.NotNil(t, got.UserName)
	assert.Equal(t, "Sam", *got.UserName)
	require.NotNil(t, got.CurrentMood)
	assert.Equal(t, "calm", *got.CurrentMood)
	assert.Equal(t, []string{"write daily"}, got.Goals)
}

func TestGetConversationAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetConversation(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Test", nil, nil, nil)
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, conv.ID, models.RoleUser, "Hi", nil)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, models.RoleAssistant, "Hello", nil)
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.MessageCount)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt), "updated_at should advance past created_at")

	msgs, err := s.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestAddMessageCountStaysConsistent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Counting", nil, nil, nil)
	require.NoError(t, err)

	roles := []models.Role{models.RoleUser, models.RoleAssistant}
	for i := 0; i < 7; i++ {
		_, err := s.AddMessage(ctx, conv.ID, roles[i%2], "entry", nil)
		require.NoError(t, err)

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		msgs, err := s.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, len(msgs), got.MessageCount, "cached count must match row count after append %d", i+1)
	}
}

func TestAddMessageValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Validation", nil, nil, nil)
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, conv.ID, models.Role("system"), "nope", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.AddMessage(ctx, conv.ID, models.RoleUser, "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	// Rejected writes must not bump the counter.
	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MessageCount)
}

func TestAddMessageMissingConversation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddMessage(context.Background(), "missing", models.RoleUser, "Hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMessageMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Meta", nil, nil, nil)
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, conv.ID, models.RoleUser, "Hi", map[string]any{"source": "cli"})
	require.NoError(t, err)

	msgs, err := s.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "cli", msgs[0].Metadata["source"])
}

func TestListConversationsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateConversation(ctx, "A", nil, nil, nil)
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "B", nil, nil, nil)
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, b.ID, convs[0].ID, "most recently touched conversation comes first")

	// Touching A moves it ahead of B.
	_, err = s.AddMessage(ctx, a.ID, models.RoleUser, "back again", nil)
	require.NoError(t, err)

	convs, err = s.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, a.ID, convs[0].ID)

	// Pagination.
	convs, err = s.ListConversations(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, b.ID, convs[0].ID)
}

func TestUpdateConversationMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Before", nil, nil, []string{"one"})
	require.NoError(t, err)

	// No fields supplied is a no-op.
	ok, err := s.UpdateConversationMetadata(ctx, conv.ID, MetadataUpdate{})
	require.NoError(t, err)
	assert.False(t, ok)

	goals := []string{"one", "two"}
	ok, err = s.UpdateConversationMetadata(ctx, conv.ID, MetadataUpdate{
		Title: strptr("After"),
		Mood:  strptr("hopeful"),
		Goals: &goals,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	require.NotNil(t, got.CurrentMood)
	assert.Equal(t, "hopeful", *got.CurrentMood)
	assert.Equal(t, goals, got.Goals)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))

	// Unknown conversation.
	ok, err = s.UpdateConversationMetadata(ctx, "missing", MetadataUpdate{Title: strptr("x")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetTitleAndMarkSummarizedIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Raw first message", nil, nil, nil)
	require.NoError(t, err)

	ok, err := s.SetTitleAndMarkSummarized(ctx, conv.ID, "Processing work stress")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetTitleAndMarkSummarized(ctx, conv.ID, "Processing work stress and anxiety")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.SummaryGenerated)
	assert.Equal(t, "Processing work stress and anxiety", got.Title, "latest title wins")
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Doomed", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, models.RoleUser, "Hi", nil)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, models.RoleAssistant, "Hello", nil)
	require.NoError(t, err)

	ok, err := s.DeleteConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	msgs, err := s.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Deleting again reports nothing removed.
	ok, err = s.DeleteConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	byTitle, err := s.CreateConversation(ctx, "Career planning", nil, nil, nil)
	require.NoError(t, err)

	byContent, err := s.CreateConversation(ctx, "Tuesday", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, byContent.ID, models.RoleUser, "thinking about my career again", nil)
	require.NoError(t, err)

	_, err = s.CreateConversation(ctx, "Unrelated", nil, nil, nil)
	require.NoError(t, err)

	results, err := s.SearchConversations(ctx, "career", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ordered by updated_at descending: byContent was touched last.
	assert.Equal(t, byContent.ID, results[0].ID)
	assert.Equal(t, byTitle.ID, results[1].ID)

	// Matching is case-insensitive for ASCII.
	results, err = s.SearchConversations(ctx, "CAREER", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.SearchConversations(ctx, "nothing matches this", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDeduplicatesByConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "Repeats", nil, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.AddMessage(ctx, conv.ID, models.RoleUser, "sleep problems again", nil)
		require.NoError(t, err)
	}

	results, err := s.SearchConversations(ctx, "sleep", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "one conversation regardless of matching message count")
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty database.
	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Conversations)
	assert.EqualValues(t, 0, stats.Messages)
	assert.Nil(t, stats.FirstConversationAt)

	first, err := s.CreateConversation(ctx, "First", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "Second", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, first.ID, models.RoleUser, "Hi", nil)
	require.NoError(t, err)

	stats, err = s.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Conversations)
	assert.EqualValues(t, 1, stats.Messages)
	require.NotNil(t, stats.FirstConversationAt)
	assert.WithinDuration(t, first.CreatedAt, *stats.FirstConversationAt, 0)
	assert.Greater(t, stats.StorageBytes, int64(0))
}

// TestMigrationAddsSummaryColumn opens a database created before
// summary_generated existed and verifies the column is added in place with
// the rows intact.
func TestMigrationAddsSummaryColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, legacy.Exec(`
		CREATE TABLE conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			user_name TEXT,
			current_mood TEXT,
			goals TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			message_count INTEGER NOT NULL DEFAULT 0
		)`).Error)
	require.NoError(t, legacy.Exec(`
		CREATE TABLE messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME,
			metadata TEXT
		)`).Error)
	require.NoError(t, legacy.Exec(
		`INSERT INTO conversations (id, title, goals, created_at, updated_at, message_count)
		 VALUES ('old-1', 'Kept from before', '["keep me"]', '2024-01-02 10:00:00', '2024-01-02 10:00:00', 0)`).Error)

	sqlDB, err := legacy.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	s, err := Open(path, slog.New(slog.DiscardHandler))
	require.NoError(t, err, "opening a legacy database must migrate it")
	defer s.Close()

	got, err := s.GetConversation(context.Background(), "old-1")
	require.NoError(t, err)
	require.NotNil(t, got, "pre-existing rows must survive the migration")
	assert.Equal(t, "Kept from before", got.Title)
	assert.Equal(t, []string{"keep me"}, got.Goals)
	assert.False(t, got.SummaryGenerated, "added column defaults to false")

	// The migrated store accepts new writes.
	_, err = s.AddMessage(context.Background(), "old-1", models.RoleUser, "still works", nil)
	require.NoError(t, err)

	ok, err := s.SetTitleAndMarkSummarized(context.Background(), "old-1", "Migrated title")
	require.NoError(t, err)
	assert.True(t, ok)
}
