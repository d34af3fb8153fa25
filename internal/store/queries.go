package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/journal-go/internal/models"
	"gorm.io/gorm"
)

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 50

// MetadataUpdate describes a partial conversation update. Nil fields are
// left unchanged.
type MetadataUpdate struct {
	Title *string
	Mood  *string
	Goals *[]string
}

// Stats summarizes the contents of the journal database.
type Stats struct {
	Conversations       int64      `json:"conversations"`
	Messages            int64      `json:"messages"`
	FirstConversationAt *time.Time `json:"first_conversation_at,omitempty"`
	StorageBytes        int64      `json:"storage_bytes"`
}

// CreateConversation inserts a new conversation with zero messages.
func (s *Store) CreateConversation(ctx context.Context, title string, userName, mood *string, goals []string) (*models.Conversation, error) {
	if goals == nil {
		goals = []string{}
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:          uuid.New().String(),
		Title:       title,
		UserName:    userName,
		CurrentMood: mood,
		Goals:       goals,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.log.Debug("conversation created", "id", conv.ID, "title", title)
	return conv, nil
}

// AddMessage appends a message to a conversation. The message insert and
// the parent's updated_at/message_count bump happen in one transaction so
// the cached counter can never drift from the real row count.
func (s *Store) AddMessage(ctx context.Context, conversationID string, role models.Role, content string, metadata map[string]any) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: message content must not be empty", ErrValidation)
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now(),
		Metadata:       metadata,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, conversationID)
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumns(map[string]any{
				"updated_at":    msg.Timestamp,
				"message_count": gorm.Expr("message_count + 1"),
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add message: %w", err)
	}

	return msg, nil
}

// GetConversation retrieves a conversation by ID.
// Returns nil if not found.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns conversations ordered by most recent activity.
func (s *Store) ListConversations(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// GetMessages returns all messages of a conversation in chronological
// replay order. Timestamp ties are broken by insertion order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, rowid ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return msgs, nil
}

// UpdateConversationMetadata partially updates title, mood and/or goals.
// Returns false without touching the row when no fields are supplied or
// the conversation does not exist. Any actual change bumps updated_at.
func (s *Store) UpdateConversationMetadata(ctx context.Context, id string, upd MetadataUpdate) (bool, error) {
	updates := map[string]any{}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Mood != nil {
		updates["current_mood"] = *upd.Mood
	}
	if upd.Goals != nil {
		// Same JSON encoding the gorm serializer uses on reads.
		encoded, err := json.Marshal(*upd.Goals)
		if err != nil {
			return false, fmt.Errorf("encode goals: %w", err)
		}
		updates["goals"] = string(encoded)
	}

	if len(updates) == 0 {
		return false, nil
	}
	updates["updated_at"] = time.Now()

	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update conversation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetTitleAndMarkSummarized commits a generated title and flips
// summary_generated to true. This is the only write path that sets the
// flag; calling it again simply replaces the title.
func (s *Store) SetTitleAndMarkSummarized(ctx context.Context, id, title string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"title":             title,
			"summary_generated": true,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("set title: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteConversation removes a conversation and all its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) (bool, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}

	if deleted > 0 {
		s.log.Debug("conversation deleted", "id", id)
	}
	return deleted > 0, nil
}

// SearchConversations finds conversations whose title or any message
// content contains query as a substring. Matching is case-insensitive for
// ASCII (SQLite LIKE semantics). Results are deduplicated by conversation
// and ordered by most recent activity.
func (s *Store) SearchConversations(ctx context.Context, query string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	pattern := "%" + query + "%"

	matchingMessages := s.db.Model(&models.Message{}).
		Select("conversation_id").
		Where("content LIKE ?", pattern)

	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("title LIKE ?", pattern).
		Or("id IN (?)", matchingMessages).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return convs, nil
}

// GetStats returns database-wide counters and the on-disk size.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Count(&stats.Conversations).Error; err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Count(&stats.Messages).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	var first models.Conversation
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&first).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Empty database, no first conversation.
	case err != nil:
		return nil, fmt.Errorf("first conversation: %w", err)
	default:
		stats.FirstConversationAt = &first.CreatedAt
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.StorageBytes = info.Size()
	}

	return stats, nil
}
