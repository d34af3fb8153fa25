// Package models defines the data structures persisted by the journal store.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is one journaling session and its accumulated metadata.
// MessageCount is a cached aggregate; the store keeps it in sync with the
// actual number of message rows on every append. SummaryGenerated is
// monotonic: once a generated title has been committed it never resets.
type Conversation struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"not null" json:"title"`
	UserName         *string   `json:"user_name,omitempty"`
	CurrentMood      *string   `json:"current_mood,omitempty"`
	Goals            []string  `gorm:"serializer:json" json:"goals"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`
	MessageCount     int       `gorm:"not null;default:0" json:"message_count"`
	SummaryGenerated bool      `gorm:"not null;default:false" json:"summary_generated"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// Message is a single turn inside a conversation. Messages are append-only;
// there is no update path. Metadata is an opaque key/value bag the store
// never interprets.
type Message struct {
	ID             string            `gorm:"primaryKey" json:"id"`
	ConversationID string            `gorm:"not null;index" json:"conversation_id"`
	Role           Role              `gorm:"not null" json:"role"`
	Content        string            `gorm:"not null" json:"content"`
	Timestamp      time.Time         `gorm:"index" json:"timestamp"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
}
