package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of an AI support conversation, grouped by session.
type ChatMessage struct {
	ID        string   `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID string   `gorm:"index;not null" json:"session_id"`
	UserID    string   `gorm:"index" json:"user_id"`
	Role      ChatRole `gorm:"not null" json:"role"`
	Content   string   `gorm:"type:text;not null" json:"content"`

	Timestamps
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
