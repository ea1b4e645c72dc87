package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEvent string

const (
	AuditEventAlertTriggered      AuditEvent = "alert_triggered"
	AuditEventKYCDecision         AuditEvent = "kyc_decision"
	AuditEventWithdrawalRequested AuditEvent = "withdrawal_requested"
	AuditEventWithdrawalCompleted AuditEvent = "withdrawal_completed"
	AuditEventWithdrawalFailed    AuditEvent = "withdrawal_failed"
)

// AuditLog is an append-only compliance trail. Rows are never updated.
type AuditLog struct {
	ID      string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string     `gorm:"index" json:"user_id"`
	Event   AuditEvent `gorm:"not null;index" json:"event"`
	Subject string     `gorm:"index" json:"subject"`
	Detail  string     `gorm:"type:text" json:"detail"`

	Timestamps
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
