package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type KYCStatus string

const (
	KYCStatusNone     KYCStatus = "none"
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

// User is the platform account record.
// ReferralPath encodes the full chain of referrers as a dot-delimited
// ancestry string ending in this user's own ID. It is assigned once at
// signup (referrer's path + "." + self) and never changes afterwards.
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	Username     string  `gorm:"uniqueIndex;not null" json:"username"`
	ReferralCode string  `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferredByID *string `gorm:"index" json:"referred_by_id,omitempty"`
	ReferralPath string  `gorm:"index;not null" json:"referral_path"`

	KYCStatus      KYCStatus `gorm:"not null;default:'none'" json:"kyc_status"`
	KYCRiskScore   int       `json:"kyc_risk_score" gorm:"default:0"`
	KYCDocumentURL string    `json:"kyc_document_url,omitempty"`

	TwoFactorEnabled bool    `json:"two_factor_enabled" gorm:"default:false"`
	TwoFactorSecret  *string `json:"-"`

	LastLoginBonusAt *time.Time `json:"last_login_bonus_at,omitempty"`
	LoginStreak      int        `json:"login_streak" gorm:"default:0"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
