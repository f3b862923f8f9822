// Package domain contains referral codes and their redemptions, the one
// external flow allowed to restore a user's free-redemption quota.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReferralCode struct {
	UserID    string    `gorm:"primaryKey;type:text"`
	Code      string    `gorm:"type:text;not null;uniqueIndex:ux_referral_codes_code"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReferralCode) TableName() string { return "referral_codes" }

// ReferralRedemption records one referred signup. The unique index on
// ReferredUserID makes redemption idempotent per new user.
type ReferralRedemption struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Code           string       `gorm:"type:text;not null;index"`
	ReferrerUserID string       `gorm:"type:text;not null;index"`
	ReferredUserID string       `gorm:"type:text;not null;uniqueIndex:ux_referral_redemptions_referred"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReferralRedemption) TableName() string { return "referral_redemptions" }
