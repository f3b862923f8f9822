// Package domain contains the redemption token model and protocol types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TokenStatus is the lifecycle state of a redemption token. Transitions
// are one-way: active -> consumed | expired | superseded. Terminal rows
// are never mutated again and never deleted, so replays stay detectable.
type TokenStatus string

const (
	TokenStatusActive     TokenStatus = "active"
	TokenStatusConsumed   TokenStatus = "consumed"
	TokenStatusExpired    TokenStatus = "expired"
	TokenStatusSuperseded TokenStatus = "superseded"
)

// RedemptionToken binds a user, an offer and a merchant for a short
// validity window. TokenID is the opaque value rendered as the scannable
// code; no other payload crosses the wire.
type RedemptionToken struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"-"`
	TokenID    string       `gorm:"type:text;not null;uniqueIndex:ux_redemption_tokens_token_id" json:"token_id"`
	UserID     string       `gorm:"type:text;not null;index:idx_redemption_tokens_user_offer,priority:1" json:"user_id"`
	OfferID    string       `gorm:"type:text;not null;index:idx_redemption_tokens_user_offer,priority:2" json:"offer_id"`
	MerchantID string       `gorm:"type:text;not null;index" json:"merchant_id"`
	DeviceTag  string       `gorm:"type:text" json:"device_tag"`
	IssuedAt   time.Time    `gorm:"not null" json:"issued_at"`
	ExpiresAt  time.Time    `gorm:"not null;index" json:"expires_at"`
	Status     TokenStatus  `gorm:"type:text;not null;index" json:"status"`
	ConsumedAt *time.Time   `gorm:"" json:"consumed_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (RedemptionToken) TableName() string { return "redemption_tokens" }
