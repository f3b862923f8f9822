// Package domain contains the per-user free-redemption ledger.
package domain

import "time"

// QuotaRecord tracks how many free redemptions a user has left.
// Remaining never goes negative; it is decremented only by a successful
// token issuance and restored only by an external grant (referral).
type QuotaRecord struct {
	UserID    string    `gorm:"primaryKey;type:text"`
	Remaining int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (QuotaRecord) TableName() string { return "quota_records" }
