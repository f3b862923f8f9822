// Package domain holds the read-only offer and merchant directory.
// Rows are managed by the merchant-facing CRUD surface, which lives
// outside this service; changes simply take effect on the next
// issue/validate call.
package domain

import "time"

type Merchant struct {
	ID          string    `gorm:"primaryKey;type:text"`
	Name        string    `gorm:"type:text;not null"`
	AddressText string    `gorm:"type:text"`
	PhotoURL    string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Merchant) TableName() string { return "merchants" }

type Offer struct {
	ID         string    `gorm:"primaryKey;type:text"`
	MerchantID string    `gorm:"type:text;not null;index"`
	Title      string    `gorm:"type:text;not null"`
	Terms      string    `gorm:"type:text"`
	PerDayCap  *int      `gorm:""`
	Active     bool      `gorm:"not null;default:true"`
	PhotoURL   string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Offer) TableName() string { return "offers" }
