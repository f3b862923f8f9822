// Package domain contains the per-offer, per-day redemption counter.
package domain

import "time"

// OfferDailyCounter counts successful redemptions of an offer on one
// merchant-local calendar day. The day is part of the key, so caps roll
// over naturally at midnight without a reset job.
type OfferDailyCounter struct {
	OfferID   string    `gorm:"primaryKey;type:text"`
	Day       string    `gorm:"primaryKey;type:text"`
	UsedCount int       `gorm:"not null"`
	Cap       *int      `gorm:""`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OfferDailyCounter) TableName() string { return "offer_daily_counters" }

// DayKey formats t as the calendar day in loc, the key dimension for
// daily caps.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
