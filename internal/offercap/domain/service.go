package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// TryIncrement bumps the counter for (offerID, day) unless a non-nil
	// cap has been reached, returning the count after the increment. The
	// guard and increment execute as one atomic statement. When tx is
	// non-nil the increment joins the caller's transaction so it rolls
	// back together with a failed token consumption.
	TryIncrement(ctx context.Context, tx *gorm.DB, offerID, day string, cap *int) (int, error)

	// UsedOn returns the count for (offerID, day), zero if no row exists.
	UsedOn(ctx context.Context, offerID, day string) (int, error)
}

var (
	ErrInvalidOffer = errors.New("invalid_offer")
	ErrInvalidDay   = errors.New("invalid_day")

	// ErrCapReached is a business outcome: the day's allotment is spent.
	// The counter is left unchanged.
	ErrCapReached = errors.New("cap_reached")
)
