package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// CheckAndReserve atomically decrements the user's remaining balance
	// and returns the value after the decrement. When tx is non-nil the
	// decrement joins the caller's transaction so a failed issuance rolls
	// the debit back with it.
	CheckAndReserve(ctx context.Context, tx *gorm.DB, userID string) (int, error)

	// PeekRemaining returns the balance without mutating it, creating the
	// record lazily so new users see the configured starting allowance.
	PeekRemaining(ctx context.Context, userID string) (int, error)

	// Grant credits the user's balance. Only external flows (referral
	// rewards) call this; issuance and validation never restore quota.
	Grant(ctx context.Context, tx *gorm.DB, userID string, amount int) (int, error)
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidGrant = errors.New("invalid_grant")

	// ErrQuotaExhausted is a terminal business condition, not a transient
	// error; the consumer client maps it to an upgrade prompt.
	ErrQuotaExhausted = errors.New("free_limit_reached")
)
