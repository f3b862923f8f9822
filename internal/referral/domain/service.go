package domain

import (
	"context"
	"errors"
)

// Status is what the profile banner renders: the user's code and how
// many signups it has brought in.
type Status struct {
	Code          string `json:"code"`
	ReferredCount int    `json:"referred_count"`
	EarnedCredits int    `json:"earned_credits"`
}

type Service interface {
	// GetOrCreateCode returns the user's share code, minting one on
	// first use.
	GetOrCreateCode(ctx context.Context, userID string) (string, error)

	// Status reports the user's code and referral tally.
	Status(ctx context.Context, userID string) (Status, error)

	// Redeem credits both sides of a referral. Redeeming again for the
	// same new user is a no-op, not an error.
	Redeem(ctx context.Context, code, newUserID string) error
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrUnknownCode  = errors.New("unknown_referral_code")
	ErrSelfReferral = errors.New("self_referral")
)
