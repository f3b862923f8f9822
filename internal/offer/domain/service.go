package domain

import (
	"context"
	"errors"
)

// OfferSummary is the consumer-feed projection of an offer, including
// today's redemption count against the daily cap.
type OfferSummary struct {
	Offer
	MerchantName string `json:"merchant_name"`
	UsedToday    int    `json:"used_today"`
}

type Service interface {
	// GetOffer returns the offer regardless of its active flag; callers
	// decide whether inactive offers are acceptable.
	GetOffer(ctx context.Context, offerID string) (*Offer, error)

	// ListActive returns active offers with their used-today counts for
	// the given day key.
	ListActive(ctx context.Context, day string) ([]OfferSummary, error)
}

var (
	ErrInvalidOffer  = errors.New("invalid_offer")
	ErrOfferNotFound = errors.New("offer_not_found")
	ErrOfferInactive = errors.New("offer_inactive")
)
