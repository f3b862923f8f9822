package domain

import (
	"context"
	"errors"
	"time"

	"github.com/tapsavehq/tapsave/pkg/pagination"
)

// Reason classifies a rejected scan. The vocabulary is closed; the
// merchant UI renders these strings verbatim.
type Reason string

const (
	ReasonUnknownToken     Reason = "unknown_token"
	ReasonAlreadyUsed      Reason = "already_used"
	ReasonSuperseded       Reason = "superseded"
	ReasonExpired          Reason = "expired"
	ReasonMerchantMismatch Reason = "merchant_mismatch"
	ReasonCapReached       Reason = "cap_reached"
)

// Outcome is the single classified result of a scan validation.
type Outcome struct {
	Accepted bool
	Reason   Reason
	Token    *RedemptionToken
}

type IssueRequest struct {
	UserID     string
	OfferID    string
	MerchantID string
	DeviceTag  string
	TTL        time.Duration
}

type HistoryRequest struct {
	UserID string
	Page   pagination.Pagination
}

type HistoryResponse struct {
	pagination.PageInfo
	Tokens []RedemptionToken `json:"tokens"`
}

type Service interface {
	// Issue mints a new active token for the request triple, debiting the
	// user's quota and superseding any previous active token for the same
	// (user, offer) pair in the same transaction.
	Issue(ctx context.Context, req IssueRequest) (*RedemptionToken, error)

	// Validate consumes the token identified by tokenID on behalf of the
	// scanning merchant, exactly once. Business rejections come back in
	// the Outcome with a nil error; a non-nil error means infrastructure
	// failure and no state change.
	Validate(ctx context.Context, tokenID, merchantID string) (Outcome, error)

	// History lists a user's tokens, newest first.
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidMerchant  = errors.New("invalid_merchant")
	ErrInvalidToken     = errors.New("invalid_token")
	ErrMerchantMismatch = errors.New("merchant_mismatch")
)
