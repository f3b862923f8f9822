package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	"github.com/tapsavehq/tapsave/internal/ratelimit"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	referraldomain "github.com/tapsavehq/tapsave/internal/referral/domain"
	"gorm.io/gorm"
)

// ErrUnauthorized means the trusted identity header is missing.
var ErrUnauthorized = errors.New("unauthorized")

// ErrBadRequest marks a request body that failed binding.
var ErrBadRequest = errors.New("bad_request")

// ErrorResponse is the envelope every non-2xx body uses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorHandlingMiddleware renders the first error a handler attached to
// the context. Handlers that already wrote a body are left alone.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, errType := mapError(lastErr.Err)
		c.JSON(status, ErrorResponse{Error: ErrorBody{
			Type:    errType,
			Message: lastErr.Err.Error(),
		}})
	}
}

// AbortWithError records err on the context for the error middleware and
// the request logger.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, quotadomain.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "quota_exhausted"
	case errors.Is(err, offerdomain.ErrOfferNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, offerdomain.ErrOfferInactive):
		return http.StatusConflict, "offer_inactive"
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, referraldomain.ErrUnknownCode):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, referraldomain.ErrSelfReferral):
		return http.StatusConflict, "self_referral"
	case errors.Is(err, redemptiondomain.ErrMerchantMismatch):
		return http.StatusForbidden, "merchant_mismatch"
	case errInvalidArgument(err):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errInvalidArgument(err error) bool {
	return errors.Is(err, redemptiondomain.ErrInvalidUser) ||
		errors.Is(err, redemptiondomain.ErrInvalidMerchant) ||
		errors.Is(err, redemptiondomain.ErrInvalidToken) ||
		errors.Is(err, quotadomain.ErrInvalidUser) ||
		errors.Is(err, offerdomain.ErrInvalidOffer) ||
		errors.Is(err, referraldomain.ErrInvalidUser)
}

// classifyErrorForLog feeds the request logger's error fields.
func classifyErrorForLog(err error) (string, string) {
	status, errType := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", errType
	case status == http.StatusTooManyRequests:
		return "throttled", errType
	default:
		return "client", errType
	}
}
