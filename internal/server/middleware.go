package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/tapsavehq/tapsave/internal/observability/obscontext"
)

const (
	headerUserID     = "X-User-ID"
	headerMerchantID = "X-Merchant-ID"

	ctxUserID     = "user_id"
	ctxMerchantID = "merchant_id"
)

// RequireUser extracts the authenticated consumer identity set by the
// fronting identity layer.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(ctxUserID, userID)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "user", userID))
		c.Next()
	}
}

// RequireMerchant extracts the authenticated merchant identity.
func RequireMerchant() gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID := strings.TrimSpace(c.GetHeader(headerMerchantID))
		if merchantID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(ctxMerchantID, merchantID)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "merchant", merchantID))
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func merchantID(c *gin.Context) string {
	return c.GetString(ctxMerchantID)
}
