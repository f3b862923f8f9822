package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tapsavehq/tapsave/internal/ratelimit"
)

type scanRequest struct {
	TokenID string `json:"token_id" binding:"required"`
}

type scanResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	OfferID string `json:"offer_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// ScanToken validates a scanned token for the calling merchant. Business
// rejections are 200 responses with outcome "rejected"; only transport
// and infrastructure problems surface as error statuses.
func (s *Server) ScanToken(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrBadRequest)
		return
	}

	ctx := c.Request.Context()
	mid := merchantID(c)

	if err := s.limiter.AllowScan(ctx, mid); err != nil {
		s.obsMetrics.RecordRateLimitDenied(ctx, "scan")
		AbortWithError(c, ratelimit.ErrRateLimited)
		return
	}

	outcome, err := s.redemptionSvc.Validate(ctx, req.TokenID, mid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := scanResponse{Outcome: "rejected", Reason: string(outcome.Reason)}
	if outcome.Accepted {
		resp = scanResponse{Outcome: "accepted"}
	}
	if outcome.Token != nil {
		resp.OfferID = outcome.Token.OfferID
		resp.UserID = outcome.Token.UserID
	}
	c.JSON(http.StatusOK, resp)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
