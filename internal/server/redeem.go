package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tapsavehq/tapsave/internal/ratelimit"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	"github.com/tapsavehq/tapsave/pkg/pagination"
)

type startRedeemSessionRequest struct {
	OfferID    string `json:"offer_id" binding:"required"`
	MerchantID string `json:"merchant_id" binding:"required"`
	DeviceTag  string `json:"device_tag"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type startRedeemSessionResponse struct {
	TokenID   string    `json:"token_id"`
	OfferID   string    `json:"offer_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StartRedeemSession mints a fresh token for the calling user, replacing
// any previous active token for the same offer.
func (s *Server) StartRedeemSession(c *gin.Context) {
	var req startRedeemSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrBadRequest)
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)

	if err := s.limiter.AllowIssue(ctx, uid); err != nil {
		s.obsMetrics.RecordRateLimitDenied(ctx, "issue")
		AbortWithError(c, ratelimit.ErrRateLimited)
		return
	}

	token, err := s.redemptionSvc.Issue(ctx, redemptiondomain.IssueRequest{
		UserID:     uid,
		OfferID:    req.OfferID,
		MerchantID: req.MerchantID,
		DeviceTag:  req.DeviceTag,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, startRedeemSessionResponse{
		TokenID:   token.TokenID,
		OfferID:   token.OfferID,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
	})
}

// RedeemHistory lists the caller's tokens, newest first.
func (s *Server) RedeemHistory(c *gin.Context) {
	resp, err := s.redemptionSvc.History(c.Request.Context(), redemptiondomain.HistoryRequest{
		UserID: userID(c),
		Page: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  queryInt(c, "page_size", 20),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
