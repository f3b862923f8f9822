package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type referralCodeResponse struct {
	Code string `json:"code"`
}

type redeemReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetOrCreateReferralCode returns the caller's share code, minting one
// on first use.
func (s *Server) GetOrCreateReferralCode(c *gin.Context) {
	code, err := s.referralSvc.GetOrCreateCode(c.Request.Context(), userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, referralCodeResponse{Code: code})
}

// GetReferralStatus reports the caller's code and referral tally.
func (s *Server) GetReferralStatus(c *gin.Context) {
	status, err := s.referralSvc.Status(c.Request.Context(), userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RedeemReferral credits the caller and the code owner. Re-submitting
// the same code for the same caller is a no-op.
func (s *Server) RedeemReferral(c *gin.Context) {
	var req redeemReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrBadRequest)
		return
	}
	if err := s.referralSvc.Redeem(c.Request.Context(), req.Code, userID(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
