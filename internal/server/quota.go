package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type quotaResponse struct {
	Remaining int `json:"remaining"`
}

// GetFreeRemaining reports the caller's free-redemption balance.
func (s *Server) GetFreeRemaining(c *gin.Context) {
	remaining, err := s.quotaSvc.PeekRemaining(c.Request.Context(), userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotaResponse{Remaining: remaining})
}
