package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
)

type listOffersResponse struct {
	Offers []offerdomain.OfferSummary `json:"offers"`
	Day    string                     `json:"day"`
}

// ListOffers returns the active offer feed with today's redemption
// counts, computed in the configured cap timezone.
func (s *Server) ListOffers(c *gin.Context) {
	day := offercapdomain.DayKey(s.clock.Now(), s.redemptionCfg.Location)
	offers, err := s.offerSvc.ListActive(c.Request.Context(), day)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOffersResponse{Offers: offers, Day: day})
}
