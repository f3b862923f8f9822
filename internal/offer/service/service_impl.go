package service

import (
	"context"
	"errors"
	"strings"

	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) offerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("offer.service"),
	}
}

func (s *Service) GetOffer(ctx context.Context, offerID string) (*offerdomain.Offer, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return nil, offerdomain.ErrInvalidOffer
	}

	var offer offerdomain.Offer
	if err := s.db.WithContext(ctx).First(&offer, "id = ?", offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, offerdomain.ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func (s *Service) ListActive(ctx context.Context, day string) ([]offerdomain.OfferSummary, error) {
	rows := make([]offerdomain.OfferSummary, 0)
	err := s.db.WithContext(ctx).Raw(
		`SELECT o.*, m.name AS merchant_name, COALESCE(c.used_count, 0) AS used_today
		 FROM offers o
		 JOIN merchants m ON m.id = o.merchant_id
		 LEFT JOIN offer_daily_counters c ON c.offer_id = o.id AND c.day = ?
		 WHERE o.active
		 ORDER BY o.created_at DESC`,
		day,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
