package service

import (
	"context"
	"errors"
	"strings"

	"github.com/tapsavehq/tapsave/internal/clock"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) offercapdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("offercap.service"),
		clock: p.Clock,
	}
}

func (s *Service) TryIncrement(ctx context.Context, tx *gorm.DB, offerID, day string, cap *int) (int, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return 0, offercapdomain.ErrInvalidOffer
	}
	if strings.TrimSpace(day) == "" {
		return 0, offercapdomain.ErrInvalidDay
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()

	// Row is created lazily on the first consumption attempt of the day.
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO offer_daily_counters (offer_id, day, used_count, cap, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)
		 ON CONFLICT (offer_id, day) DO NOTHING`,
		offerID, day, cap, now, now,
	).Error; err != nil {
		return 0, err
	}

	// The cap check and the increment are one conditional statement; a
	// separate read-then-write would let used_count overshoot the cap
	// under concurrent scanners.
	var result *gorm.DB
	if cap != nil {
		result = tx.WithContext(ctx).Exec(
			`UPDATE offer_daily_counters
			 SET used_count = used_count + 1, cap = ?, updated_at = ?
			 WHERE offer_id = ? AND day = ? AND used_count < ?`,
			*cap, now, offerID, day, *cap,
		)
	} else {
		result = tx.WithContext(ctx).Exec(
			`UPDATE offer_daily_counters
			 SET used_count = used_count + 1, cap = NULL, updated_at = ?
			 WHERE offer_id = ? AND day = ?`,
			now, offerID, day,
		)
	}
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, offercapdomain.ErrCapReached
	}

	var counter offercapdomain.OfferDailyCounter
	if err := tx.WithContext(ctx).
		First(&counter, "offer_id = ? AND day = ?", offerID, day).Error; err != nil {
		return 0, err
	}
	return counter.UsedCount, nil
}

func (s *Service) UsedOn(ctx context.Context, offerID, day string) (int, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return 0, offercapdomain.ErrInvalidOffer
	}

	var counter offercapdomain.OfferDailyCounter
	err := s.db.WithContext(ctx).
		First(&counter, "offer_id = ? AND day = ?", offerID, day).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.UsedCount, nil
}
