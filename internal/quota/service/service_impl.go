package service

import (
	"context"
	"strings"
	"time"

	"github.com/tapsavehq/tapsave/internal/clock"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config carries the quota settings owned by the surrounding application.
type Config struct {
	StartingAllowance int
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config Config
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	clock             clock.Clock
	startingAllowance int
}

func NewService(p Params) quotadomain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("quota.service"),
		clock:             p.Clock,
		startingAllowance: p.Config.StartingAllowance,
	}
}

func (s *Service) CheckAndReserve(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, quotadomain.ErrInvalidUser
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	if err := s.ensureRecord(ctx, tx, userID, now); err != nil {
		return 0, err
	}

	// Single conditional update: the guard and the decrement execute as
	// one statement, so concurrent reservations can never drive the
	// balance negative.
	result := tx.WithContext(ctx).Exec(
		`UPDATE quota_records
		 SET remaining = remaining - 1, updated_at = ?
		 WHERE user_id = ? AND remaining > 0`,
		now, userID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, quotadomain.ErrQuotaExhausted
	}

	return s.remaining(ctx, tx, userID)
}

func (s *Service) PeekRemaining(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, quotadomain.ErrInvalidUser
	}

	if err := s.ensureRecord(ctx, s.db, userID, s.clock.Now()); err != nil {
		return 0, err
	}
	return s.remaining(ctx, s.db, userID)
}

func (s *Service) Grant(ctx context.Context, tx *gorm.DB, userID string, amount int) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, quotadomain.ErrInvalidUser
	}
	if amount <= 0 {
		return 0, quotadomain.ErrInvalidGrant
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	if err := s.ensureRecord(ctx, tx, userID, now); err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE quota_records
		 SET remaining = remaining + ?, updated_at = ?
		 WHERE user_id = ?`,
		amount, now, userID,
	).Error; err != nil {
		return 0, err
	}

	s.log.Info("quota granted",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
	)
	return s.remaining(ctx, tx, userID)
}

func (s *Service) ensureRecord(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO quota_records (user_id, remaining, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, s.startingAllowance, now, now,
	).Error
}

func (s *Service) remaining(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	var record quotadomain.QuotaRecord
	if err := tx.WithContext(ctx).First(&record, "user_id = ?", userID).Error; err != nil {
		return 0, err
	}
	return record.Remaining, nil
}
