package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	obsmetrics "github.com/tapsavehq/tapsave/internal/observability/metrics"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	referraldomain "github.com/tapsavehq/tapsave/internal/referral/domain"
	"github.com/tapsavehq/tapsave/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config carries the reward amount granted to both sides of a referral.
type Config struct {
	RewardCredits int
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	QuotaSvc   quotadomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Config     Config
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	quotaSvc   quotadomain.Service
	obsMetrics *obsmetrics.Metrics
	reward     int
}

func NewService(p Params) referraldomain.Service {
	reward := p.Config.RewardCredits
	if reward <= 0 {
		reward = 1
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("referral.service"),
		genID:      p.GenID,
		quotaSvc:   p.QuotaSvc,
		obsMetrics: p.ObsMetrics,
		reward:     reward,
	}
}

func (s *Service) GetOrCreateCode(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", referraldomain.ErrInvalidUser
	}

	var existing referraldomain.ReferralCode
	err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// Short codes can collide; retry with a fresh one when they do.
	for attempt := 0; attempt < 5; attempt++ {
		code := newShareCode()
		err := s.db.WithContext(ctx).Exec(
			`INSERT INTO referral_codes (user_id, code, created_at)
			 VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, code,
		).Error
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				continue
			}
			return "", err
		}
		// A concurrent call may have inserted first; read back the winner.
		if err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error; err != nil {
			return "", err
		}
		return existing.Code, nil
	}
	return "", errors.New("could not allocate referral code")
}

func (s *Service) Status(ctx context.Context, userID string) (referraldomain.Status, error) {
	code, err := s.GetOrCreateCode(ctx, userID)
	if err != nil {
		return referraldomain.Status{}, err
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&referraldomain.ReferralRedemption{}).
		Where("referrer_user_id = ?", userID).
		Count(&count).Error; err != nil {
		return referraldomain.Status{}, err
	}

	return referraldomain.Status{
		Code:          code,
		ReferredCount: int(count),
		EarnedCredits: int(count) * s.reward,
	}, nil
}

func (s *Service) Redeem(ctx context.Context, code, newUserID string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	newUserID = strings.TrimSpace(newUserID)
	if newUserID == "" {
		return referraldomain.ErrInvalidUser
	}
	if code == "" {
		return referraldomain.ErrUnknownCode
	}

	var owner referraldomain.ReferralCode
	if err := s.db.WithContext(ctx).First(&owner, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return referraldomain.ErrUnknownCode
		}
		return err
	}
	if owner.UserID == newUserID {
		return referraldomain.ErrSelfReferral
	}

	redeemed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO referral_redemptions (id, code, referrer_user_id, referred_user_id, created_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT (referred_user_id) DO NOTHING`,
			s.genID.Generate(), code, owner.UserID, newUserID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already redeemed by this user; grants were already made.
			return nil
		}
		redeemed = true

		if _, err := s.quotaSvc.Grant(ctx, tx, owner.UserID, s.reward); err != nil {
			return err
		}
		_, err := s.quotaSvc.Grant(ctx, tx, newUserID, s.reward)
		return err
	})
	if err != nil {
		return err
	}

	if redeemed {
		s.obsMetrics.RecordReferralRedeemed(ctx)
		s.log.Info("referral redeemed",
			zap.String("code", code),
			zap.String("referrer_user_id", owner.UserID),
			zap.String("referred_user_id", newUserID),
		)
	}
	return nil
}

// newShareCode returns an 8-character uppercase code derived from a
// random UUID.
func newShareCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
