package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/tapsavehq/tapsave/internal/clock"
	obsmetrics "github.com/tapsavehq/tapsave/internal/observability/metrics"
	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	"github.com/tapsavehq/tapsave/pkg/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config carries the protocol settings owned by the surrounding
// application: TTL bounds and the daily-cap timezone.
type Config struct {
	TTLDefault time.Duration
	TTLMin     time.Duration
	TTLMax     time.Duration
	Location   *time.Location
}

func (c Config) withDefaults() Config {
	if c.TTLDefault <= 0 {
		c.TTLDefault = 90 * time.Second
	}
	if c.TTLMin <= 0 {
		c.TTLMin = 10 * time.Second
	}
	if c.TTLMax <= 0 {
		c.TTLMax = 300 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	QuotaSvc   quotadomain.Service
	OfferSvc   offerdomain.Service
	CapSvc     offercapdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Config     Config
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	quotaSvc   quotadomain.Service
	offerSvc   offerdomain.Service
	capSvc     offercapdomain.Service
	obsMetrics *obsmetrics.Metrics
	cfg        Config
}

func NewService(p Params) redemptiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("redemption.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		quotaSvc:   p.QuotaSvc,
		offerSvc:   p.OfferSvc,
		capSvc:     p.CapSvc,
		obsMetrics: p.ObsMetrics,
		cfg:        p.Config.withDefaults(),
	}
}

func (s *Service) Issue(ctx context.Context, req redemptiondomain.IssueRequest) (*redemptiondomain.RedemptionToken, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, redemptiondomain.ErrInvalidUser
	}
	merchantID := strings.TrimSpace(req.MerchantID)
	if merchantID == "" {
		return nil, redemptiondomain.ErrInvalidMerchant
	}

	offer, err := s.offerSvc.GetOffer(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if !offer.Active {
		return nil, offerdomain.ErrOfferInactive
	}
	if offer.MerchantID != merchantID {
		return nil, redemptiondomain.ErrMerchantMismatch
	}

	ttl := s.clampTTL(req.TTL)
	now := s.clock.Now()
	token := &redemptiondomain.RedemptionToken{
		ID:         s.genID.Generate(),
		TokenID:    uuid.NewString(),
		UserID:     userID,
		OfferID:    offer.ID,
		MerchantID: merchantID,
		DeviceTag:  strings.TrimSpace(req.DeviceTag),
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		Status:     redemptiondomain.TokenStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Quota debit, supersede and insert commit or roll back together: a
	// failed issuance never leaves a debit without a token.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.quotaSvc.CheckAndReserve(ctx, tx, userID); err != nil {
			return err
		}

		// Auto-refresh reissues for the same pair; the previous code must
		// stop scanning the moment the new one exists.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE redemption_tokens
			 SET status = ?, updated_at = ?
			 WHERE user_id = ? AND offer_id = ? AND status = ?`,
			redemptiondomain.TokenStatusSuperseded, now,
			userID, offer.ID, redemptiondomain.TokenStatusActive,
		).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).Create(token).Error
	})
	if err != nil {
		if errors.Is(err, quotadomain.ErrQuotaExhausted) {
			s.obsMetrics.RecordQuotaExhausted(ctx)
		}
		return nil, err
	}

	s.obsMetrics.RecordTokenIssued(ctx)
	s.log.Info("token issued",
		zap.String("token_id", token.TokenID),
		zap.String("user_id", userID),
		zap.String("offer_id", offer.ID),
		zap.Duration("ttl", ttl),
	)
	return token, nil
}

// errRolledBack aborts the validation transaction when the business
// outcome requires discarding every change made so far.
var errRolledBack = errors.New("validation rolled back")

func (s *Service) Validate(ctx context.Context, tokenID, merchantID string) (redemptiondomain.Outcome, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return redemptiondomain.Outcome{}, redemptiondomain.ErrInvalidToken
	}
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return redemptiondomain.Outcome{}, redemptiondomain.ErrInvalidMerchant
	}

	now := s.clock.Now()
	var outcome redemptiondomain.Outcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token redemptiondomain.RedemptionToken
		if err := tx.WithContext(ctx).
			First(&token, "token_id = ?", tokenID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = rejected(redemptiondomain.ReasonUnknownToken, nil)
				return nil
			}
			return err
		}

		switch token.Status {
		case redemptiondomain.TokenStatusConsumed:
			outcome = rejected(redemptiondomain.ReasonAlreadyUsed, &token)
			return nil
		case redemptiondomain.TokenStatusSuperseded:
			outcome = rejected(redemptiondomain.ReasonSuperseded, &token)
			return nil
		case redemptiondomain.TokenStatusExpired:
			outcome = rejected(redemptiondomain.ReasonExpired, &token)
			return nil
		}

		// Lazy expiry: no background sweep is needed for correctness.
		if now.After(token.ExpiresAt) {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE redemption_tokens
				 SET status = ?, updated_at = ?
				 WHERE id = ? AND status = ?`,
				redemptiondomain.TokenStatusExpired, now,
				token.ID, redemptiondomain.TokenStatusActive,
			).Error; err != nil {
				return err
			}
			outcome = rejected(redemptiondomain.ReasonExpired, &token)
			return nil
		}

		if token.MerchantID != merchantID {
			// Token stays active: the right merchant can still scan it.
			outcome = rejected(redemptiondomain.ReasonMerchantMismatch, &token)
			return nil
		}

		// Cap is read from the directory at validation time, so merchant
		// edits take effect on the next scan.
		var cap *int
		if offer, err := s.offerSvc.GetOffer(ctx, token.OfferID); err == nil {
			cap = offer.PerDayCap
		} else if !errors.Is(err, offerdomain.ErrOfferNotFound) {
			return err
		}

		day := offercapdomain.DayKey(now, s.cfg.Location)
		if _, err := s.capSvc.TryIncrement(ctx, tx, token.OfferID, day, cap); err != nil {
			if errors.Is(err, offercapdomain.ErrCapReached) {
				// Token stays active so it can be retried once the cap
				// resets or the merchant overrides out-of-band.
				outcome = rejected(redemptiondomain.ReasonCapReached, &token)
				return errRolledBack
			}
			return err
		}

		// Conditional consume is what makes validation exactly-once: of
		// any number of concurrent scans, exactly one update matches the
		// active row. Losers roll back their cap increment.
		result := tx.WithContext(ctx).Exec(
			`UPDATE redemption_tokens
			 SET status = ?, consumed_at = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			redemptiondomain.TokenStatusConsumed, now, now,
			token.ID, redemptiondomain.TokenStatusActive,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = rejected(redemptiondomain.ReasonAlreadyUsed, &token)
			return errRolledBack
		}

		token.Status = redemptiondomain.TokenStatusConsumed
		token.ConsumedAt = &now
		outcome = redemptiondomain.Outcome{Accepted: true, Token: &token}
		return nil
	})
	if err != nil && !errors.Is(err, errRolledBack) {
		return redemptiondomain.Outcome{}, err
	}

	s.obsMetrics.RecordScanOutcome(ctx, outcome.Accepted, string(outcome.Reason))
	s.log.Info("token validated",
		zap.String("token_id", tokenID),
		zap.String("merchant_id", merchantID),
		zap.Bool("accepted", outcome.Accepted),
		zap.String("reason", string(outcome.Reason)),
	)
	return outcome, nil
}

func (s *Service) History(ctx context.Context, req redemptiondomain.HistoryRequest) (redemptiondomain.HistoryResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return redemptiondomain.HistoryResponse{}, redemptiondomain.ErrInvalidUser
	}

	size := req.Page.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(size + 1)

	if token := strings.TrimSpace(req.Page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return redemptiondomain.HistoryResponse{}, err
		}
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return redemptiondomain.HistoryResponse{}, err
		}
		query = query.Where("id < ?", lastID)
	}

	var tokens []redemptiondomain.RedemptionToken
	if err := query.Find(&tokens).Error; err != nil {
		return redemptiondomain.HistoryResponse{}, err
	}

	resp := redemptiondomain.HistoryResponse{Tokens: tokens}
	if len(tokens) > size {
		resp.Tokens = tokens[:size]
		resp.HasMore = true
		last := resp.Tokens[len(resp.Tokens)-1]
		next, err := pagination.EncodeCursor(pagination.Cursor{ID: strconv.FormatInt(int64(last.ID), 10)})
		if err != nil {
			return redemptiondomain.HistoryResponse{}, err
		}
		resp.NextPageToken = next
	}
	return resp, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.TTLDefault
	}
	if ttl < s.cfg.TTLMin {
		return s.cfg.TTLMin
	}
	if ttl > s.cfg.TTLMax {
		return s.cfg.TTLMax
	}
	return ttl
}

func rejected(reason redemptiondomain.Reason, token *redemptiondomain.RedemptionToken) redemptiondomain.Outcome {
	return redemptiondomain.Outcome{Accepted: false, Reason: reason, Token: token}
}
