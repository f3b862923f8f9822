// Package reaper sweeps stale active tokens and old daily counters.
// Validation re-checks expiry itself, so the sweep is housekeeping for
// reporting and history, never a correctness requirement.
package reaper

import (
	"context"
	"time"

	"github.com/tapsavehq/tapsave/internal/clock"
	"github.com/tapsavehq/tapsave/internal/config"
	obsmetrics "github.com/tapsavehq/tapsave/internal/observability/metrics"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	"github.com/tapsavehq/tapsave/internal/ratelimit"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepLockKey = "redemption:reaper:sweep"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Limiter    *ratelimit.RedeemLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
	Config     Config                   `optional:"true"`
}

type Reaper struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
	cfg        Config
}

func New(p Params) *Reaper {
	return &Reaper{
		db:         p.DB,
		log:        p.Log.Named("redemption.reaper"),
		clock:      p.Clock,
		locker:     p.Limiter.Locker(),
		obsMetrics: p.ObsMetrics,
		cfg:        p.Config.withDefaults(),
	}
}

// Run loops until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	// With multiple instances only one sweeper needs to run per tick.
	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, sweepLockKey, r.cfg.Interval)
		if err != nil {
			r.log.Warn("sweep lock unavailable, sweeping anyway", zap.Error(err))
		} else if !ok {
			return
		} else {
			defer func() {
				_ = r.locker.Release(ctx, sweepLockKey, token)
			}()
		}
	}

	expired, err := r.ExpireStaleTokens(ctx)
	if err != nil {
		r.log.Error("expire stale tokens", zap.Error(err))
	} else if expired > 0 {
		r.log.Info("expired stale tokens", zap.Int64("count", expired))
		r.obsMetrics.RecordTokensReaped(ctx, expired)
	}

	pruned, err := r.PruneOldCounters(ctx)
	if err != nil {
		r.log.Error("prune old counters", zap.Error(err))
	} else if pruned > 0 {
		r.log.Info("pruned old counters", zap.Int64("count", pruned))
	}
}

// ExpireStaleTokens marks active tokens past their expiry as expired,
// one batch per call.
func (r *Reaper) ExpireStaleTokens(ctx context.Context) (int64, error) {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).Exec(
		`UPDATE redemption_tokens
		 SET status = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM redemption_tokens
			WHERE status = ? AND expires_at <= ?
			LIMIT ?
		 )`,
		redemptiondomain.TokenStatusExpired, now,
		redemptiondomain.TokenStatusActive, now,
		r.cfg.BatchSize,
	)
	return result.RowsAffected, result.Error
}

// PruneOldCounters deletes daily counters older than the retention
// window. Day keys sort lexicographically, so a string compare is a
// date compare.
func (r *Reaper) PruneOldCounters(ctx context.Context) (int64, error) {
	cutoff := offercapdomain.DayKey(r.clock.Now().Add(-r.cfg.CounterRetention), time.UTC)
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM offer_daily_counters WHERE day < ?`,
		cutoff,
	)
	return result.RowsAffected, result.Error
}

var Module = fx.Module("redemption.reaper",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(register),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Interval:  cfg.ReaperInterval,
		BatchSize: cfg.ReaperBatchSize,
	}.withDefaults()
}

func register(lc fx.Lifecycle, r *Reaper) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
