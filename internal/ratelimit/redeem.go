package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/tapsavehq/tapsave/internal/config"
)

const (
	keyIssueUser    = "redeem:issue:user:%s"
	keyScanMerchant = "redeem:scan:merchant:%s"
)

// ErrRateLimited marks a request denied by the abuse limiter. Unlike the
// quota and cap outcomes this is a transient condition and safe to retry.
var ErrRateLimited = errors.New("rate_limited")

// RedeemLimiter throttles token issuance per user and scans per
// merchant. A nil limiter (redis disabled) allows everything.
type RedeemLimiter struct {
	bucket *TokenBucket
	locker *Locker

	issueRate  float64
	issueBurst int
	scanRate   float64
	scanBurst  int
}

func NewRedeemLimiter(cfg config.Config) (*RedeemLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.IssueRate <= 0 || limitCfg.IssueBurst <= 0 {
		return nil, errors.New("issue rate limit must be positive")
	}
	if limitCfg.ScanRate <= 0 || limitCfg.ScanBurst <= 0 {
		return nil, errors.New("scan rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: limitCfg.RedisPassword,
		DB:       limitCfg.RedisDB,
	})

	return &RedeemLimiter{
		bucket:     NewTokenBucket(client),
		locker:     NewLocker(client),
		issueRate:  limitCfg.IssueRate,
		issueBurst: limitCfg.IssueBurst,
		scanRate:   limitCfg.ScanRate,
		scanBurst:  limitCfg.ScanBurst,
	}, nil
}

// Locker exposes the shared redis lock for background jobs.
func (l *RedeemLimiter) Locker() *Locker {
	if l == nil {
		return nil
	}
	return l.locker
}

func (l *RedeemLimiter) AllowIssue(ctx context.Context, userID string) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	return l.allow(ctx, fmt.Sprintf(keyIssueUser, userID), l.issueRate, l.issueBurst)
}

func (l *RedeemLimiter) AllowScan(ctx context.Context, merchantID string) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	return l.allow(ctx, fmt.Sprintf(keyScanMerchant, merchantID), l.scanRate, l.scanBurst)
}

func (l *RedeemLimiter) allow(ctx context.Context, key string, rate float64, burst int) error {
	allowed, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		// Redis being down must not take redemption down with it.
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}
