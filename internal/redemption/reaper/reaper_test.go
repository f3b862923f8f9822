package reaper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/tapsavehq/tapsave/internal/clock"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupReaper(t *testing.T, cfg Config) (*Reaper, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&redemptiondomain.RedemptionToken{},
		&offercapdomain.OfferDailyCounter{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	r := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Config: cfg,
	})
	return r, db, clk, node
}

func seedToken(t *testing.T, db *gorm.DB, node *snowflake.Node, status redemptiondomain.TokenStatus, expiresAt time.Time) string {
	t.Helper()
	token := &redemptiondomain.RedemptionToken{
		ID:         node.Generate(),
		TokenID:    uuid.NewString(),
		UserID:     "user-1",
		OfferID:    "offer-1",
		MerchantID: "merchant-1",
		IssuedAt:   expiresAt.Add(-90 * time.Second),
		ExpiresAt:  expiresAt,
		Status:     status,
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return token.TokenID
}

func TestExpireStaleTokens(t *testing.T) {
	r, db, clk, node := setupReaper(t, Config{})
	ctx := context.Background()

	stale := seedToken(t, db, node, redemptiondomain.TokenStatusActive, clk.Now().Add(-time.Minute))
	fresh := seedToken(t, db, node, redemptiondomain.TokenStatusActive, clk.Now().Add(time.Minute))
	consumed := seedToken(t, db, node, redemptiondomain.TokenStatusConsumed, clk.Now().Add(-time.Hour))

	count, err := r.ExpireStaleTokens(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 token expired, got %d", count)
	}

	want := map[string]redemptiondomain.TokenStatus{
		stale:    redemptiondomain.TokenStatusExpired,
		fresh:    redemptiondomain.TokenStatusActive,
		consumed: redemptiondomain.TokenStatusConsumed,
	}
	for tokenID, status := range want {
		var token redemptiondomain.RedemptionToken
		if err := db.First(&token, "token_id = ?", tokenID).Error; err != nil {
			t.Fatalf("load %s: %v", tokenID, err)
		}
		if token.Status != status {
			t.Fatalf("token %s: expected %s, got %s", tokenID, status, token.Status)
		}
	}
}

func TestExpireStaleTokensHonorsBatchSize(t *testing.T) {
	r, db, clk, node := setupReaper(t, Config{BatchSize: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedToken(t, db, node, redemptiondomain.TokenStatusActive, clk.Now().Add(-time.Minute))
	}

	count, err := r.ExpireStaleTokens(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected batch of 2, got %d", count)
	}
}

func TestPruneOldCounters(t *testing.T) {
	r, db, _, _ := setupReaper(t, Config{CounterRetention: 7 * 24 * time.Hour})
	ctx := context.Background()

	rows := []offercapdomain.OfferDailyCounter{
		{OfferID: "offer-1", Day: "2026-01-01", UsedCount: 4},
		{OfferID: "offer-1", Day: "2026-03-13", UsedCount: 2},
		{OfferID: "offer-1", Day: "2026-03-14", UsedCount: 1},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed counter: %v", err)
		}
	}

	count, err := r.PruneOldCounters(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 counter pruned, got %d", count)
	}

	var remaining int64
	if err := db.Model(&offercapdomain.OfferDailyCounter{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 counters left, got %d", remaining)
	}
}
