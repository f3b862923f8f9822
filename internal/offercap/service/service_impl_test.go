package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tapsavehq/tapsave/internal/clock"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCapService(t *testing.T) (offercapdomain.Service, *gorm.DB) {
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

	if err := db.AutoMigrate(&offercapdomain.OfferDailyCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	service := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
	})
	return service, db
}

func intPtr(v int) *int { return &v }

func TestTryIncrementStopsAtCap(t *testing.T) {
	service, _ := setupCapService(t)
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		used, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", intPtr(2))
		if err != nil {
			t.Fatalf("increment %d: %v", want, err)
		}
		if used != want {
			t.Fatalf("expected used %d, got %d", want, used)
		}
	}

	_, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", intPtr(2))
	if !errors.Is(err, offercapdomain.ErrCapReached) {
		t.Fatalf("expected cap reached, got %v", err)
	}

	used, err := service.UsedOn(ctx, "offer-1", "2026-03-14")
	if err != nil {
		t.Fatalf("used on: %v", err)
	}
	if used != 2 {
		t.Fatalf("expected used 2, got %d", used)
	}
}

func TestTryIncrementUncapped(t *testing.T) {
	service, _ := setupCapService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", nil); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	used, err := service.UsedOn(ctx, "offer-1", "2026-03-14")
	if err != nil {
		t.Fatalf("used on: %v", err)
	}
	if used != 10 {
		t.Fatalf("expected used 10, got %d", used)
	}
}

func TestTryIncrementConcurrentNeverExceedsCap(t *testing.T) {
	service, _ := setupCapService(t)
	ctx := context.Background()

	const attempts = 12
	const cap = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", intPtr(cap))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, offercapdomain.ErrCapReached):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != cap {
		t.Fatalf("expected exactly %d accepted, got %d", cap, accepted)
	}
}

func TestDaysAreIndependent(t *testing.T) {
	service, _ := setupCapService(t)
	ctx := context.Background()

	if _, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", intPtr(1)); err != nil {
		t.Fatalf("day one: %v", err)
	}
	if _, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-14", intPtr(1)); !errors.Is(err, offercapdomain.ErrCapReached) {
		t.Fatalf("expected cap reached, got %v", err)
	}
	// Next calendar day starts a fresh counter.
	if _, err := service.TryIncrement(ctx, nil, "offer-1", "2026-03-15", intPtr(1)); err != nil {
		t.Fatalf("next day: %v", err)
	}
}

func TestUsedOnMissingRowIsZero(t *testing.T) {
	service, _ := setupCapService(t)

	used, err := service.UsedOn(context.Background(), "offer-none", "2026-03-14")
	if err != nil {
		t.Fatalf("used on: %v", err)
	}
	if used != 0 {
		t.Fatalf("expected 0, got %d", used)
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	// 2026-03-14 23:30 UTC is already the 15th in Tokyo.
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	if got := offercapdomain.DayKey(at, time.UTC); got != "2026-03-14" {
		t.Fatalf("utc day key: %s", got)
	}
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if got := offercapdomain.DayKey(at, tokyo); got != "2026-03-15" {
		t.Fatalf("tokyo day key: %s", got)
	}
}
