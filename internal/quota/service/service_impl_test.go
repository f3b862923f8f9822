package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tapsavehq/tapsave/internal/clock"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupQuotaService(t *testing.T, allowance int) (quotadomain.Service, *gorm.DB) {
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

	if err := db.AutoMigrate(&quotadomain.QuotaRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	service := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		Config: Config{StartingAllowance: allowance},
	})
	return service, db
}

func TestPeekCreatesStartingAllowance(t *testing.T) {
	service, _ := setupQuotaService(t, 3)
	ctx := context.Background()

	remaining, err := service.PeekRemaining(ctx, "user-1")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected starting allowance 3, got %d", remaining)
	}

	// Peek never consumes.
	remaining, err = service.PeekRemaining(ctx, "user-1")
	if err != nil {
		t.Fatalf("peek again: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected 3 after second peek, got %d", remaining)
	}
}

func TestCheckAndReserveDecrementsToZero(t *testing.T) {
	service, _ := setupQuotaService(t, 2)
	ctx := context.Background()

	for want := 1; want >= 0; want-- {
		remaining, err := service.CheckAndReserve(ctx, nil, "user-1")
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if remaining != want {
			t.Fatalf("expected remaining %d, got %d", want, remaining)
		}
	}

	_, err := service.CheckAndReserve(ctx, nil, "user-1")
	if !errors.Is(err, quotadomain.ErrQuotaExhausted) {
		t.Fatalf("expected quota exhausted, got %v", err)
	}
	if err.Error() != "free_limit_reached" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	service, _ := setupQuotaService(t, 3)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.CheckAndReserve(ctx, nil, "user-1")
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, quotadomain.ErrQuotaExhausted):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if granted != 3 {
		t.Fatalf("expected exactly 3 grants, got %d", granted)
	}

	remaining, err := service.PeekRemaining(ctx, "user-1")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
}

func TestGrantRestoresBalance(t *testing.T) {
	service, _ := setupQuotaService(t, 1)
	ctx := context.Background()

	if _, err := service.CheckAndReserve(ctx, nil, "user-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := service.CheckAndReserve(ctx, nil, "user-1"); !errors.Is(err, quotadomain.ErrQuotaExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}

	remaining, err := service.Grant(ctx, nil, "user-1", 2)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 after grant, got %d", remaining)
	}

	if _, err := service.Grant(ctx, nil, "user-1", 0); !errors.Is(err, quotadomain.ErrInvalidGrant) {
		t.Fatalf("expected invalid grant, got %v", err)
	}
}

func TestCheckAndReserveRejectsBlankUser(t *testing.T) {
	service, _ := setupQuotaService(t, 3)

	if _, err := service.CheckAndReserve(context.Background(), nil, "  "); !errors.Is(err, quotadomain.ErrInvalidUser) {
		t.Fatalf("expected invalid user, got %v", err)
	}
}
