package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOfferService(t *testing.T) (offerdomain.Service, *gorm.DB) {
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
		&offerdomain.Merchant{},
		&offerdomain.Offer{},
		&offercapdomain.OfferDailyCounter{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	service := NewService(Params{DB: db, Log: zap.NewNop()})
	return service, db
}

func TestGetOffer(t *testing.T) {
	service, db := setupOfferService(t)
	ctx := context.Background()

	cap := 5
	if err := db.Create(&offerdomain.Offer{
		ID: "offer-1", MerchantID: "merchant-1", Title: "Free coffee", PerDayCap: &cap, Active: true,
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	offer, err := service.GetOffer(ctx, "offer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if offer.Title != "Free coffee" || offer.PerDayCap == nil || *offer.PerDayCap != 5 {
		t.Fatalf("unexpected offer %+v", offer)
	}

	if _, err := service.GetOffer(ctx, "offer-missing"); !errors.Is(err, offerdomain.ErrOfferNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.GetOffer(ctx, " "); !errors.Is(err, offerdomain.ErrInvalidOffer) {
		t.Fatalf("expected invalid offer, got %v", err)
	}
}

func TestListActiveJoinsUsedToday(t *testing.T) {
	service, db := setupOfferService(t)
	ctx := context.Background()

	if err := db.Create(&offerdomain.Merchant{ID: "merchant-1", Name: "Corner Coffee"}).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	offers := []offerdomain.Offer{
		{ID: "offer-live", MerchantID: "merchant-1", Title: "Live", Active: true},
		{ID: "offer-dark", MerchantID: "merchant-1", Title: "Dark", Active: false},
	}
	for i := range offers {
		if err := db.Create(&offers[i]).Error; err != nil {
			t.Fatalf("seed offer: %v", err)
		}
	}
	if err := db.Create(&offercapdomain.OfferDailyCounter{
		OfferID: "offer-live", Day: "2026-03-14", UsedCount: 3,
	}).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	rows, err := service.ListActive(ctx, "2026-03-14")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only active offers, got %d", len(rows))
	}
	row := rows[0]
	if row.ID != "offer-live" || row.MerchantName != "Corner Coffee" || row.UsedToday != 3 {
		t.Fatalf("unexpected row %+v", row)
	}

	// A day with no counter row reads as zero.
	rows, err = service.ListActive(ctx, "2026-03-15")
	if err != nil {
		t.Fatalf("list next day: %v", err)
	}
	if rows[0].UsedToday != 0 {
		t.Fatalf("expected 0 used, got %d", rows[0].UsedToday)
	}
}
