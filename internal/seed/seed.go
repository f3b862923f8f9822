// Package seed provisions schema and demo rows for local development.
package seed

import (
	offerdomain "github.com/tapsavehq/tapsave/internal/offer/domain"
	offercapdomain "github.com/tapsavehq/tapsave/internal/offercap/domain"
	quotadomain "github.com/tapsavehq/tapsave/internal/quota/domain"
	redemptiondomain "github.com/tapsavehq/tapsave/internal/redemption/domain"
	referraldomain "github.com/tapsavehq/tapsave/internal/referral/domain"
	"gorm.io/gorm"
)

// AutoMigrate derives the schema from the domain models for databases
// not covered by the SQL migrations.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&offerdomain.Merchant{},
		&offerdomain.Offer{},
		&quotadomain.QuotaRecord{},
		&offercapdomain.OfferDailyCounter{},
		&redemptiondomain.RedemptionToken{},
		&referraldomain.ReferralCode{},
		&referraldomain.ReferralRedemption{},
	)
}

// EnsureDemoData inserts a demo merchant with two offers when the
// directory is empty.
func EnsureDemoData(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&offerdomain.Merchant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	merchant := offerdomain.Merchant{
		ID:          "demo-merchant",
		Name:        "Corner Coffee",
		AddressText: "12 Main St",
	}
	if err := conn.Create(&merchant).Error; err != nil {
		return err
	}

	capFive := 5
	offers := []offerdomain.Offer{
		{
			ID:         "demo-offer-coffee",
			MerchantID: merchant.ID,
			Title:      "Free small coffee",
			Terms:      "One per visit.",
			PerDayCap:  &capFive,
			Active:     true,
		},
		{
			ID:         "demo-offer-pastry",
			MerchantID: merchant.ID,
			Title:      "Half-price pastry",
			Active:     true,
		},
	}
	return conn.Create(&offers).Error
}
