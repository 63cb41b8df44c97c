package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"promo-stop-alerts/internal/diff"
	"promo-stop-alerts/internal/marketplace"
	"promo-stop-alerts/internal/notify"
)

// SimulateNotify sends a fabricated enrollment notification through the
// real Telegram pipeline. Useful for verifying a bot token and chat ID
// without waiting for a marketplace to enroll something.
func (a *App) SimulateNotify(ctx context.Context, opts SimulateOptions) error {
	if opts.UserID == 0 {
		return errors.New("--user is required")
	}

	m := marketplace.Marketplace(opts.Marketplace)
	switch m {
	case marketplace.Ozon, marketplace.Wildberries:
	default:
		return fmt.Errorf("unknown marketplace %q (expected ozon or wb)", opts.Marketplace)
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("telegram notifications are disabled in config")
	}

	productID := opts.ProductID
	if productID == "" {
		productID = "123456789"
	}
	name := opts.ProductName
	if name == "" {
		name = "测试商品 (simulated)"
	}

	now := time.Now()
	item := diff.Item{
		Promotion: marketplace.Promotion{
			ID:        "sim-1",
			Title:     "Simulated flash sale",
			DateStart: now.Format(time.RFC3339),
			DateEnd:   now.Add(72 * time.Hour).Format(time.RFC3339),
			IsActive:  true,
		},
		Product: marketplace.Product{
			ID:            productID,
			PromotionID:   "sim-1",
			Name:          name,
			Price:         decimal.NewFromInt(1990),
			DiscountPrice: decimal.NewFromInt(990),
			DiscountPct:   decimal.NewFromInt(50),
		},
	}

	a.Logger.Info().
		Int64("user_id", opts.UserID).
		Str("marketplace", string(m)).
		Msg("sending simulated enrollment notification")

	return notifier.NotifyEnrollment(ctx, notify.Enrollment{
		UserID:              opts.UserID,
		Market:              m,
		Item:                item,
		AutoCancelScheduled: true,
		GracePeriod:         a.Config.Actions.GracePeriod,
	})
}
