package marketplace

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Marketplace tags one of the supported seller platforms.
type Marketplace string

const (
	// Ozon requires an API key plus a Client-Id.
	Ozon Marketplace = "ozon"
	// Wildberries requires an API key only.
	Wildberries Marketplace = "wb"
)

// ActionKind names the remediation applied when a product must leave a promotion.
type ActionKind string

const (
	// ActionRemoveFromPromo deactivates an Ozon product from an action.
	ActionRemoveFromPromo ActionKind = "remove_from_promo"
	// ActionReturnDiscount resets a Wildberries product discount to zero.
	ActionReturnDiscount ActionKind = "return_discount"
)

// KindFor returns the remediation kind native to a marketplace.
func KindFor(m Marketplace) ActionKind {
	if m == Ozon {
		return ActionRemoveFromPromo
	}
	return ActionReturnDiscount
}

// Credentials is one seller's API access bundle for a single marketplace.
type Credentials struct {
	APIKey   string
	ClientID string
}

// CompleteFor reports whether the bundle suffices to call the given marketplace.
func (c Credentials) CompleteFor(m Marketplace) bool {
	if c.APIKey == "" {
		return false
	}
	if m == Ozon && c.ClientID == "" {
		return false
	}
	return true
}

// Promotion is a live campaign snapshot. Dates are kept as the raw
// marketplace strings; they are presentation-only.
type Promotion struct {
	ID        string
	Title     string
	DateStart string
	DateEnd   string
	IsActive  bool
}

// Product is one enrolled product inside a promotion.
type Product struct {
	ID            string
	PromotionID   string
	Name          string
	Price         decimal.Decimal
	DiscountPrice decimal.Decimal
	DiscountPct   decimal.Decimal
}

// Client is the uniform per-marketplace adapter contract.
type Client interface {
	Marketplace() Marketplace
	ListPromotions(ctx context.Context, creds Credentials) ([]Promotion, error)
	// ListProducts returns one page of enrolled products for a promotion.
	ListProducts(ctx context.Context, creds Credentials, promotionID string, offset, limit int) ([]Product, error)
	// Withdraw takes the product out of its promotion (Ozon) or resets its
	// discount to zero (Wildberries). Repeating the call on an
	// already-withdrawn product is not an error.
	Withdraw(ctx context.Context, creds Credentials, productID string) error
}

// ListAllProducts drains every page of a promotion's product list. Partial
// pages would under-report withdrawal candidates, so any page failure fails
// the whole listing.
func ListAllProducts(ctx context.Context, c Client, creds Credentials, promotionID string, pageSize int) ([]Product, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	var all []Product
	for offset := 0; ; offset += pageSize {
		page, err := c.ListProducts(ctx, creds, promotionID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
