// Package diff computes which enrolled products are actionable for a user:
// everything the live promotion listing reports, minus the user's ignore
// set. Pure bookkeeping, no side effects.
package diff

import "promo-stop-alerts/internal/marketplace"

// Item pairs an actionable product with the promotion it was found in, so
// notification rendering has its context.
type Item struct {
	Promotion marketplace.Promotion
	Product   marketplace.Product
}

// IgnoreSet is a user's suppressed product ids for one marketplace.
type IgnoreSet map[string]struct{}

// Contains reports whether a product id is suppressed.
func (s IgnoreSet) Contains(productID string) bool {
	_, ok := s[productID]
	return ok
}

// Actionable filters the full enrolled-product list of one promotion down
// to the products not on the ignore set. Input order is preserved.
func Actionable(promotion marketplace.Promotion, products []marketplace.Product, ignored IgnoreSet) []Item {
	items := make([]Item, 0, len(products))
	for _, p := range products {
		if ignored.Contains(p.ID) {
			continue
		}
		items = append(items, Item{Promotion: promotion, Product: p})
	}
	return items
}
