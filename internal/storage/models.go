package storage

import (
	"time"

	"github.com/google/uuid"

	"promo-stop-alerts/internal/marketplace"
)

// User is the engine's read view of a registered seller. Ownership of the
// row stays with the interactive front-end; the engine only selects.
type User struct {
	ID                int64
	SubscriptionEnd   time.Time
	MonitoringEnabled bool
	AutoCancelEnabled bool
	Ozon              marketplace.Credentials
	Wildberries       marketplace.Credentials
}

// CredentialsFor returns the bundle for one marketplace, possibly incomplete.
func (u User) CredentialsFor(m marketplace.Marketplace) marketplace.Credentials {
	if m == marketplace.Ozon {
		return u.Ozon
	}
	return u.Wildberries
}

// PendingAction is one persisted deferred remediation: "withdraw this
// product at FireAt unless the user acted first".
type PendingAction struct {
	ID        uuid.UUID
	UserID    int64
	Market    marketplace.Marketplace
	ProductID string
	Kind      marketplace.ActionKind
	FireAt    time.Time
	CreatedAt time.Time
}

// ActionRecord is one audit row of a performed remediation. Kind carries an
// "auto_" prefix when the sweep, not the user, triggered it.
type ActionRecord struct {
	ID        int64
	UserID    int64
	Market    marketplace.Marketplace
	Kind      string
	ProductID string
	CreatedAt time.Time
}

// DayCount aggregates remediations per day and marketplace for analytics.
type DayCount struct {
	Day    time.Time
	Market marketplace.Marketplace
	Count  int64
}
