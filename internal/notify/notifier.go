package notify

import (
	"context"
	"time"

	"promo-stop-alerts/internal/diff"
	"promo-stop-alerts/internal/marketplace"
)

// Enrollment 封装一次新入促销的通知上下文。
type Enrollment struct {
	UserID int64
	Market marketplace.Marketplace
	Item   diff.Item
	// AutoCancelScheduled tells the renderer a deferred withdrawal was
	// queued, so the message can warn about the grace-period deadline.
	AutoCancelScheduled bool
	// GracePeriod is the delay before the scheduled withdrawal fires.
	GracePeriod time.Duration
}

// Outcome reports the result of an automatic remediation attempt.
type Outcome struct {
	UserID    int64
	Market    marketplace.Marketplace
	ProductID string
	Kind      marketplace.ActionKind
	Succeeded bool
	Reason    string
}

// Notifier is the outbound port to the collaborator chat UI. Delivery is
// best effort; the engine never blocks a cycle on a failed send.
type Notifier interface {
	NotifyEnrollment(ctx context.Context, e Enrollment) error
	NotifyOutcome(ctx context.Context, o Outcome) error
}
