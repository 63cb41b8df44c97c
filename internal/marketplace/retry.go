package marketplace

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryOptions bound the immediate-retry policy for transient failures.
// Attempts counts the first call; Attempts=3 means up to two retries.
type RetryOptions struct {
	Attempts int
	Backoff  time.Duration
}

type retryClient struct {
	Client
	opts   RetryOptions
	logger zerolog.Logger
}

// WithRetry decorates a client with bounded exponential backoff on
// transient errors. Auth and protocol failures are never retried; beyond
// the attempt budget, the next scheduled tick is the retry.
func WithRetry(c Client, opts RetryOptions, logger zerolog.Logger) Client {
	if opts.Attempts <= 1 {
		return c
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &retryClient{
		Client: c,
		opts:   opts,
		logger: logger.With().Str("component", "marketplace_retry").Str("marketplace", string(c.Marketplace())).Logger(),
	}
}

func (r *retryClient) ListPromotions(ctx context.Context, creds Credentials) ([]Promotion, error) {
	var promotions []Promotion
	err := r.do(ctx, "list_promotions", func() error {
		var err error
		promotions, err = r.Client.ListPromotions(ctx, creds)
		return err
	})
	return promotions, err
}

func (r *retryClient) ListProducts(ctx context.Context, creds Credentials, promotionID string, offset, limit int) ([]Product, error) {
	var products []Product
	err := r.do(ctx, "list_products", func() error {
		var err error
		products, err = r.Client.ListProducts(ctx, creds, promotionID, offset, limit)
		return err
	})
	return products, err
}

func (r *retryClient) Withdraw(ctx context.Context, creds Credentials, productID string) error {
	// Withdraw is idempotent per the client contract, so a retry after an
	// ambiguous transport failure is safe.
	return r.do(ctx, "withdraw", func() error {
		return r.Client.Withdraw(ctx, creds, productID)
	})
}

func (r *retryClient) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := r.opts.Backoff

	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == r.opts.Attempts {
			break
		}

		r.logger.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).
			Dur("backoff", backoff).Msg("transient marketplace error; retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return lastErr
}
