package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"promo-stop-alerts/internal/config"
	"promo-stop-alerts/internal/diff"
	"promo-stop-alerts/internal/marketplace"
	"promo-stop-alerts/internal/notify"
	"promo-stop-alerts/internal/storage"
)

// Service orchestrates the two reconciliation cycles: the poll cycle that
// discovers newly enrolled products and the sweep cycle that executes due
// deferred withdrawals. Failures are isolated per user/marketplace; one
// seller's broken credentials never abort anyone else's cycle.
type Service struct {
	clients  []marketplace.Client
	users    storage.UserDirectory
	snaps    storage.SnapshotStore
	queue    storage.ActionQueue
	audit    storage.ActionLog
	notifier notify.Notifier
	logger   zerolog.Logger

	grace      time.Duration
	workers    int
	pageLimits map[marketplace.Marketplace]int

	locker       storage.AdvisoryLocker
	pollLockKey  int64
	sweepLockKey int64
}

// New constructs the reconciliation service.
func New(
	cfg *config.Config,
	clients []marketplace.Client,
	users storage.UserDirectory,
	snaps storage.SnapshotStore,
	queue storage.ActionQueue,
	audit storage.ActionLog,
	notifier notify.Notifier,
	logger zerolog.Logger,
) *Service {
	workers := cfg.Poll.Workers
	if workers <= 0 {
		workers = 1
	}

	grace := cfg.Actions.GracePeriod
	if grace <= 0 {
		grace = time.Hour
	}

	var locker storage.AdvisoryLocker
	if l, ok := users.(storage.AdvisoryLocker); ok {
		locker = l
	}

	pageLimits := map[marketplace.Marketplace]int{
		marketplace.Ozon:        100,
		marketplace.Wildberries: 1000,
	}
	if cfg.Ozon.PageLimit > 0 {
		pageLimits[marketplace.Ozon] = cfg.Ozon.PageLimit
	}
	if cfg.Wildberries.PageLimit > 0 {
		pageLimits[marketplace.Wildberries] = cfg.Wildberries.PageLimit
	}

	return &Service{
		clients:      clients,
		users:        users,
		snaps:        snaps,
		queue:        queue,
		audit:        audit,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		grace:        grace,
		workers:      workers,
		pageLimits:   pageLimits,
		locker:       locker,
		pollLockKey:  cfg.Poll.AdvisoryLockKey,
		sweepLockKey: cfg.Sweep.AdvisoryLockKey,
	}
}

// PollTick runs one poll cycle: every eligible user is reconciled against
// both marketplaces with bounded parallelism.
func (s *Service) PollTick(ctx context.Context, now time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx, s.pollLockKey)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Msg("skip poll tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	users, err := s.users.ListEligibleUsers(ctx)
	if err != nil {
		return fmt.Errorf("list eligible users: %w", err)
	}

	s.logger.Info().Int("users", len(users)).Msg("poll cycle started")

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			s.pollUser(ctx, now, u)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info().Int("users", len(users)).Msg("poll cycle finished")
	return nil
}

// pollUser reconciles one seller across all marketplaces. Errors terminate
// only the affected user/marketplace pair.
func (s *Service) pollUser(ctx context.Context, now time.Time, u storage.User) {
	for _, client := range s.clients {
		m := client.Marketplace()
		creds := u.CredentialsFor(m)
		if !creds.CompleteFor(m) {
			s.logger.Debug().Int64("user_id", u.ID).Str("marketplace", string(m)).
				Msg("credential bundle incomplete; skipping marketplace")
			continue
		}

		if err := s.pollMarketplace(ctx, now, u, client, creds); err != nil {
			s.logger.Error().Err(err).Int64("user_id", u.ID).Str("marketplace", string(m)).
				Msg("marketplace poll failed; continuing with next user")
		}
	}
}

func (s *Service) pollMarketplace(ctx context.Context, now time.Time, u storage.User, client marketplace.Client, creds marketplace.Credentials) error {
	m := client.Marketplace()

	promotions, err := client.ListPromotions(ctx, creds)
	if err != nil {
		return err
	}

	// Replace-all before reading: the enrolled-product iteration below must
	// never run against a stale snapshot.
	if err := s.snaps.ReplacePromotions(ctx, u.ID, m, promotions); err != nil {
		return err
	}

	ignored, err := s.users.IgnoredProducts(ctx, u.ID, m)
	if err != nil {
		return err
	}

	pageSize := s.pageLimits[m]
	if pageSize <= 0 {
		pageSize = 100
	}
	for _, promotion := range promotions {
		if !promotion.IsActive {
			continue
		}

		products, err := marketplace.ListAllProducts(ctx, client, creds, promotion.ID, pageSize)
		if err != nil {
			// Skip the whole promotion: a partial page would under-report
			// withdrawal candidates.
			s.logger.Error().Err(err).Int64("user_id", u.ID).Str("marketplace", string(m)).
				Str("promotion_id", promotion.ID).Msg("product listing failed; skipping promotion")
			continue
		}

		for _, item := range diff.Actionable(promotion, products, ignored) {
			s.surface(ctx, now, u, m, item)
		}
	}
	return nil
}

// surface notifies the user about one actionable product and, when
// auto-cancel is on, schedules the deferred withdrawal. The enqueue is
// unconditional: a product still surfaced on the next poll gets a fresh
// entry even if an earlier one is pending.
func (s *Service) surface(ctx context.Context, now time.Time, u storage.User, m marketplace.Marketplace, item diff.Item) {
	if u.AutoCancelEnabled {
		action := storage.PendingAction{
			ID:        uuid.New(),
			UserID:    u.ID,
			Market:    m,
			ProductID: item.Product.ID,
			Kind:      marketplace.KindFor(m),
			FireAt:    now.Add(s.grace),
		}
		if err := s.queue.Enqueue(ctx, action); err != nil {
			s.logger.Error().Err(err).Int64("user_id", u.ID).Str("product_id", item.Product.ID).
				Msg("failed to enqueue pending action")
		}
	}

	if err := s.notifier.NotifyEnrollment(ctx, notify.Enrollment{
		UserID:              u.ID,
		Market:              m,
		Item:                item,
		AutoCancelScheduled: u.AutoCancelEnabled,
		GracePeriod:         s.grace,
	}); err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Str("product_id", item.Product.ID).
			Msg("failed to send enrollment notification")
	}
}

// SweepTick runs one sweep cycle over due deferred actions. Due entries are
// claimed out of the queue before any remediation runs: at most one attempt
// per entry, failures surface only as a notification, and a user cancelling
// an entry either wins before the claim or has no effect.
func (s *Service) SweepTick(ctx context.Context, now time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx, s.sweepLockKey)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Msg("skip sweep tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	due, err := s.queue.Claim(ctx, now)
	if err != nil {
		return fmt.Errorf("claim due actions: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info().Int("due", len(due)).Msg("sweep cycle started")

	for _, action := range due {
		s.executeAction(ctx, action)
	}

	s.logger.Info().Int("due", len(due)).Msg("sweep cycle finished")
	return nil
}

func (s *Service) executeAction(ctx context.Context, action storage.PendingAction) {
	outcome := notify.Outcome{
		UserID:    action.UserID,
		Market:    action.Market,
		ProductID: action.ProductID,
		Kind:      action.Kind,
	}

	if err := s.withdraw(ctx, action); err != nil {
		outcome.Reason = err.Error()
		s.logger.Error().Err(err).Int64("user_id", action.UserID).
			Str("marketplace", string(action.Market)).Str("product_id", action.ProductID).
			Msg("automatic remediation failed")
	} else {
		outcome.Succeeded = true
		if _, err := s.audit.Insert(ctx, storage.ActionRecord{
			UserID:    action.UserID,
			Market:    action.Market,
			Kind:      "auto_" + string(action.Kind),
			ProductID: action.ProductID,
		}); err != nil {
			s.logger.Error().Err(err).Int64("user_id", action.UserID).
				Msg("failed to record remediation in action log")
		}
	}

	if err := s.notifier.NotifyOutcome(ctx, outcome); err != nil {
		s.logger.Error().Err(err).Int64("user_id", action.UserID).
			Msg("failed to send outcome notification")
	}
}

func (s *Service) withdraw(ctx context.Context, action storage.PendingAction) error {
	client := s.clientFor(action.Market)
	if client == nil {
		return fmt.Errorf("no client configured for marketplace %s", action.Market)
	}

	creds, err := s.users.CredentialsFor(ctx, action.UserID, action.Market)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}
	if !creds.CompleteFor(action.Market) {
		return fmt.Errorf("credential bundle for %s is incomplete", action.Market)
	}

	return client.Withdraw(ctx, creds, action.ProductID)
}

func (s *Service) clientFor(m marketplace.Marketplace) marketplace.Client {
	for _, c := range s.clients {
		if c.Marketplace() == m {
			return c
		}
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context, key int64) (func(), bool, error) {
	if key == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
