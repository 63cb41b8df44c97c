package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"promo-stop-alerts/internal/diff"
	"promo-stop-alerts/internal/marketplace"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listEligibleUsersSQL = `SELECT
        id,
        subscription_end,
        auto_cancel_enabled,
        COALESCE(ozon_api_key, ''),
        COALESCE(ozon_client_id, ''),
        COALESCE(wb_api_key, '')
    FROM users
    WHERE subscription_end >= CURRENT_DATE
      AND monitoring_enabled;`

	credentialsSQL = `SELECT
        COALESCE(ozon_api_key, ''),
        COALESCE(ozon_client_id, ''),
        COALESCE(wb_api_key, '')
    FROM users
    WHERE id = $1;`

	ignoredProductsSQL = `SELECT product_id
    FROM ignored_products
    WHERE user_id = $1
      AND marketplace IN ($2, 'any');`

	deleteSnapshotSQL = `DELETE FROM promotion_snapshots
    WHERE user_id = $1 AND marketplace = $2;`

	insertSnapshotSQL = `INSERT INTO promotion_snapshots (
        user_id,
        marketplace,
        promotion_id,
        title,
        date_start,
        date_end,
        is_active
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (user_id, marketplace, promotion_id) DO NOTHING;`

	enqueueActionSQL = `INSERT INTO pending_actions (
        id,
        user_id,
        marketplace,
        product_id,
        kind,
        fire_at
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	claimDueActionsSQL = `DELETE FROM pending_actions
    WHERE fire_at <= $1
    RETURNING id, user_id, marketplace, product_id, kind, fire_at, created_at;`

	listPendingActionsSQL = `SELECT id, user_id, marketplace, product_id, kind, fire_at, created_at
    FROM pending_actions
    ORDER BY fire_at
    LIMIT $1;`

	insertActionRecordSQL = `INSERT INTO action_log (
        user_id,
        marketplace,
        kind,
        product_id
    ) VALUES ($1,$2,$3,$4)
    RETURNING id, created_at;`

	listRecentActionsSQL = `SELECT id, user_id, marketplace, kind, product_id, created_at
    FROM action_log
    ORDER BY created_at DESC
    LIMIT $1;`

	countActionsByDaySQL = `SELECT
        date_trunc('day', created_at) AS day,
        marketplace,
        COUNT(*)
    FROM action_log
    WHERE created_at >= $1
      AND created_at < $2
    GROUP BY day, marketplace
    ORDER BY day;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// UserDirectory is the narrow read interface onto the registry the
// interactive front-end owns.
type UserDirectory interface {
	ListEligibleUsers(ctx context.Context) ([]User, error)
	IgnoredProducts(ctx context.Context, userID int64, m marketplace.Marketplace) (diff.IgnoreSet, error)
	CredentialsFor(ctx context.Context, userID int64, m marketplace.Marketplace) (marketplace.Credentials, error)
}

// SnapshotStore persists per-user promotion snapshots with replace-all
// semantics.
type SnapshotStore interface {
	ReplacePromotions(ctx context.Context, userID int64, m marketplace.Marketplace, promotions []marketplace.Promotion) error
}

// ActionQueue is the deferred-action queue. Enqueue is unconditional: no
// dedup against already-pending entries for the same product. Claim removes
// and returns the due entries in one statement, so a user cancelling an
// entry concurrently either wins before the claim or has no effect.
type ActionQueue interface {
	Enqueue(ctx context.Context, action PendingAction) error
	Claim(ctx context.Context, now time.Time) ([]PendingAction, error)
}

// ActionLog audits performed remediations.
type ActionLog interface {
	Insert(ctx context.Context, record ActionRecord) (ActionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]ActionRecord, error)
	CountByDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to users, snapshots, the pending-action queue,
// and the action log on one shared pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// unlock best effort; releasing the session frees the lock anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ListEligibleUsers selects users with a valid subscription and monitoring
// enabled.
func (s *Store) ListEligibleUsers(ctx context.Context) ([]User, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEligibleUsersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list eligible users: %w", queryErr)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		var ozonKey, ozonClient, wbKey string
		if err := rows.Scan(&u.ID, &u.SubscriptionEnd, &u.AutoCancelEnabled, &ozonKey, &ozonClient, &wbKey); err != nil {
			return nil, fmt.Errorf("scan eligible user: %w", err)
		}
		u.MonitoringEnabled = true
		u.Ozon = marketplace.Credentials{APIKey: ozonKey, ClientID: ozonClient}
		u.Wildberries = marketplace.Credentials{APIKey: wbKey}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

// CredentialsFor reads one user's bundle for a marketplace.
func (s *Store) CredentialsFor(ctx context.Context, userID int64, m marketplace.Marketplace) (marketplace.Credentials, error) {
	pool, err := s.getPool()
	if err != nil {
		return marketplace.Credentials{}, err
	}

	var ozonKey, ozonClient, wbKey string
	if err := pool.QueryRow(ctx, credentialsSQL, userID).Scan(&ozonKey, &ozonClient, &wbKey); err != nil {
		return marketplace.Credentials{}, fmt.Errorf("credentials for user %d: %w", userID, err)
	}

	if m == marketplace.Ozon {
		return marketplace.Credentials{APIKey: ozonKey, ClientID: ozonClient}, nil
	}
	return marketplace.Credentials{APIKey: wbKey}, nil
}

// IgnoredProducts returns the user's suppressed product ids for a
// marketplace, including entries scoped to any marketplace.
func (s *Store) IgnoredProducts(ctx context.Context, userID int64, m marketplace.Marketplace) (diff.IgnoreSet, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, ignoredProductsSQL, userID, string(m))
	if queryErr != nil {
		return nil, fmt.Errorf("ignored products: %w", queryErr)
	}
	defer rows.Close()

	ignored := make(diff.IgnoreSet)
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("scan ignored product: %w", err)
		}
		ignored[productID] = struct{}{}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ignored, nil
}

// ReplacePromotions swaps a user's promotion snapshot for one marketplace
// in a single transaction, so concurrent readers never observe a
// half-replaced snapshot.
func (s *Store) ReplacePromotions(ctx context.Context, userID int64, m marketplace.Marketplace, promotions []marketplace.Promotion) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, deleteSnapshotSQL, userID, string(m)); err != nil {
		return fmt.Errorf("delete promotion snapshot: %w", err)
	}

	// A response listing the same promotion id twice keeps the first row
	// instead of aborting the transaction.
	for _, p := range promotions {
		if _, err := tx.Exec(ctx, insertSnapshotSQL,
			userID, string(m), p.ID, p.Title, p.DateStart, p.DateEnd, p.IsActive,
		); err != nil {
			return fmt.Errorf("insert promotion snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// Enqueue inserts a deferred action unconditionally.
func (s *Store) Enqueue(ctx context.Context, action PendingAction) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, enqueueActionSQL,
		action.ID,
		action.UserID,
		string(action.Market),
		action.ProductID,
		string(action.Kind),
		action.FireAt,
	); execErr != nil {
		return fmt.Errorf("enqueue pending action: %w", execErr)
	}
	return nil
}

// Claim atomically removes and returns every pending action with
// fire_at <= now. Claimed entries are gone from the queue before any
// remediation runs, so each gets at most one attempt.
func (s *Store) Claim(ctx context.Context, now time.Time) ([]PendingAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, claimDueActionsSQL, now)
	if queryErr != nil {
		return nil, fmt.Errorf("claim due actions: %w", queryErr)
	}
	defer rows.Close()

	return scanPendingActions(rows)
}

// ListPending returns queued actions ordered by fire time.
func (s *Store) ListPending(ctx context.Context, limit int) ([]PendingAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPendingActionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list pending actions: %w", queryErr)
	}
	defer rows.Close()

	return scanPendingActions(rows)
}

// Insert persists one remediation audit record.
func (s *Store) Insert(ctx context.Context, record ActionRecord) (ActionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return ActionRecord{}, err
	}

	row := pool.QueryRow(ctx, insertActionRecordSQL,
		record.UserID,
		string(record.Market),
		record.Kind,
		record.ProductID,
	)
	if scanErr := row.Scan(&record.ID, &record.CreatedAt); scanErr != nil {
		return ActionRecord{}, fmt.Errorf("insert action record: %w", scanErr)
	}
	return record, nil
}

// ListRecent lists most recent remediations.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]ActionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentActionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent actions: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ActionRecord, 0, limit)
	for rows.Next() {
		var rec ActionRecord
		var market string
		if err := rows.Scan(&rec.ID, &rec.UserID, &market, &rec.Kind, &rec.ProductID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		rec.Market = marketplace.Marketplace(market)
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountByDay aggregates remediations per day and marketplace inside a window.
func (s *Store) CountByDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, countActionsByDaySQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("count actions by day: %w", queryErr)
	}
	defer rows.Close()

	counts := make([]DayCount, 0)
	for rows.Next() {
		var dc DayCount
		var market string
		if err := rows.Scan(&dc.Day, &market, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		dc.Market = marketplace.Marketplace(market)
		counts = append(counts, dc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

func scanPendingActions(rows pgx.Rows) ([]PendingAction, error) {
	actions := make([]PendingAction, 0)
	for rows.Next() {
		var a PendingAction
		var market, kind string
		if err := rows.Scan(&a.ID, &a.UserID, &market, &a.ProductID, &kind, &a.FireAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		a.Market = marketplace.Marketplace(market)
		a.Kind = marketplace.ActionKind(kind)
		actions = append(actions, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return actions, nil
}
