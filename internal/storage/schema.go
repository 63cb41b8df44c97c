package storage

import (
	"context"
	"fmt"
)

// The users and ignored_products tables are owned by the interactive bot
// front-end; the engine only reads them. They are still created here so a
// fresh database works end to end.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    subscription_end DATE NOT NULL,
    monitoring_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    auto_cancel_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    ozon_api_key TEXT,
    ozon_client_id TEXT,
    wb_api_key TEXT
);

CREATE TABLE IF NOT EXISTS ignored_products (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    marketplace TEXT NOT NULL,
    product_id TEXT NOT NULL,
    PRIMARY KEY (user_id, marketplace, product_id)
);

CREATE TABLE IF NOT EXISTS promotion_snapshots (
    user_id BIGINT NOT NULL,
    marketplace TEXT NOT NULL,
    promotion_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    date_start TEXT NOT NULL DEFAULT '',
    date_end TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (user_id, marketplace, promotion_id)
);

CREATE TABLE IF NOT EXISTS pending_actions (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    marketplace TEXT NOT NULL,
    product_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    fire_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pending_actions_fire_at ON pending_actions(fire_at);

CREATE TABLE IF NOT EXISTS action_log (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    marketplace TEXT NOT NULL,
    kind TEXT NOT NULL,
    product_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_action_log_created_at ON action_log(created_at);
`

// EnsureSchema creates the engine tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, schemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}
