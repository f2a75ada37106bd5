package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are applied in order by EnsureSchema. All are
// idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		market_id     TEXT PRIMARY KEY,
		question      TEXT NOT NULL DEFAULT '',
		outcome_up    TEXT NOT NULL DEFAULT '',
		outcome_down  TEXT NOT NULL DEFAULT '',
		token_up      TEXT NOT NULL DEFAULT '',
		token_down    TEXT NOT NULL DEFAULT '',
		volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ,
		closed        BOOLEAN NOT NULL DEFAULT FALSE,
		closed_time   TIMESTAMPTZ,
		first_seen    TIMESTAMPTZ NOT NULL,
		last_updated  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trades (
		trade_id      TEXT PRIMARY KEY,
		market_id     TEXT NOT NULL,
		asset_id      TEXT NOT NULL,
		side          TEXT NOT NULL,
		outcome       TEXT NOT NULL DEFAULT '',
		price         NUMERIC(18,6) NOT NULL,
		size          NUMERIC(24,6) NOT NULL,
		fee_rate_bps  INTEGER NOT NULL DEFAULT 0,
		event_ts      TIMESTAMPTZ NOT NULL,
		source        TEXT NOT NULL,
		recorded_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades (market_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades (asset_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_market_ts ON trades (market_id, event_ts)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
