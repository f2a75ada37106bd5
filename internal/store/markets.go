package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// UpsertMarket inserts or refreshes one market row. first_seen is set
// on insert and preserved on update; last_updated always advances.
func (s *Store) UpsertMarket(ctx context.Context, m model.Market) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO markets (market_id, question, outcome_up, outcome_down, token_up, token_down,
		                     volume, created_at, closed, closed_time, first_seen, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (market_id) DO UPDATE SET
			question     = EXCLUDED.question,
			outcome_up   = EXCLUDED.outcome_up,
			outcome_down = EXCLUDED.outcome_down,
			token_up     = EXCLUDED.token_up,
			token_down   = EXCLUDED.token_down,
			volume       = EXCLUDED.volume,
			created_at   = EXCLUDED.created_at,
			closed       = EXCLUDED.closed,
			closed_time  = EXCLUDED.closed_time,
			last_updated = EXCLUDED.last_updated
	`, m.MarketID, m.Question, m.OutcomeUp, m.OutcomeDown, m.TokenUp, m.TokenDown,
		m.Volume, m.CreatedAt, m.Closed, m.ClosedTime, now)
	if err != nil {
		return fmt.Errorf("upsert market %s: %w", m.MarketID, err)
	}
	return nil
}

// UpsertMarkets applies UpsertMarket to each entry, stopping on the
// first failure.
func (s *Store) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	for _, m := range markets {
		if err := s.UpsertMarket(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// MarketFilter narrows ListMarkets. Zero-valued fields are not applied.
type MarketFilter struct {
	IncludeClosed bool
	MinVolume     float64
	Limit         int
}

// ListMarkets returns stored markets ordered by volume descending.
func (s *Store) ListMarkets(ctx context.Context, f MarketFilter) ([]model.Market, error) {
	query := `
		SELECT market_id, question, outcome_up, outcome_down, token_up, token_down,
		       volume, created_at, closed, closed_time, first_seen, last_updated
		FROM markets`
	var conds []string
	var args []any

	if !f.IncludeClosed {
		conds = append(conds, "NOT closed")
	}
	if f.MinVolume > 0 {
		args = append(args, f.MinVolume)
		conds = append(conds, fmt.Sprintf("volume >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY volume DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []model.Market
	for rows.Next() {
		var m model.Market
		if err := rows.Scan(
			&m.MarketID, &m.Question, &m.OutcomeUp, &m.OutcomeDown,
			&m.TokenUp, &m.TokenDown, &m.Volume, &m.CreatedAt,
			&m.Closed, &m.ClosedTime, &m.FirstSeen, &m.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return out, nil
}

// GetMarket fetches a single market by ID. The bool reports presence.
func (s *Store) GetMarket(ctx context.Context, marketID string) (model.Market, bool, error) {
	var m model.Market
	err := s.db.QueryRow(ctx, `
		SELECT market_id, question, outcome_up, outcome_down, token_up, token_down,
		       volume, created_at, closed, closed_time, first_seen, last_updated
		FROM markets WHERE market_id = $1
	`, marketID).Scan(
		&m.MarketID, &m.Question, &m.OutcomeUp, &m.OutcomeDown,
		&m.TokenUp, &m.TokenDown, &m.Volume, &m.CreatedAt,
		&m.Closed, &m.ClosedTime, &m.FirstSeen, &m.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("get market %s: %w", marketID, err)
	}
	return m, true, nil
}
