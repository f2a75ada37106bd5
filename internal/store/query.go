package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// TradeFilter narrows QueryTrades and Summary. Zero-valued fields are
// not applied. From is inclusive, To exclusive.
type TradeFilter struct {
	MarketID string
	AssetID  string
	Outcome  string
	Side     model.Side
	From     time.Time
	To       time.Time
	Limit    int
}

// buildTradeWhere renders the WHERE clause and args for a filter.
// Argument placeholders start at $1.
func buildTradeWhere(f TradeFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.MarketID != "" {
		add("market_id = $%d", f.MarketID)
	}
	if f.AssetID != "" {
		add("asset_id = $%d", f.AssetID)
	}
	if f.Outcome != "" {
		add("outcome = $%d", f.Outcome)
	}
	if f.Side != "" {
		add("side = $%d", string(f.Side))
	}
	if !f.From.IsZero() {
		add("event_ts >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("event_ts < $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// TradeIterator walks a result set row by row without loading it all
// into memory. Callers must Close it; Err reports any scan or stream
// failure after Next returns false.
type TradeIterator struct {
	rows pgx.Rows
	cur  model.TradeRecord
	err  error
}

func (it *TradeIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var side, source string
	err := it.rows.Scan(
		&it.cur.TradeID,
		&it.cur.MarketID,
		&it.cur.AssetID,
		&side,
		&it.cur.Outcome,
		&it.cur.Price,
		&it.cur.Size,
		&it.cur.FeeRateBps,
		&it.cur.EventTime,
		&source,
		&it.cur.RecordedAt,
	)
	if err != nil {
		it.err = fmt.Errorf("scan trade row: %w", err)
		return false
	}
	it.cur.Side = model.Side(side)
	it.cur.Source = model.TradeSource(source)
	return true
}

// Trade returns the current row. Valid only after Next reported true.
func (it *TradeIterator) Trade() model.TradeRecord { return it.cur }

func (it *TradeIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *TradeIterator) Close() { it.rows.Close() }

// QueryTrades streams trades matching the filter ordered by event
// time ascending.
func (s *Store) QueryTrades(ctx context.Context, f TradeFilter) (*TradeIterator, error) {
	where, args := buildTradeWhere(f)

	query := `
		SELECT trade_id, market_id, asset_id, side, outcome, price, size, fee_rate_bps, event_ts, source, recorded_at
		FROM trades` + where + ` ORDER BY event_ts ASC`
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return &TradeIterator{rows: rows}, nil
}
