package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSummary is an aggregate view over a trade filter, computed
// server-side so large histories never cross the wire.
type TradeSummary struct {
	Count      int64
	TotalSize  decimal.Decimal
	TotalValue decimal.Decimal
	AvgPrice   decimal.Decimal
	MinPrice   decimal.Decimal
	MaxPrice   decimal.Decimal
	FirstTrade time.Time
	LastTrade  time.Time
	BySide     map[string]int64
	BySource   map[string]int64
}

// Summary aggregates trades matching the filter. A zero Count means
// nothing matched and the remaining fields are zero values.
func (s *Store) Summary(ctx context.Context, f TradeFilter) (TradeSummary, error) {
	where, args := buildTradeWhere(f)

	sum := TradeSummary{
		BySide:   make(map[string]int64),
		BySource: make(map[string]int64),
	}

	var (
		totalSize, totalValue, avgPrice, minPrice, maxPrice *decimal.Decimal
		first, last                                         *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       SUM(size), SUM(price * size),
		       AVG(price), MIN(price), MAX(price),
		       MIN(event_ts), MAX(event_ts)
		FROM trades`+where, args...).Scan(
		&sum.Count, &totalSize, &totalValue,
		&avgPrice, &minPrice, &maxPrice,
		&first, &last,
	)
	if err != nil {
		return sum, fmt.Errorf("summarize trades: %w", err)
	}
	if sum.Count == 0 {
		return sum, nil
	}

	sum.TotalSize = *totalSize
	sum.TotalValue = *totalValue
	sum.AvgPrice = *avgPrice
	sum.MinPrice = *minPrice
	sum.MaxPrice = *maxPrice
	sum.FirstTrade = first.UTC()
	sum.LastTrade = last.UTC()

	for _, group := range []struct {
		col  string
		dest map[string]int64
	}{
		{"side", sum.BySide},
		{"source", sum.BySource},
	} {
		rows, err := s.db.Query(ctx,
			`SELECT `+group.col+`, COUNT(*) FROM trades`+where+` GROUP BY `+group.col, args...)
		if err != nil {
			return sum, fmt.Errorf("summarize trades by %s: %w", group.col, err)
		}
		for rows.Next() {
			var key string
			var n int64
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return sum, fmt.Errorf("scan %s count: %w", group.col, err)
			}
			group.dest[key] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return sum, fmt.Errorf("summarize trades by %s: %w", group.col, err)
		}
	}

	return sum, nil
}
