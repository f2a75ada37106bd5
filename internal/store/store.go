package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// Store reads and writes trades and markets. All methods are safe for
// concurrent use; the underlying pool handles connection management.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// UpsertResult describes the outcome of one trade batch.
type UpsertResult struct {
	Inserted        int
	Duplicates      int
	IntegrityErrors int
}

// UpsertTrades writes a batch with ON CONFLICT (trade_id) DO NOTHING.
// Rows that conflict are re-read and compared against the incoming
// payload: a mismatch means two distinct trades collided on the same
// derived ID, which is counted and logged but does not fail the batch.
func (s *Store) UpsertTrades(ctx context.Context, trades []model.TradeRecord) (UpsertResult, error) {
	var res UpsertResult
	if len(trades) == 0 {
		return res, nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (trade_id, market_id, asset_id, side, outcome, price, size, fee_rate_bps, event_ts, source, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (trade_id) DO NOTHING
		`, t.TradeID, t.MarketID, t.AssetID, string(t.Side), t.Outcome,
			t.Price, t.Size, t.FeeRateBps, t.EventTime, string(t.Source), t.RecordedAt)
	}

	results := s.db.SendBatch(ctx, batch)

	var conflicted []model.TradeRecord
	for i := range trades {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return res, fmt.Errorf("insert trade %s: %w", trades[i].TradeID, err)
		}
		if ct.RowsAffected() == 0 {
			conflicted = append(conflicted, trades[i])
		} else {
			res.Inserted++
		}
	}
	if err := results.Close(); err != nil {
		return res, fmt.Errorf("close batch: %w", err)
	}

	for _, t := range conflicted {
		ok, err := s.verifyStored(ctx, t)
		if err != nil {
			return res, err
		}
		if ok {
			res.Duplicates++
		} else {
			res.IntegrityErrors++
			s.logger.Error("stored trade differs from incoming payload with same id",
				"trade_id", t.TradeID,
				"asset_id", t.AssetID,
			)
		}
	}

	return res, nil
}

// storedTrade is the identity slice of a trades row, re-read when an
// insert conflicts.
type storedTrade struct {
	AssetID string
	Side    string
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// matches reports whether the stored row and the incoming record
// describe the same trade. Prices compare by value, not by scale, so
// 0.5 and 0.50 are the same trade.
func (st storedTrade) matches(t model.TradeRecord) bool {
	return st.AssetID == t.AssetID &&
		st.Side == string(t.Side) &&
		st.Price.Equal(t.Price) &&
		st.Size.Equal(t.Size)
}

// verifyStored compares the stored row for t.TradeID against t on the
// identity fields. A row that vanished between insert and read counts
// as a match; DO NOTHING already proved a row existed.
func (s *Store) verifyStored(ctx context.Context, t model.TradeRecord) (bool, error) {
	var st storedTrade
	err := s.db.QueryRow(ctx, `
		SELECT asset_id, side, price, size
		FROM trades WHERE trade_id = $1
	`, t.TradeID).Scan(&st.AssetID, &st.Side, &st.Price, &st.Size)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify trade %s: %w", t.TradeID, err)
	}

	return st.matches(t), nil
}

// LatestTradeTime returns the newest event timestamp recorded for the
// asset, or for any asset when assetID is empty. ok is false when no
// trades exist.
func (s *Store) LatestTradeTime(ctx context.Context, assetID string) (latest time.Time, ok bool, err error) {
	query := `SELECT MAX(event_ts) FROM trades`
	args := []any{}
	if assetID != "" {
		query += ` WHERE asset_id = $1`
		args = append(args, assetID)
	}

	var ts *time.Time
	if err := s.db.QueryRow(ctx, query, args...).Scan(&ts); err != nil {
		return latest, false, fmt.Errorf("latest trade time: %w", err)
	}
	if ts == nil {
		return latest, false, nil
	}
	return ts.UTC(), true, nil
}
