package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a recognized side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeSource identifies where a trade record entered the system.
type TradeSource string

// SourceStream marks trades received over the CLOB market channel.
const SourceStream TradeSource = "stream"

// Market is a cached copy of a Gamma market. It is externally owned
// truth: only the metadata cache writes it, everything else reads.
type Market struct {
	MarketID    string     // Gamma market ID (e.g. "996577")
	Question    string     // Display question
	OutcomeUp   string     // First outcome label (e.g. "Up", "Yes")
	OutcomeDown string     // Second outcome label
	TokenUp     string     // CLOB asset ID for the first outcome
	TokenDown   string     // CLOB asset ID for the second outcome
	Volume      float64    // Lifetime volume reported by Gamma
	CreatedAt   *time.Time // Market creation time, nil if unknown
	Closed      bool       // True once the market has resolved
	ClosedTime  *time.Time // Resolution time, nil while open
	FirstSeen   time.Time  // First time this process stored the market
	LastUpdated time.Time  // Last metadata refresh that touched it
}

// TradeRecord is the unit of storage: one executed trade.
//
// Records are immutable once stored. TradeID is derived
// deterministically (see DeriveTradeID) so redelivered events collide
// onto the same row.
type TradeRecord struct {
	TradeID    string          // Deterministic composite key
	MarketID   string          // Gamma market ID
	AssetID    string          // CLOB asset ID (opaque numeric string)
	Side       Side            // BUY or SELL
	Outcome    string          // Outcome label; empty when unknown at receipt
	Price      decimal.Decimal // 0.0 - 1.0
	Size       decimal.Decimal // Contracts traded, > 0
	FeeRateBps int             // Fee rate in basis points
	EventTime  time.Time       // Exchange timestamp (UTC)
	Source     TradeSource     // Currently always SourceStream
	RecordedAt time.Time       // Local receipt time (UTC)
}

// Value returns price*size, the notional traded.
func (t TradeRecord) Value() decimal.Decimal {
	return t.Price.Mul(t.Size)
}
