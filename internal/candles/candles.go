// Package candles reduces a trade stream into fixed-interval OHLC
// candlesticks. The builder is a pure streaming fold: feed it trades
// in event-time order and collect completed buckets at the end.
package candles

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// Candle is one OHLC bucket. Bounds are [Start, Start+interval),
// aligned to the epoch.
type Candle struct {
	AssetID string
	Start   time.Time
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
	Volume  decimal.Decimal
	Trades  int
}

// Builder folds trades into candles for a single asset at a fixed
// interval. Trades must arrive in non-decreasing event-time order,
// which is how the store's iterator yields them. Not safe for
// concurrent use.
type Builder struct {
	interval time.Duration
	current  *Candle
	done     []Candle
}

// NewBuilder creates a Builder. The interval must be positive.
func NewBuilder(interval time.Duration) (*Builder, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("candle interval must be positive, got %v", interval)
	}
	return &Builder{interval: interval}, nil
}

// Add folds one trade into the current bucket, sealing and starting
// buckets as the trade's event time crosses interval boundaries.
func (b *Builder) Add(t model.TradeRecord) error {
	start := t.EventTime.Truncate(b.interval)

	if b.current != nil {
		if start.Before(b.current.Start) {
			return fmt.Errorf("trade at %v arrived after bucket %v closed",
				t.EventTime, b.current.Start)
		}
		if start.After(b.current.Start) {
			b.done = append(b.done, *b.current)
			b.current = nil
		}
	}

	if b.current == nil {
		b.current = &Candle{
			AssetID: t.AssetID,
			Start:   start,
			Open:    t.Price,
			High:    t.Price,
			Low:     t.Price,
			Close:   t.Price,
			Volume:  t.Size,
			Trades:  1,
		}
		return nil
	}

	c := b.current
	if t.Price.GreaterThan(c.High) {
		c.High = t.Price
	}
	if t.Price.LessThan(c.Low) {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume = c.Volume.Add(t.Size)
	c.Trades++
	return nil
}

// Finish seals the open bucket and returns all candles in order. The
// builder can be reused afterwards.
func (b *Builder) Finish() []Candle {
	if b.current != nil {
		b.done = append(b.done, *b.current)
		b.current = nil
	}
	out := b.done
	b.done = nil
	return out
}
