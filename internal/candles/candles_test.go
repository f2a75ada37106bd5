package candles

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

func trade(assetID string, ts time.Time, price, size string) model.TradeRecord {
	return model.TradeRecord{
		AssetID:   assetID,
		Price:     decimal.RequireFromString(price),
		Size:      decimal.RequireFromString(size),
		EventTime: ts,
	}
}

func TestBuilder_SingleBucket(t *testing.T) {
	b, err := NewBuilder(time.Minute)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	trades := []model.TradeRecord{
		trade("a", base.Add(1*time.Second), "0.50", "10"),
		trade("a", base.Add(10*time.Second), "0.55", "5"),
		trade("a", base.Add(20*time.Second), "0.45", "20"),
		trade("a", base.Add(30*time.Second), "0.52", "15"),
	}
	for _, tr := range trades {
		if err := b.Add(tr); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	candles := b.Finish()
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}

	c := candles[0]
	if !c.Start.Equal(base) {
		t.Errorf("Start = %v, want %v", c.Start, base)
	}
	if !c.Open.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Open = %s, want 0.50", c.Open)
	}
	if !c.High.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("High = %s, want 0.55", c.High)
	}
	if !c.Low.Equal(decimal.RequireFromString("0.45")) {
		t.Errorf("Low = %s, want 0.45", c.Low)
	}
	if !c.Close.Equal(decimal.RequireFromString("0.52")) {
		t.Errorf("Close = %s, want 0.52", c.Close)
	}
	if !c.Volume.Equal(decimal.RequireFromString("50")) {
		t.Errorf("Volume = %s, want 50", c.Volume)
	}
	if c.Trades != 4 {
		t.Errorf("Trades = %d, want 4", c.Trades)
	}
}

func TestBuilder_BucketRollover(t *testing.T) {
	b, _ := NewBuilder(time.Minute)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.Add(trade("a", base.Add(5*time.Second), "0.50", "10"))
	b.Add(trade("a", base.Add(61*time.Second), "0.60", "5"))
	b.Add(trade("a", base.Add(62*time.Second), "0.58", "5"))

	candles := b.Finish()
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Start.Equal(base) {
		t.Errorf("first Start = %v, want %v", candles[0].Start, base)
	}
	if !candles[1].Start.Equal(base.Add(time.Minute)) {
		t.Errorf("second Start = %v, want %v", candles[1].Start, base.Add(time.Minute))
	}
	if candles[0].Trades != 1 || candles[1].Trades != 2 {
		t.Errorf("trade counts = %d/%d, want 1/2", candles[0].Trades, candles[1].Trades)
	}
	if !candles[1].Open.Equal(decimal.RequireFromString("0.60")) {
		t.Errorf("second Open = %s, want 0.60", candles[1].Open)
	}
}

func TestBuilder_GapLeavesNoEmptyBuckets(t *testing.T) {
	b, _ := NewBuilder(time.Minute)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.Add(trade("a", base, "0.50", "1"))
	b.Add(trade("a", base.Add(10*time.Minute), "0.70", "1"))

	candles := b.Finish()
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles across the gap, got %d", len(candles))
	}
}

func TestBuilder_OutOfOrderRejected(t *testing.T) {
	b, _ := NewBuilder(time.Minute)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.Add(trade("a", base.Add(2*time.Minute), "0.50", "1"))
	if err := b.Add(trade("a", base, "0.40", "1")); err == nil {
		t.Error("expected error for trade in a closed bucket")
	}
}

func TestBuilder_ReuseAfterFinish(t *testing.T) {
	b, _ := NewBuilder(time.Minute)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	b.Add(trade("a", base, "0.5", "1"))
	if got := len(b.Finish()); got != 1 {
		t.Fatalf("first Finish = %d candles, want 1", got)
	}

	b.Add(trade("a", base.Add(time.Hour), "0.6", "1"))
	if got := len(b.Finish()); got != 1 {
		t.Fatalf("second Finish = %d candles, want 1", got)
	}
}

func TestNewBuilder_InvalidInterval(t *testing.T) {
	if _, err := NewBuilder(0); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := NewBuilder(-time.Second); err == nil {
		t.Error("expected error for negative interval")
	}
}
