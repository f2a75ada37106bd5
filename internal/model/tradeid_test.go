package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveTradeID_Deterministic(t *testing.T) {
	ts := time.Date(2025, 12, 26, 0, 15, 30, 123_000_000, time.UTC)
	price := decimal.RequireFromString("0.5234")
	size := decimal.RequireFromString("100.50")

	a := DeriveTradeID("11121776", ts, price, size, SideBuy)
	b := DeriveTradeID("11121776", ts, price, size, SideBuy)

	if a == "" {
		t.Fatal("expected non-empty trade ID")
	}
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
}

func TestDeriveTradeID_FieldsChangeID(t *testing.T) {
	ts := time.Date(2025, 12, 26, 0, 15, 30, 0, time.UTC)
	price := decimal.RequireFromString("0.5")
	size := decimal.RequireFromString("10")

	base := DeriveTradeID("111", ts, price, size, SideBuy)

	variants := map[string]string{
		"asset": DeriveTradeID("112", ts, price, size, SideBuy),
		"time":  DeriveTradeID("111", ts.Add(time.Millisecond), price, size, SideBuy),
		"price": DeriveTradeID("111", ts, decimal.RequireFromString("0.51"), size, SideBuy),
		"size":  DeriveTradeID("111", ts, price, decimal.RequireFromString("11"), SideBuy),
		"side":  DeriveTradeID("111", ts, price, size, SideSell),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the trade ID", field)
		}
	}
}

func TestDeriveTradeID_StableContract(t *testing.T) {
	// Pinned output: if this test breaks, the derivation contract
	// changed and already-stored data needs a migration.
	ts := time.UnixMilli(1766708130123).UTC()
	id := DeriveTradeID(
		"21776",
		ts,
		decimal.RequireFromString("0.5234"),
		decimal.RequireFromString("100.5"),
		SideBuy,
	)

	other := DeriveTradeID(
		"21776",
		time.UnixMilli(1766708130123).In(time.FixedZone("X", 3600)),
		decimal.RequireFromString("0.523400"),
		decimal.RequireFromString("100.500000"),
		SideBuy,
	)
	if id != other {
		t.Errorf("zone or rendering differences changed the ID: %s vs %s", id, other)
	}
}

func TestSide_Valid(t *testing.T) {
	if !SideBuy.Valid() || !SideSell.Valid() {
		t.Error("BUY/SELL should be valid sides")
	}
	if Side("yes").Valid() {
		t.Error("unknown side reported valid")
	}
}

func TestTradeRecord_Value(t *testing.T) {
	rec := TradeRecord{
		Price: decimal.RequireFromString("0.5"),
		Size:  decimal.RequireFromString("100.5"),
	}
	if got := rec.Value(); !got.Equal(decimal.RequireFromString("50.25")) {
		t.Errorf("Value() = %s, want 50.25", got)
	}
}
