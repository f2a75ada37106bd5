package store

import (
	"testing"
	"time"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

func TestBuildTradeWhere(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    TradeFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "empty filter",
			filter:    TradeFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "market only",
			filter:    TradeFilter{MarketID: "0xabc"},
			wantWhere: " WHERE market_id = $1",
			wantArgs:  []any{"0xabc"},
		},
		{
			name:      "asset and side",
			filter:    TradeFilter{AssetID: "123", Side: model.SideBuy},
			wantWhere: " WHERE asset_id = $1 AND side = $2",
			wantArgs:  []any{"123", "BUY"},
		},
		{
			name:      "time range",
			filter:    TradeFilter{From: from, To: to},
			wantWhere: " WHERE event_ts >= $1 AND event_ts < $2",
			wantArgs:  []any{from, to},
		},
		{
			name: "everything",
			filter: TradeFilter{
				MarketID: "0xabc",
				AssetID:  "123",
				Outcome:  "Up",
				Side:     model.SideSell,
				From:     from,
				To:       to,
			},
			wantWhere: " WHERE market_id = $1 AND asset_id = $2 AND outcome = $3 AND side = $4 AND event_ts >= $5 AND event_ts < $6",
			wantArgs:  []any{"0xabc", "123", "Up", "SELL", from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTradeWhere(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuildTradeWhere_LimitNotInWhere(t *testing.T) {
	// Limit is applied by the caller, never as a WHERE condition.
	where, args := buildTradeWhere(TradeFilter{Limit: 50})
	if where != "" || args != nil {
		t.Errorf("limit leaked into where clause: %q %v", where, args)
	}
}
