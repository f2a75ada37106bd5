package metadata

import (
	"context"
	"testing"

	"github.com/valterebelo/polymarket-crypto-tools/internal/gamma"
	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

func TestFilter_Match(t *testing.T) {
	open := model.Market{Question: "Bitcoin Up or Down on September 1?", Volume: 120000}
	closed := model.Market{Question: "Ethereum Up or Down on July 1?", Volume: 90000, Closed: true}
	quiet := model.Market{Question: "Solana Up or Down?", Volume: 50}

	tests := []struct {
		name   string
		filter Filter
		market model.Market
		want   bool
	}{
		{"empty filter matches open", Filter{}, open, true},
		{"closed excluded by default", Filter{}, closed, false},
		{"closed included on request", Filter{IncludeClosed: true}, closed, true},
		{"keyword hit", Filter{Keywords: []string{"bitcoin"}}, open, true},
		{"keyword case-insensitive", Filter{Keywords: []string{"BITCOIN"}}, open, true},
		{"keyword miss", Filter{Keywords: []string{"dogecoin"}}, open, false},
		{"any keyword suffices", Filter{Keywords: []string{"dogecoin", "bitcoin"}}, open, true},
		{"min volume passes", Filter{MinVolume: 100000}, open, true},
		{"min volume drops", Filter{MinVolume: 100000}, quiet, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.market); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveTracked(t *testing.T) {
	src := &stubSource{
		markets: []gamma.GammaMarket{
			binaryMarket("m1", "Bitcoin Up or Down?", 100000, [2]string{"btc-up", "btc-down"}),
			binaryMarket("m2", "Ethereum Up or Down?", 80000, [2]string{"eth-up", "eth-down"}),
			binaryMarket("m3", "Will it rain in London?", 500, [2]string{"rain-yes", "rain-no"}),
		},
	}

	c := New(DefaultConfig(), src, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	t.Run("keyword filter", func(t *testing.T) {
		got := c.ResolveTracked(Filter{Keywords: []string{"bitcoin", "ethereum"}})
		want := []string{"btc-down", "btc-up", "eth-down", "eth-up"}
		assertTokens(t, got, want)
	})

	t.Run("explicit market list", func(t *testing.T) {
		got := c.ResolveTracked(Filter{MarketIDs: []string{"m3", "missing"}})
		assertTokens(t, got, []string{"rain-no", "rain-yes"})
	})

	t.Run("volume floor", func(t *testing.T) {
		got := c.ResolveTracked(Filter{MinVolume: 90000})
		assertTokens(t, got, []string{"btc-down", "btc-up"})
	})

	t.Run("empty filter takes everything", func(t *testing.T) {
		got := c.ResolveTracked(Filter{})
		if len(got) != 6 {
			t.Errorf("got %d tokens, want 6", len(got))
		}
	})
}

func assertTokens(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
