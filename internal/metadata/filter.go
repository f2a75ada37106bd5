package metadata

import (
	"sort"
	"strings"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// Filter selects which markets to track. An empty filter matches
// everything in the snapshot.
type Filter struct {
	// MarketIDs restricts tracking to these markets. When set, the
	// other criteria still apply within the list.
	MarketIDs []string

	// Keywords keeps markets whose question contains any keyword,
	// case-insensitive. Empty means no keyword restriction.
	Keywords []string

	// MinVolume drops markets below this lifetime volume.
	MinVolume float64

	// IncludeClosed keeps resolved markets. The default tracks only
	// open ones.
	IncludeClosed bool
}

// Match reports whether a market passes the filter, ignoring the
// MarketIDs restriction (the caller handles that).
func (f Filter) Match(m model.Market) bool {
	if m.Closed && !f.IncludeClosed {
		return false
	}
	if f.MinVolume > 0 && m.Volume < f.MinVolume {
		return false
	}
	if len(f.Keywords) > 0 {
		q := strings.ToLower(m.Question)
		hit := false
		for _, kw := range f.Keywords {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// ResolveTracked resolves the filter against the current snapshot and
// returns the outcome tokens to subscribe, sorted and deduplicated.
func (c *Cache) ResolveTracked(f Filter) []string {
	snap := c.snap.Load()

	var markets []model.Market
	if len(f.MarketIDs) > 0 {
		for _, id := range f.MarketIDs {
			if m, ok := snap.byMarket[id]; ok {
				markets = append(markets, m)
			}
		}
	} else {
		for _, m := range snap.byMarket {
			markets = append(markets, m)
		}
	}

	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, m := range markets {
		if !f.Match(m) {
			continue
		}
		add(m.TokenUp)
		add(m.TokenDown)
	}

	sort.Strings(tokens)
	return tokens
}
