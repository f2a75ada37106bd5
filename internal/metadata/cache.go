package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valterebelo/polymarket-crypto-tools/internal/gamma"
	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// marketSource is the slice of the Gamma client the cache uses.
type marketSource interface {
	GetAllMarkets(ctx context.Context, closed *bool, maxMarkets int) ([]gamma.GammaMarket, error)
	GetMarketByID(ctx context.Context, marketID string) (*gamma.GammaMarket, error)
}

// PersistFunc receives every market in a fresh snapshot, letting the
// caller mirror metadata into durable storage.
type PersistFunc func(ctx context.Context, markets []model.Market) error

// AssetRef is what Lookup returns for a known outcome token.
type AssetRef struct {
	MarketID string
	Question string
	Outcome  string
}

// snapshot is an immutable view of the market universe.
type snapshot struct {
	byAsset   map[string]AssetRef
	byMarket  map[string]model.Market
	fetchedAt time.Time
}

// Config controls the cache.
type Config struct {
	RefreshInterval time.Duration // Background refresh cadence
	MaxMarkets      int           // Bulk fetch bound; <= 0 unbounded
	HydrateLimit    int           // Concurrent by-ID fetches
	IncludeClosed   bool          // Fetch resolved markets too
}

// DefaultConfig returns the standing defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 5 * time.Minute,
		MaxMarkets:      0,
		HydrateLimit:    4,
		IncludeClosed:   false,
	}
}

// Cache is the metadata cache. Create with New, then Start.
type Cache struct {
	cfg     Config
	source  marketSource
	persist PersistFunc
	logger  *slog.Logger

	snap   atomic.Pointer[snapshot]
	notify chan struct{}

	// swapMu serializes snapshot swaps so a Hydrate merge cannot
	// resurrect a map a concurrent Refresh already replaced. hydrated
	// holds market IDs explicitly requested through Hydrate; a bulk
	// refresh carries them forward even when they fall outside its
	// fetch window. Both are guarded by swapMu.
	swapMu   sync.Mutex
	hydrated map[string]struct{}

	refreshes    atomic.Int64
	refreshFails atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Cache.
type Option func(*Cache)

// WithPersist mirrors each fresh snapshot's markets somewhere durable.
// Persist failures are logged, not fatal; the snapshot still swaps in.
func WithPersist(fn PersistFunc) Option {
	return func(c *Cache) { c.persist = fn }
}

// New creates a Cache over the given source. A nil logger falls back
// to slog.Default.
func New(cfg Config, source marketSource, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		cfg:      cfg,
		source:   source,
		logger:   logger.With("component", "metadata"),
		notify:   make(chan struct{}, 1),
		hydrated: make(map[string]struct{}),
	}
	c.snap.Store(&snapshot{
		byAsset:  make(map[string]AssetRef),
		byMarket: make(map[string]model.Market),
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs an initial refresh and begins the background loop.
// The initial refresh failing is fatal; later failures keep the
// previous snapshot.
func (c *Cache) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("initial metadata refresh: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refreshLoop(loopCtx)
	}()

	c.logger.Info("metadata cache started",
		"markets", len(c.snap.Load().byMarket),
		"refresh_interval", c.cfg.RefreshInterval,
	)
	return nil
}

// Stop halts the refresh loop.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("metadata cache stopped")
}

// Notify returns a channel that receives after every successful
// refresh. The channel has capacity one; a slow receiver coalesces
// notifications rather than blocking the refresher.
func (c *Cache) Notify() <-chan struct{} {
	return c.notify
}

func (c *Cache) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.refreshFails.Add(1)
				c.logger.Warn("metadata refresh failed, keeping stale snapshot",
					"error", err,
					"snapshot_age", time.Since(c.snap.Load().fetchedAt),
				)
			}
		}
	}
}

// Refresh fetches the market universe and swaps in a new snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	var closed *bool
	if !c.cfg.IncludeClosed {
		f := false
		closed = &f
	}

	raw, err := c.source.GetAllMarkets(ctx, closed, c.cfg.MaxMarkets)
	if err != nil {
		return err
	}

	next := &snapshot{
		byAsset:   make(map[string]AssetRef, len(raw)*2),
		byMarket:  make(map[string]model.Market, len(raw)),
		fetchedAt: time.Now().UTC(),
	}
	skipped := 0
	for i := range raw {
		m, ok := raw[i].ToModel()
		if !ok {
			skipped++
			continue
		}
		next.index(m)
	}

	// Hydrated markets outlive the bulk fetch window: a market added
	// by ID (closed, or past MaxMarkets) keeps its last-known entry
	// instead of vanishing on the next refresh.
	c.swapMu.Lock()
	cur := c.snap.Load()
	carried := 0
	for id := range c.hydrated {
		if _, ok := next.byMarket[id]; ok {
			continue
		}
		if m, ok := cur.byMarket[id]; ok {
			next.index(m)
			carried++
		}
	}
	c.snap.Store(next)
	c.swapMu.Unlock()
	c.refreshes.Add(1)

	c.logger.Debug("metadata refreshed",
		"markets", len(next.byMarket),
		"skipped_non_binary", skipped,
		"carried_hydrated", carried,
	)

	if c.persist != nil {
		markets := make([]model.Market, 0, len(next.byMarket))
		for _, m := range next.byMarket {
			markets = append(markets, m)
		}
		if err := c.persist(ctx, markets); err != nil {
			c.logger.Warn("metadata persist failed", "error", err)
		}
	}

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *snapshot) index(m model.Market) {
	s.byMarket[m.MarketID] = m
	s.byAsset[m.TokenUp] = AssetRef{
		MarketID: m.MarketID,
		Question: m.Question,
		Outcome:  m.OutcomeUp,
	}
	s.byAsset[m.TokenDown] = AssetRef{
		MarketID: m.MarketID,
		Question: m.Question,
		Outcome:  m.OutcomeDown,
	}
}

// Lookup resolves an outcome token to its market and outcome label.
// The bool is false when the token is not in the current snapshot.
func (c *Cache) Lookup(assetID string) (AssetRef, bool) {
	ref, ok := c.snap.Load().byAsset[assetID]
	return ref, ok
}

// Market returns the cached market by ID.
func (c *Cache) Market(marketID string) (model.Market, bool) {
	m, ok := c.snap.Load().byMarket[marketID]
	return m, ok
}

// Markets returns all cached markets. The slice is fresh; the caller
// may mutate it.
func (c *Cache) Markets() []model.Market {
	snap := c.snap.Load()
	out := make([]model.Market, 0, len(snap.byMarket))
	for _, m := range snap.byMarket {
		out = append(out, m)
	}
	return out
}

// Age reports how old the current snapshot is. Zero time snapshots
// (never refreshed) report a very large age.
func (c *Cache) Age() time.Duration {
	return time.Since(c.snap.Load().fetchedAt)
}

// Hydrate fetches specific markets by ID, bounded-concurrently, and
// merges them into the snapshot. Used for explicitly tracked markets
// that fall outside the bulk fetch window.
func (c *Cache) Hydrate(ctx context.Context, marketIDs []string) error {
	snap := c.snap.Load()

	// Every explicitly tracked ID is pinned, whether or not it needs
	// a fetch right now: pinning is what keeps it across refreshes.
	c.swapMu.Lock()
	for _, id := range marketIDs {
		c.hydrated[id] = struct{}{}
	}
	c.swapMu.Unlock()

	var missing []string
	for _, id := range marketIDs {
		if _, ok := snap.byMarket[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var mu sync.Mutex
	fetched := make([]model.Market, 0, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.HydrateLimit)
	for _, id := range missing {
		id := id
		g.Go(func() error {
			raw, err := c.source.GetMarketByID(gctx, id)
			if err != nil {
				return fmt.Errorf("hydrate market %s: %w", id, err)
			}
			if raw == nil {
				c.logger.Warn("tracked market not found upstream", "market_id", id)
				return nil
			}
			m, ok := raw.ToModel()
			if !ok {
				c.logger.Warn("tracked market is not binary, skipping", "market_id", id)
				return nil
			}
			mu.Lock()
			fetched = append(fetched, m)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(fetched) == 0 {
		return nil
	}

	// Copy-on-write merge; lookups keep hitting the old snapshot
	// until the swap. swapMu keeps the load/copy/store atomic with
	// respect to a concurrent Refresh swap.
	c.swapMu.Lock()
	cur := c.snap.Load()
	next := &snapshot{
		byAsset:   make(map[string]AssetRef, len(cur.byAsset)+len(fetched)*2),
		byMarket:  make(map[string]model.Market, len(cur.byMarket)+len(fetched)),
		fetchedAt: cur.fetchedAt,
	}
	for k, v := range cur.byAsset {
		next.byAsset[k] = v
	}
	for k, v := range cur.byMarket {
		next.byMarket[k] = v
	}
	for _, m := range fetched {
		next.index(m)
	}
	c.snap.Store(next)
	c.swapMu.Unlock()

	c.logger.Debug("hydrated tracked markets", "fetched", len(fetched))
	return nil
}

// Stats returns refresh counters for the health endpoint.
func (c *Cache) Stats() (markets int, refreshes, failures int64, age time.Duration) {
	snap := c.snap.Load()
	return len(snap.byMarket), c.refreshes.Load(), c.refreshFails.Load(), time.Since(snap.fetchedAt)
}
