// Package tracker keeps the stream subscription aligned with the
// markets the operator wants recorded. It resolves a metadata filter
// into outcome tokens, diffs against the stream's current set, and
// issues the minimal subscribe/unsubscribe mutations. Every cache
// refresh triggers a re-resolve so newly listed markets get picked up
// without a restart.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/valterebelo/polymarket-crypto-tools/internal/metadata"
)

// Resolver is the slice of the metadata cache the tracker uses.
// *metadata.Cache satisfies it.
type Resolver interface {
	ResolveTracked(f metadata.Filter) []string
	Hydrate(ctx context.Context, marketIDs []string) error
	Notify() <-chan struct{}
}

// Subscriber is the slice of the stream connection the tracker
// drives. stream.Conn satisfies it.
type Subscriber interface {
	Subscribe(assetIDs ...string) error
	Unsubscribe(assetIDs ...string) error
	Subscriptions() []string
}

// Tracker reconciles desired and actual subscriptions. Create with
// New, then Start.
type Tracker struct {
	resolver   Resolver
	subscriber Subscriber
	logger     *slog.Logger

	mu      sync.Mutex
	filter  metadata.Filter
	include map[string]struct{} // explicitly added markets
	exclude map[string]struct{} // explicitly removed markets

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Tracker with the given base filter. A nil logger
// falls back to slog.Default.
func New(filter metadata.Filter, resolver Resolver, subscriber Subscriber, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		resolver:   resolver,
		subscriber: subscriber,
		logger:     logger.With("component", "tracker"),
		filter:     filter,
		include:    make(map[string]struct{}),
		exclude:    make(map[string]struct{}),
	}
}

// Start performs the initial reconcile and follows cache refreshes.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-t.resolver.Notify():
				if err := t.Reconcile(loopCtx); err != nil {
					t.logger.Warn("reconcile after refresh failed", "error", err)
				}
			}
		}
	}()

	t.logger.Info("tracker started")
	return nil
}

// Stop halts the refresh follower.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("tracker stopped")
}

// AddMarkets tracks markets beyond what the filter matches. Unknown
// markets are hydrated from the API first.
func (t *Tracker) AddMarkets(ctx context.Context, marketIDs ...string) error {
	if err := t.resolver.Hydrate(ctx, marketIDs); err != nil {
		return fmt.Errorf("hydrate markets: %w", err)
	}

	t.mu.Lock()
	for _, id := range marketIDs {
		t.include[id] = struct{}{}
		delete(t.exclude, id)
	}
	t.mu.Unlock()

	return t.Reconcile(ctx)
}

// RemoveMarkets stops tracking markets even if the filter matches them.
func (t *Tracker) RemoveMarkets(ctx context.Context, marketIDs ...string) error {
	t.mu.Lock()
	for _, id := range marketIDs {
		t.exclude[id] = struct{}{}
		delete(t.include, id)
	}
	t.mu.Unlock()

	return t.Reconcile(ctx)
}

// Reconcile recomputes the desired token set and applies the diff.
func (t *Tracker) Reconcile(ctx context.Context) error {
	desired := t.desired()

	current := make(map[string]struct{})
	for _, tok := range t.subscriber.Subscriptions() {
		current[tok] = struct{}{}
	}

	var added, removed []string
	for tok := range desired {
		if _, ok := current[tok]; !ok {
			added = append(added, tok)
		}
	}
	for tok := range current {
		if _, ok := desired[tok]; !ok {
			removed = append(removed, tok)
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	if len(added) > 0 {
		if err := t.subscriber.Subscribe(added...); err != nil {
			return fmt.Errorf("subscribe %d tokens: %w", len(added), err)
		}
	}
	if len(removed) > 0 {
		if err := t.subscriber.Unsubscribe(removed...); err != nil {
			return fmt.Errorf("unsubscribe %d tokens: %w", len(removed), err)
		}
	}

	t.logger.Info("subscriptions reconciled",
		"added", len(added),
		"removed", len(removed),
		"total", len(desired),
	)
	return nil
}

// desired computes the wanted token set: filter matches plus explicit
// includes, minus explicit excludes.
func (t *Tracker) desired() map[string]struct{} {
	t.mu.Lock()
	filter := t.filter
	include := make([]string, 0, len(t.include))
	for id := range t.include {
		include = append(include, id)
	}
	exclude := make([]string, 0, len(t.exclude))
	for id := range t.exclude {
		exclude = append(exclude, id)
	}
	t.mu.Unlock()

	desired := make(map[string]struct{})
	for _, tok := range t.resolver.ResolveTracked(filter) {
		desired[tok] = struct{}{}
	}
	if len(include) > 0 {
		// Explicit markets bypass the filter criteria, including
		// closed status.
		extra := metadata.Filter{MarketIDs: include, IncludeClosed: true}
		for _, tok := range t.resolver.ResolveTracked(extra) {
			desired[tok] = struct{}{}
		}
	}
	if len(exclude) > 0 {
		drop := metadata.Filter{MarketIDs: exclude, IncludeClosed: true}
		for _, tok := range t.resolver.ResolveTracked(drop) {
			delete(desired, tok)
		}
	}
	return desired
}
