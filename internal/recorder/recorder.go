package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/valterebelo/polymarket-crypto-tools/internal/metadata"
	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
	"github.com/valterebelo/polymarket-crypto-tools/internal/store"
	"github.com/valterebelo/polymarket-crypto-tools/internal/stream"
)

// TradeSink receives flushed batches. *store.Store satisfies it.
type TradeSink interface {
	UpsertTrades(ctx context.Context, trades []model.TradeRecord) (store.UpsertResult, error)
}

// Resolver maps outcome tokens to market metadata. *metadata.Cache
// satisfies it.
type Resolver interface {
	Lookup(assetID string) (metadata.AssetRef, bool)
}

// Config controls batching and retry behavior.
type Config struct {
	BatchSize     int           // Flush when the buffer reaches this many trades
	FlushInterval time.Duration // Flush at least this often
	BufferCap     int           // Hard cap; consumption blocks at this size
	WriteRetries  int           // Attempts per batch beyond the first
	RetryDelay    time.Duration // Pause between write attempts
}

// DefaultConfig returns the standing defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		BufferCap:     1000,
		WriteRetries:  3,
		RetryDelay:    time.Second,
	}
}

// Metrics are cumulative counters. Snapshot via Stats.
type Metrics struct {
	Received        int64
	MetadataMisses  int64
	Inserted        int64
	Duplicates      int64
	IntegrityErrors int64
	Flushes         int64
	WriteErrors     int64
}

// Recorder consumes trade events and persists them. Create with New,
// then Start; Stop drains the buffer before returning.
type Recorder struct {
	cfg      Config
	sink     TradeSink
	resolver Resolver
	input    <-chan stream.Event
	logger   *slog.Logger

	mu      sync.Mutex
	notFull *sync.Cond
	buffer  []model.TradeRecord
	metrics Metrics

	// flushMu serializes flushes. The timer and the size trigger can
	// fire together; without this, two batches could reach the sink
	// out of production order.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Recorder reading from input. A nil logger falls back
// to slog.Default.
func New(cfg Config, input <-chan stream.Event, sink TradeSink, resolver Resolver, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		cfg:      cfg,
		sink:     sink,
		resolver: resolver,
		input:    input,
		logger:   logger.With("component", "recorder"),
		buffer:   make([]model.TradeRecord, 0, cfg.BatchSize),
	}
	r.notFull = sync.NewCond(&r.mu)
	return r
}

// Start begins consuming events.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.consumeLoop()
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
		"buffer_cap", r.cfg.BufferCap,
	)
	return nil
}

// Stop halts consumption and flushes whatever is buffered. The ctx
// bounds the final drain.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}
	// Wake a consumer blocked on a full buffer. Taking the lock
	// orders the broadcast against a waiter's context check.
	r.mu.Lock()
	r.notFull.Broadcast()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
		return ctx.Err()
	}

	r.flush(ctx)
	r.logger.Info("recorder stopped")
	return nil
}

// Stats returns a snapshot of the counters.
func (r *Recorder) Stats() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Buffered reports the current buffer depth.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.input:
			if !ok {
				return
			}
			trade, isTrade := ev.(stream.TradeEvent)
			if !isTrade {
				continue
			}
			r.handleTrade(trade)
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// handleTrade enriches and buffers one trade, blocking while the
// buffer sits at the hard cap.
func (r *Recorder) handleTrade(ev stream.TradeEvent) {
	rec := r.enrich(ev)

	r.mu.Lock()
	for len(r.buffer) >= r.cfg.BufferCap {
		if r.ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		r.notFull.Wait()
	}
	r.buffer = append(r.buffer, rec)
	r.metrics.Received++
	shouldFlush := len(r.buffer) >= r.cfg.BatchSize
	r.mu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

// enrich builds the canonical record. A metadata miss leaves the
// outcome label empty; the trade is always kept.
func (r *Recorder) enrich(ev stream.TradeEvent) model.TradeRecord {
	rec := model.TradeRecord{
		MarketID:   ev.MarketID,
		AssetID:    ev.AssetID,
		Side:       ev.Side,
		Price:      ev.Price,
		Size:       ev.Size,
		FeeRateBps: ev.FeeRateBps,
		EventTime:  ev.EventTime,
		Source:     model.SourceStream,
		RecordedAt: ev.ReceivedAt,
	}
	rec.TradeID = model.DeriveTradeID(ev.AssetID, ev.EventTime, ev.Price, ev.Size, ev.Side)

	if ref, ok := r.resolver.Lookup(ev.AssetID); ok {
		rec.Outcome = ref.Outcome
		if rec.MarketID == "" {
			rec.MarketID = ref.MarketID
		}
	} else {
		r.mu.Lock()
		r.metrics.MetadataMisses++
		r.mu.Unlock()
		r.logger.Debug("no metadata for asset, recording without outcome",
			"asset_id", ev.AssetID,
		)
	}
	return rec
}

// flush writes the buffered trades with bounded retries. A batch that
// still fails after the retries goes back at the front of the buffer
// so nothing received is lost.
func (r *Recorder) flush(ctx context.Context) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.buffer
	r.buffer = make([]model.TradeRecord, 0, r.cfg.BatchSize)
	r.mu.Unlock()
	r.notFull.Broadcast()

	start := time.Now()
	res, err := r.writeWithRetry(ctx, batch)

	r.mu.Lock()
	if err != nil {
		r.metrics.WriteErrors++
		r.buffer = append(batch, r.buffer...)
		r.mu.Unlock()
		r.logger.Error("batch write failed, keeping batch",
			"error", err,
			"count", len(batch),
		)
		return
	}
	r.metrics.Inserted += int64(res.Inserted)
	r.metrics.Duplicates += int64(res.Duplicates)
	r.metrics.IntegrityErrors += int64(res.IntegrityErrors)
	r.metrics.Flushes++
	r.mu.Unlock()

	r.logger.Debug("flushed trades",
		"count", len(batch),
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"duration", time.Since(start),
	)
}

func (r *Recorder) writeWithRetry(ctx context.Context, batch []model.TradeRecord) (store.UpsertResult, error) {
	var res store.UpsertResult
	var err error

	for attempt := 0; attempt <= r.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.cfg.RetryDelay):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}
		res, err = r.sink.UpsertTrades(ctx, batch)
		if err == nil {
			return res, nil
		}
		r.logger.Warn("batch write attempt failed",
			"attempt", attempt+1,
			"error", err,
		)
	}
	return res, err
}
