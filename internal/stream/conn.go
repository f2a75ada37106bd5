package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a self-healing market-channel connection. It dials, sends
// the subscription frame, and reconnects with capped backoff when the
// socket drops or goes stale, resubscribing the full tracked set on
// every connect. Decoded events come out of Events().
type Conn interface {
	// Start begins the connect/read/reconnect loop.
	Start(ctx context.Context) error

	// Subscribe adds asset IDs to the tracked set. If currently
	// connected the new full set is sent immediately; otherwise it
	// takes effect on the next (re)connect.
	Subscribe(assetIDs ...string) error

	// Unsubscribe removes asset IDs from the tracked set.
	Unsubscribe(assetIDs ...string) error

	// Subscriptions returns the current tracked set, sorted.
	Subscriptions() []string

	// Events returns the decoded event channel. It closes after
	// Shutdown completes.
	Events() <-chan Event

	// State reports the current lifecycle state.
	State() State

	// Stats returns a snapshot of connection counters.
	Stats() Stats

	// Shutdown closes the connection and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

type conn struct {
	cfg    Config
	logger *slog.Logger

	events chan Event

	mu      sync.RWMutex
	desired map[string]struct{}
	state   State
	active  *client

	// sendMu orders subscription frames. Each frame snapshots the
	// desired set under this lock, so the frame sent last always
	// carries the freshest set even when pushes race.
	sendMu sync.Mutex

	reconnects       atomic.Int64
	messagesReceived atomic.Int64
	eventsDelivered  atomic.Int64
	parseErrors      atomic.Int64
	unknownEvents    atomic.Int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewConn creates a connection. A nil logger falls back to slog.Default.
func NewConn(cfg Config, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &conn{
		cfg:     cfg,
		logger:  logger.With("component", "stream"),
		events:  make(chan Event, cfg.EventBuffer),
		desired: make(map[string]struct{}),
		state:   StateDisconnected,
	}
}

func (c *conn) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("stream already started")
	}
	c.started = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx)
	}()

	c.logger.Info("stream started", "url", c.cfg.URL)
	return nil
}

func (c *conn) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.stopped = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(c.events)
		c.logger.Info("stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) Events() <-chan Event {
	return c.events
}

func (c *conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *conn) Stats() Stats {
	c.mu.RLock()
	state := c.state
	subs := len(c.desired)
	c.mu.RUnlock()

	return Stats{
		State:            state,
		Subscriptions:    subs,
		Reconnects:       c.reconnects.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		EventsDelivered:  c.eventsDelivered.Load(),
		ParseErrors:      c.parseErrors.Load(),
		UnknownEvents:    c.unknownEvents.Load(),
	}
}

func (c *conn) Subscribe(assetIDs ...string) error {
	return c.mutateSet(assetIDs, true)
}

func (c *conn) Unsubscribe(assetIDs ...string) error {
	return c.mutateSet(assetIDs, false)
}

func (c *conn) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desiredLocked()
}

// mutateSet updates the desired set and, when connected, pushes the
// new full set. During a reconnect the mutation is only recorded; the
// connect path transitions to Subscribed before snapshotting its
// frame, so a mutation recorded mid-connect is always covered by that
// frame.
func (c *conn) mutateSet(assetIDs []string, add bool) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrShuttingDown
	}

	changed := false
	for _, id := range assetIDs {
		if id == "" {
			continue
		}
		if add {
			if _, ok := c.desired[id]; !ok {
				c.desired[id] = struct{}{}
				changed = true
			}
		} else {
			if _, ok := c.desired[id]; ok {
				delete(c.desired, id)
				changed = true
			}
		}
	}

	active := c.active
	state := c.state
	c.mu.Unlock()

	if !changed || state != StateSubscribed || active == nil {
		return nil
	}
	return c.pushSet(active, false)
}

// desiredLocked snapshots the tracked set. Caller holds mu.
func (c *conn) desiredLocked() []string {
	out := make([]string, 0, len(c.desired))
	for id := range c.desired {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// pushSet snapshots the current desired set and sends it as one
// subscription frame. Snapshot and send happen under sendMu. skipEmpty
// suppresses the frame when nothing is tracked yet (fresh connect);
// an emptied set from Unsubscribe is still sent.
func (c *conn) pushSet(cl *client, skipEmpty bool) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.RLock()
	set := c.desiredLocked()
	c.mu.RUnlock()

	if skipEmpty && len(set) == 0 {
		return nil
	}
	return c.sendSet(cl, set)
}

// sendSet sends the full desired set as one subscription frame. The
// server replaces the connection's subscription with whatever the
// frame carries, which is why diffs are never sent.
func (c *conn) sendSet(cl *client, set []string) error {
	frame := subscribeFrame{AssetIDs: set, Type: marketChannel}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}
	if err := cl.send(data); err != nil {
		return fmt.Errorf("send subscribe frame: %w", err)
	}
	c.logger.Debug("subscription sent", "assets", len(set))
	return nil
}

func (c *conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// run is the connect/pump/reconnect loop. It exits only on context
// cancellation. connectAndSubscribe performs the Subscribed
// transition itself.
func (c *conn) run(ctx context.Context) {
	delay := c.cfg.ReconnectBaseDelay
	first := true

	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		if first {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
			c.reconnects.Add(1)
		}

		cl := newClient(c.cfg, c.cfg.URL+"/ws/"+marketChannel, c.logger)
		if err := c.connectAndSubscribe(ctx, cl); err != nil {
			cl.close()
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			c.logger.Warn("connect failed, backing off",
				"error", err,
				"delay", delay,
			)
			if !sleepCtx(ctx, delay) {
				c.setState(StateDisconnected)
				return
			}
			delay = nextDelay(delay, c.cfg.ReconnectMaxDelay)
			first = false
			continue
		}

		delay = c.cfg.ReconnectBaseDelay
		first = false

		err := c.pump(ctx, cl)
		cl.close()

		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.logger.Warn("connection lost, reconnecting", "error", err)
	}
}

// connectAndSubscribe dials and sends the tracked set. The Subscribed
// transition and the active-client assignment happen in one critical
// section before the frame is built: a Subscribe racing the connect
// either lands before the transition (and is included in this frame's
// snapshot) or after it (and pushes its own frame). Neither path can
// drop a token.
func (c *conn) connectAndSubscribe(ctx context.Context, cl *client) error {
	if err := cl.connect(ctx); err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.active = cl
	c.state = StateSubscribed
	c.mu.Unlock()

	if err := c.pushSet(cl, true); err != nil {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		return err
	}
	return nil
}

// pump drains one client until it errors or the context ends. Event
// delivery blocks: a frame read off the socket always reaches the
// consumer, backpressure propagates upstream instead of dropping.
func (c *conn) pump(ctx context.Context, cl *client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-cl.errors:
			return err

		case msg := <-cl.messages:
			c.messagesReceived.Add(1)

			events, unknown, err := decodeMessage(msg.data, msg.receivedAt)
			if err != nil {
				c.parseErrors.Add(1)
				c.logger.Warn("undecodable message", "error", err)
				continue
			}
			if unknown > 0 {
				c.unknownEvents.Add(int64(unknown))
			}

			for _, ev := range events {
				select {
				case c.events <- ev:
					c.eventsDelivered.Add(1)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// sleepCtx waits for d or until ctx ends; reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
