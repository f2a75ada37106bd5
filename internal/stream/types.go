package stream

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrStaleConn     = errors.New("connection stale (no pong)")
	ErrAlreadyClosed = errors.New("already closed")
	ErrShuttingDown  = errors.New("shutting down")
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateReconnecting State = "reconnecting"
)

// Event is one decoded market-channel message. The variant set is
// closed: BookEvent, PriceChangeEvent, TickSizeEvent, TradeEvent.
type Event interface {
	isEvent()
}

// PriceLevel is one side level of an orderbook snapshot.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookEvent is a full orderbook snapshot for one asset.
type BookEvent struct {
	AssetID    string
	MarketID   string
	Bids       []PriceLevel
	Asks       []PriceLevel
	EventTime  time.Time
	ReceivedAt time.Time
}

// PriceChange is a single level change within a PriceChangeEvent.
type PriceChange struct {
	Price decimal.Decimal
	Size  decimal.Decimal
	Side  string // "BUY" or "SELL" book side
}

// PriceChangeEvent reports order placements/cancellations moving a level.
type PriceChangeEvent struct {
	AssetID    string
	MarketID   string
	Changes    []PriceChange
	EventTime  time.Time
	ReceivedAt time.Time
}

// TickSizeEvent reports a tick size change for an asset.
type TickSizeEvent struct {
	AssetID     string
	MarketID    string
	OldTickSize decimal.Decimal
	NewTickSize decimal.Decimal
	EventTime   time.Time
	ReceivedAt  time.Time
}

// TradeEvent is a trade execution (last_trade_price). This is the one
// variant the recorder persists.
type TradeEvent struct {
	AssetID    string
	MarketID   string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Side       model.Side
	FeeRateBps int
	EventTime  time.Time
	ReceivedAt time.Time
}

func (BookEvent) isEvent()        {}
func (PriceChangeEvent) isEvent() {}
func (TickSizeEvent) isEvent()    {}
func (TradeEvent) isEvent()       {}

// subscribeFrame is the market-channel subscription message. The
// server treats each frame as the connection's full desired set, so
// both subscribe and unsubscribe paths send the entire tracked set.
type subscribeFrame struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

const marketChannel = "market"

// Config configures a Conn.
type Config struct {
	URL                string        // Base WS URL; /ws/market is appended
	PingInterval       time.Duration // Text PING cadence
	StaleTimeout       time.Duration // Max silence before reconnect
	WriteTimeout       time.Duration // Write deadline for sends
	ReconnectBaseDelay time.Duration // First backoff step
	ReconnectMaxDelay  time.Duration // Backoff cap
	EventBuffer        int           // Decoded event channel depth
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                "wss://ws-subscriptions-clob.polymarket.com",
		PingInterval:       10 * time.Second,
		StaleTimeout:       30 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		EventBuffer:        1000,
	}
}

// Stats are counters exposed for the health endpoint and logs.
type Stats struct {
	State            State
	Subscriptions    int
	Reconnects       int64
	MessagesReceived int64
	EventsDelivered  int64
	ParseErrors      int64
	UnknownEvents    int64
}
