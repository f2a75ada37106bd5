package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// Wire shapes. Every numeric field on the market channel is a string.

type eventEnvelope struct {
	EventType string `json:"event_type"`
}

type bookWire struct {
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Bids      []levelWire `json:"bids"`
	Asks      []levelWire `json:"asks"`
	Timestamp string      `json:"timestamp"`
}

type levelWire struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type priceChangeWire struct {
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Changes   []changeWire `json:"changes"`
	Timestamp string       `json:"timestamp"`
}

type changeWire struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

type tickSizeWire struct {
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
	Timestamp   string `json:"timestamp"`
}

type tradeWire struct {
	AssetID    string `json:"asset_id"`
	Market     string `json:"market"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Side       string `json:"side"`
	FeeRateBps string `json:"fee_rate_bps"`
	Timestamp  string `json:"timestamp"`
}

// decodeMessage decodes one frame into typed events. Frames may carry
// a single event object or an array of them. Unknown event types come
// back in the unknown count, not as an error.
func decodeMessage(data []byte, receivedAt time.Time) (events []Event, unknown int, err error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, 0, nil
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, 0, fmt.Errorf("parse event array: %w", err)
		}
		for _, raw := range raws {
			ev, ok, err := decodeEvent(raw, receivedAt)
			if err != nil {
				return events, unknown, err
			}
			if !ok {
				unknown++
				continue
			}
			events = append(events, ev)
		}
		return events, unknown, nil
	}

	ev, ok, err := decodeEvent(data, receivedAt)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 1, nil
	}
	return []Event{ev}, 0, nil
}

// decodeEvent decodes a single event object. ok is false for
// recognized-but-untyped messages (unknown event_type).
func decodeEvent(data []byte, receivedAt time.Time) (Event, bool, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("parse event envelope: %w", err)
	}

	switch env.EventType {
	case "book":
		var wire bookWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, false, fmt.Errorf("parse book event: %w", err)
		}
		return BookEvent{
			AssetID:    wire.AssetID,
			MarketID:   wire.Market,
			Bids:       parseLevels(wire.Bids),
			Asks:       parseLevels(wire.Asks),
			EventTime:  parseMillis(wire.Timestamp),
			ReceivedAt: receivedAt,
		}, true, nil

	case "price_change":
		var wire priceChangeWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, false, fmt.Errorf("parse price_change event: %w", err)
		}
		changes := make([]PriceChange, 0, len(wire.Changes))
		for _, ch := range wire.Changes {
			changes = append(changes, PriceChange{
				Price: parseDecimal(ch.Price),
				Size:  parseDecimal(ch.Size),
				Side:  ch.Side,
			})
		}
		return PriceChangeEvent{
			AssetID:    wire.AssetID,
			MarketID:   wire.Market,
			Changes:    changes,
			EventTime:  parseMillis(wire.Timestamp),
			ReceivedAt: receivedAt,
		}, true, nil

	case "tick_size_change":
		var wire tickSizeWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, false, fmt.Errorf("parse tick_size_change event: %w", err)
		}
		return TickSizeEvent{
			AssetID:     wire.AssetID,
			MarketID:    wire.Market,
			OldTickSize: parseDecimal(wire.OldTickSize),
			NewTickSize: parseDecimal(wire.NewTickSize),
			EventTime:   parseMillis(wire.Timestamp),
			ReceivedAt:  receivedAt,
		}, true, nil

	case "last_trade_price":
		var wire tradeWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, false, fmt.Errorf("parse last_trade_price event: %w", err)
		}
		price, err := decimal.NewFromString(wire.Price)
		if err != nil {
			return nil, false, fmt.Errorf("trade price %q: %w", wire.Price, err)
		}
		size, err := decimal.NewFromString(wire.Size)
		if err != nil {
			return nil, false, fmt.Errorf("trade size %q: %w", wire.Size, err)
		}
		side := model.Side(strings.ToUpper(wire.Side))
		if !side.Valid() {
			return nil, false, fmt.Errorf("trade side %q unrecognized", wire.Side)
		}
		eventTime, err := parseEventTime(wire.Timestamp)
		if err != nil {
			return nil, false, err
		}
		feeBps := 0
		if wire.FeeRateBps != "" {
			if v, err := strconv.Atoi(wire.FeeRateBps); err == nil {
				feeBps = v
			}
		}
		return TradeEvent{
			AssetID:    wire.AssetID,
			MarketID:   wire.Market,
			Price:      price,
			Size:       size,
			Side:       side,
			FeeRateBps: feeBps,
			EventTime:  eventTime,
			ReceivedAt: receivedAt,
		}, true, nil
	}

	return nil, false, nil
}

// parseLevels converts wire levels, skipping malformed entries.
func parseLevels(levels []levelWire) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(l.Size)
		if err != nil {
			continue
		}
		out = append(out, PriceLevel{Price: price, Size: size})
	}
	return out
}

// parseDecimal is a best-effort decode for fields where zero is an
// acceptable fallback (book levels, tick sizes).
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseEventTime parses a channel timestamp. The market channel sends
// Unix milliseconds as a string; RFC 3339 is accepted as a fallback.
func parseEventTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("trade timestamp %q unrecognized", s)
}

// parseMillis is the best-effort form for events where a zero time is
// an acceptable fallback (books, price changes, tick sizes).
func parseMillis(s string) time.Time {
	t, err := parseEventTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
