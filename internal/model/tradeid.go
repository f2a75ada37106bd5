package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tradeIDNamespace is the fixed UUID namespace for trade-ID derivation.
//
// The derivation below is a versioned contract (v1). Stored trade IDs
// depend on it: changing the namespace, the field order, the decimal
// rendering, or the timestamp encoding silently breaks idempotence of
// existing data and requires a migration.
var tradeIDNamespace = uuid.MustParse("6c1f4a9e-0b3d-4f2a-9c87-2e5d1b8a4e10")

// DeriveTradeID computes the deterministic composite key for a trade.
//
// The key is a UUIDv5 over assetID, the exchange timestamp in Unix
// milliseconds, price and size rendered to exactly six decimal places,
// and the side. Two deliveries of the same upstream event therefore
// collide onto the same ID regardless of how often the stream replays
// them.
func DeriveTradeID(assetID string, eventTime time.Time, price, size decimal.Decimal, side Side) string {
	key := strings.Join([]string{
		assetID,
		strconv.FormatInt(eventTime.UnixMilli(), 10),
		price.StringFixed(6),
		size.StringFixed(6),
		string(side),
	}, "|")
	return uuid.NewSHA1(tradeIDNamespace, []byte(key)).String()
}
