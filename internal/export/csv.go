// Package export renders query results for consumption outside the
// tool. Output is streamed row by row so exports of any size run in
// constant memory.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

var csvHeader = []string{
	"timestamp",
	"market_id",
	"asset_id",
	"side",
	"outcome",
	"price",
	"size",
	"value",
	"fee_rate_bps",
	"source",
}

// CSVWriter streams trades as CSV. Create with NewCSVWriter, write
// rows, then Flush.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter wraps out and writes the header immediately.
func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{w: w}, nil
}

// Write appends one trade row.
func (c *CSVWriter) Write(t model.TradeRecord) error {
	row := []string{
		t.EventTime.UTC().Format(time.RFC3339),
		t.MarketID,
		t.AssetID,
		string(t.Side),
		t.Outcome,
		t.Price.String(),
		t.Size.String(),
		t.Value().String(),
		strconv.Itoa(t.FeeRateBps),
		string(t.Source),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush drains buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
