package gamma

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
)

// GammaMarket is the wire representation of a market.
//
// Gamma double-encodes some list fields ("outcomes" and
// "clobTokenIds" arrive as JSON strings containing JSON arrays) and
// numeric fields sometimes arrive as strings; the custom decoders
// below accept both shapes.
type GammaMarket struct {
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	Slug       string      `json:"slug"`
	Outcomes   StringList  `json:"outcomes"`
	TokenIDs   StringList  `json:"clobTokenIds"`
	Volume     LooseFloat  `json:"volume"`
	CreatedAt  string      `json:"createdAt"`
	Closed     bool        `json:"closed"`
	ClosedTime string      `json:"closedTime"`
}

// StringList decodes either a JSON array of strings or a JSON string
// containing an encoded array.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}

	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*s = direct
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if encoded == "" {
		*s = nil
		return nil
	}
	var inner []string
	if err := json.Unmarshal([]byte(encoded), &inner); err != nil {
		return err
	}
	*s = inner
	return nil
}

// LooseFloat decodes a JSON number or a numeric string.
type LooseFloat float64

func (f *LooseFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}

	var direct float64
	if err := json.Unmarshal(data, &direct); err == nil {
		*f = LooseFloat(direct)
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if encoded == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(encoded, 64)
	if err != nil {
		return err
	}
	*f = LooseFloat(v)
	return nil
}

// Binary reports whether the market has exactly two outcomes with
// matching token IDs. Non-binary markets are skipped by the cache.
func (m *GammaMarket) Binary() bool {
	return len(m.Outcomes) == 2 && len(m.TokenIDs) == 2
}

// ToModel converts the wire market into the cached model form.
// Returns false for markets without exactly two outcome tokens.
func (m *GammaMarket) ToModel() (model.Market, bool) {
	if !m.Binary() {
		return model.Market{}, false
	}

	out := model.Market{
		MarketID:    m.ID,
		Question:    m.Question,
		OutcomeUp:   m.Outcomes[0],
		OutcomeDown: m.Outcomes[1],
		TokenUp:     m.TokenIDs[0],
		TokenDown:   m.TokenIDs[1],
		Volume:      float64(m.Volume),
		Closed:      m.Closed,
	}

	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		t = t.UTC()
		out.CreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, m.ClosedTime); err == nil {
		t = t.UTC()
		out.ClosedTime = &t
	}

	return out, true
}
