package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MaxHistoryDays bounds the price history per product. Only the most recent
// entries survive; eviction is by count, oldest date first.
const MaxHistoryDays = 7

// PricePoint is one dated price observation inside a product's history.
type PricePoint struct {
	Date  string
	Price decimal.Decimal
}

// MarshalJSON emits the stable wire shape consumers depend on:
// {"date":"YYYY-MM-DD","price":N.NN} with exactly two fractional digits.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	date, err := json.Marshal(p.Date)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"date":%s,"price":%s}`, date, p.Price.StringFixed(2))), nil
}

// UnmarshalJSON accepts the price as either a JSON number or a numeric
// string; stored rows and third-party history blobs disagree on this.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date  string          `json:"date"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Date = aux.Date
	p.Price = decimal.Zero
	if len(aux.Price) == 0 {
		return nil
	}
	raw := string(aux.Price)
	if len(raw) >= 2 && raw[0] == '"' {
		if err := json.Unmarshal(aux.Price, &raw); err != nil {
			return err
		}
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid history price %q: %w", raw, err)
	}
	p.Price = price
	return nil
}

// PriceHistory is the bounded, date-keyed price series attached to a
// product. Invariant after any Merge: at most MaxHistoryDays entries, at
// most one entry per date, ascending date order.
type PriceHistory []PricePoint

// ParsePriceHistory decodes a stored or scraped history blob. Parse failures
// and non-list shapes degrade to an empty history rather than an error; a
// corrupt blob must never block ingestion.
func ParsePriceHistory(raw []byte) PriceHistory {
	if len(raw) == 0 {
		return PriceHistory{}
	}
	var history PriceHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return PriceHistory{}
	}
	if history == nil {
		return PriceHistory{}
	}
	return history
}

// Merge folds one (date, price) observation into the history and returns the
// result. An entry for the same date is overwritten in place, so re-ingesting
// the same day is idempotent. The receiver is not modified.
func (h PriceHistory) Merge(price decimal.Decimal, date string) PriceHistory {
	merged := make(PriceHistory, len(h))
	copy(merged, h)

	replaced := false
	for i := range merged {
		if merged[i].Date == date {
			merged[i].Price = price
			replaced = true
			break
		}
	}
	if !replaced {
		merged = append(merged, PricePoint{Date: date, Price: price})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})

	if len(merged) > MaxHistoryDays {
		merged = merged[len(merged)-MaxHistoryDays:]
	}
	return merged
}

// MergeHistory is the serialized form of Merge: it tolerantly parses the
// stored blob, folds in the observation, and re-serializes. Pure function.
func MergeHistory(storedJSON []byte, price decimal.Decimal, date string) ([]byte, PriceHistory) {
	merged := ParsePriceHistory(storedJSON).Merge(price, date)
	encoded, err := json.Marshal(merged)
	if err != nil {
		// PricePoint marshaling cannot fail on well-formed dates; fall back
		// to an empty list rather than propagating.
		return []byte("[]"), merged
	}
	return encoded, merged
}

// JSON serializes the history in its wire shape.
func (h PriceHistory) JSON() []byte {
	if h == nil {
		h = PriceHistory{}
	}
	encoded, err := json.Marshal(h)
	if err != nil {
		return []byte("[]")
	}
	return encoded
}

// Equal compares two histories by date and numeric price value.
func (h PriceHistory) Equal(other PriceHistory) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i].Date != other[i].Date || !h[i].Price.Equal(other[i].Price) {
			return false
		}
	}
	return true
}
