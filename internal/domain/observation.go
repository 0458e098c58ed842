package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// RawObservation is one scraped data point before cleaning. Every field is
// optional; producers differ in which keys they fill and how they type them.
// The normalizer is total over this shape, so nothing here carries an
// invariant.
type RawObservation struct {
	ProductCode    *string         `json:"product_code,omitempty"`
	Name           *string         `json:"name,omitempty"`
	Category       *string         `json:"category,omitempty"`
	Brand          *string         `json:"brand,omitempty"`
	Model          *string         `json:"model,omitempty"`
	AvgPrice       *RawScalar      `json:"avg_price,omitempty"`
	Price          *RawScalar      `json:"price,omitempty"`
	ScrapeDate     *RawScalar      `json:"scrape_date,omitempty"`
	CrawlTime      *RawScalar      `json:"crawl_time,omitempty"`
	PriceHistory   json.RawMessage `json:"price_history,omitempty"`
	SourcePlatform *string         `json:"source_platform,omitempty"`
	Page           *int            `json:"page,omitempty"`
}

// RawScalar holds a loosely typed scraped value that may arrive as either a
// JSON string or a JSON number. The raw literal is kept as text so numeric
// values reach the decimal parser without a float round trip.
type RawScalar struct {
	Text   string
	Quoted bool
}

// StringScalar wraps a string-typed value.
func StringScalar(s string) *RawScalar {
	return &RawScalar{Text: s, Quoted: true}
}

// NumberScalar wraps a pre-typed decimal value.
func NumberScalar(d decimal.Decimal) *RawScalar {
	return &RawScalar{Text: d.String()}
}

// IntScalar wraps an integer value, typically an epoch timestamp.
func IntScalar(n int64) *RawScalar {
	return &RawScalar{Text: strconv.FormatInt(n, 10)}
}

// IsEmpty reports whether the scalar is absent or blank.
func (s *RawScalar) IsEmpty() bool {
	return s == nil || s.Text == ""
}

func (s *RawScalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = RawScalar{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = RawScalar{Text: text, Quoted: true}
		return nil
	}
	*s = RawScalar{Text: string(data)}
	return nil
}

func (s RawScalar) MarshalJSON() ([]byte, error) {
	if s.Quoted {
		return json.Marshal(s.Text)
	}
	if s.Text == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(s.Text, 64); err != nil {
		// Unquoted non-numeric text would produce invalid JSON.
		return json.Marshal(s.Text)
	}
	return []byte(s.Text), nil
}
