package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field length limits enforced during cleaning. They mirror the column
// widths of the products table.
const (
	MaxCodeLen     = 50
	MaxNameLen     = 100
	MaxCategoryLen = 50
	MaxBrandLen    = 50
	MaxModelLen    = 100
)

// DateLayout is the canonical calendar-date form used everywhere a date
// crosses a boundary (history entries, API payloads, the scrape_date column).
// Lexicographic order on this layout is date order.
const DateLayout = "2006-01-02"

// Product is one catalog record: the latest observed buy-back price for a
// device plus its bounded price history. ProductCode is unique across the
// catalog.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	ProductCode  string          `json:"product_code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	ScrapeDate   string          `json:"scrape_date"`
	PriceHistory PriceHistory    `json:"price_history"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewProduct stamps identity and creation time on a cleaned record about to
// be inserted. CreatedAt is set exactly once here and never rewritten.
func NewProduct(cleaned Product) Product {
	cleaned.ID = uuid.New()
	cleaned.CreatedAt = time.Now()
	return cleaned
}

// TruncateRunes caps s at max runes. Scraped names mix ASCII and CJK, so the
// cap has to count characters, not bytes.
func TruncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// HasValue reports whether an optional string field is both present and
// non-blank. Cleaning logic must not conflate "field omitted" with "field
// explicitly empty", so every fallback branch goes through this predicate.
func HasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
