package ingestion

import "github.com/qiwen-dev/recycleprice/internal/domain"

// Validate checks a cleaned record for completeness. It returns the first
// missing required field, or ok for records safe to persist. A price that is
// absent or not strictly positive fails as avg_price.
func Validate(p domain.Product) (string, bool) {
	required := []struct {
		field string
		value string
	}{
		{"product_code", p.ProductCode},
		{"name", p.Name},
		{"category", p.Category},
		{"brand", p.Brand},
		{"model", p.Model},
		{"scrape_date", p.ScrapeDate},
	}
	for _, r := range required {
		if r.value == "" {
			return r.field, false
		}
	}
	if !p.AvgPrice.IsPositive() {
		return "avg_price", false
	}
	return "", true
}
