package ingestion

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	domain.DateLayout,
	"2006/01/02",
	"20060102",
}

// Normalize turns one raw observation into a cleaned product record. It is
// total: every malformed field degrades to a default or stays empty for the
// validator to catch, it never fails. now supplies the fallback date for
// observations without a parseable one.
func Normalize(raw domain.RawObservation, now func() time.Time) domain.Product {
	var p domain.Product

	p.Category = cleanText(raw.Category, domain.MaxCategoryLen)
	p.Brand = cleanText(raw.Brand, domain.MaxBrandLen)
	p.Model = cleanText(raw.Model, domain.MaxModelLen)
	p.ProductCode = cleanProductCode(raw)
	p.Name = cleanName(raw)

	if price, ok := parsePrice(raw.AvgPrice); ok {
		p.AvgPrice = price
	} else if price, ok := parsePrice(raw.Price); ok {
		p.AvgPrice = price
	}

	p.ScrapeDate = cleanScrapeDate(raw, now)
	p.PriceHistory = domain.ParsePriceHistory(raw.PriceHistory)

	return p
}

func cleanText(field *string, max int) string {
	if !domain.HasValue(field) {
		return ""
	}
	return domain.TruncateRunes(strings.TrimSpace(*field), max)
}

// cleanProductCode trims the supplied code, or derives one from
// category+brand+model when all three are present: uppercased, joined with
// underscores, whitespace turned into underscores, everything that is not a
// letter, digit or underscore stripped.
func cleanProductCode(raw domain.RawObservation) string {
	code := ""
	if domain.HasValue(raw.ProductCode) {
		code = strings.TrimSpace(*raw.ProductCode)
	}
	if code == "" {
		category := cleanText(raw.Category, domain.MaxCategoryLen)
		brand := cleanText(raw.Brand, domain.MaxBrandLen)
		model := cleanText(raw.Model, domain.MaxModelLen)
		if category != "" && brand != "" && model != "" {
			code = deriveProductCode(category, brand, model)
		}
	}
	return domain.TruncateRunes(code, domain.MaxCodeLen)
}

func deriveProductCode(category, brand, model string) string {
	joined := strings.ToUpper(category + "_" + brand + "_" + model)
	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanName(raw domain.RawObservation) string {
	name := ""
	if domain.HasValue(raw.Name) {
		name = strings.TrimSpace(*raw.Name)
	}
	if name == "" {
		brand := cleanText(raw.Brand, domain.MaxBrandLen)
		model := cleanText(raw.Model, domain.MaxModelLen)
		name = strings.TrimSpace(brand + " " + model)
	}
	return domain.TruncateRunes(name, domain.MaxNameLen)
}

// parsePrice accepts a pre-typed number or a string with currency symbols
// and thousands separators, rounded to two fractional digits. Unparseable
// values report absent, never zero.
func parsePrice(value *domain.RawScalar) (decimal.Decimal, bool) {
	if value.IsEmpty() {
		return decimal.Decimal{}, false
	}
	text := value.Text
	if value.Quoted {
		text = strings.NewReplacer("¥", "", "$", "", ",", "").Replace(text)
		text = strings.TrimSpace(text)
	}
	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price.Round(2), true
}

// cleanScrapeDate resolves the observation date: the scrape_date field
// first, the crawl_time field when scrape_date is omitted entirely, today
// when neither parses. Defaulting to today instead of rejecting is
// deliberate source behavior.
func cleanScrapeDate(raw domain.RawObservation, now func() time.Time) string {
	if !raw.ScrapeDate.IsEmpty() {
		if date, ok := parseDate(raw.ScrapeDate); ok {
			return date
		}
		return now().Format(domain.DateLayout)
	}
	if !raw.CrawlTime.IsEmpty() {
		if date, ok := parseDate(raw.CrawlTime); ok {
			return date
		}
	}
	return now().Format(domain.DateLayout)
}

func parseDate(value *domain.RawScalar) (string, bool) {
	if value.IsEmpty() {
		return "", false
	}
	if !value.Quoted {
		// Numeric values are epoch seconds; convert via the local calendar.
		seconds, err := strconv.ParseFloat(value.Text, 64)
		if err != nil {
			return "", false
		}
		return time.Unix(int64(seconds), 0).Format(domain.DateLayout), true
	}
	text := strings.TrimSpace(value.Text)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.Format(domain.DateLayout), true
		}
	}
	return "", false
}
