package ingestion

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

func validProduct() domain.Product {
	return domain.Product{
		ProductCode: "PHONE001",
		Name:        "iPhone 14",
		Category:    "手机",
		Brand:       "Apple",
		Model:       "iPhone 14",
		AvgPrice:    decimal.RequireFromString("5800"),
		ScrapeDate:  "2024-01-01",
	}
}

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	if field, ok := Validate(validProduct()); !ok {
		t.Fatalf("expected valid record, failed on %s", field)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := map[string]func(*domain.Product){
		"product_code": func(p *domain.Product) { p.ProductCode = "" },
		"name":         func(p *domain.Product) { p.Name = "" },
		"category":     func(p *domain.Product) { p.Category = "" },
		"brand":        func(p *domain.Product) { p.Brand = "" },
		"model":        func(p *domain.Product) { p.Model = "" },
		"scrape_date":  func(p *domain.Product) { p.ScrapeDate = "" },
	}
	for want, mutate := range cases {
		p := validProduct()
		mutate(&p)
		field, ok := Validate(p)
		if ok {
			t.Fatalf("expected rejection for missing %s", want)
		}
		if field != want {
			t.Fatalf("expected failing field %s, got %s", want, field)
		}
	}
}

func TestValidateRejectsNonPositivePrice(t *testing.T) {
	for _, value := range []string{"0", "-5800", "0.00"} {
		p := validProduct()
		p.AvgPrice = decimal.RequireFromString(value)
		field, ok := Validate(p)
		if ok {
			t.Fatalf("expected rejection for price %s", value)
		}
		if field != "avg_price" {
			t.Fatalf("expected avg_price failure, got %s", field)
		}
	}

	absent := validProduct()
	absent.AvgPrice = decimal.Decimal{}
	if _, ok := Validate(absent); ok {
		t.Fatalf("expected rejection for absent price")
	}
}
