package ingestion

import (
	"errors"
	"strings"
	"testing"
)

func TestParseObservationsJSONArray(t *testing.T) {
	payload := []byte(`[
		{"product_code":"PHONE001","name":"iPhone 14","category":"手机","brand":"Apple","model":"iPhone 14","avg_price":"¥5,800.00","scrape_date":"2024-01-01"},
		{"product_code":"PHONE002","avg_price":4200}
	]`)

	observations, err := ParseObservations("batch.json", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}
	if observations[0].ProductCode == nil || *observations[0].ProductCode != "PHONE001" {
		t.Fatalf("unexpected first observation: %+v", observations[0])
	}
	if observations[1].AvgPrice == nil || observations[1].AvgPrice.Text != "4200" || observations[1].AvgPrice.Quoted {
		t.Fatalf("numeric literal must keep its raw form: %+v", observations[1].AvgPrice)
	}
}

func TestParseObservationsJSONLines(t *testing.T) {
	payload := []byte(`{"product_code":"PHONE001","avg_price":"5800"}

{"product_code":"PHONE002","avg_price":"4200"}
`)
	observations, err := ParseObservations("batch.jsonl", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}
	if *observations[1].ProductCode != "PHONE002" {
		t.Fatalf("unexpected second observation: %+v", observations[1])
	}
}

func TestParseObservationsCSV(t *testing.T) {
	payload := []byte("\xEF\xBB\xBF" + strings.Join([]string{
		"product_code,name,category,brand,model,avg_price,scrape_date,page",
		"PHONE001,iPhone 14,手机,Apple,iPhone 14,5800.00,2024-01-01,3",
		",,,,,,,",
		"PHONE002,Galaxy S23,手机,Samsung,Galaxy S23,4200.00,2024-01-01,3",
	}, "\n"))

	observations, err := ParseObservations("batch.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("blank rows must be skipped, got %d observations", len(observations))
	}

	first := observations[0]
	if first.ProductCode == nil || *first.ProductCode != "PHONE001" {
		t.Fatalf("unexpected product code: %+v", first)
	}
	if first.AvgPrice == nil || first.AvgPrice.Text != "5800.00" {
		t.Fatalf("unexpected price scalar: %+v", first.AvgPrice)
	}
	if first.Page == nil || *first.Page != 3 {
		t.Fatalf("expected page 3, got %+v", first.Page)
	}
}

func TestParseObservationsCSVShortRow(t *testing.T) {
	payload := []byte("product_code,name,avg_price\nPHONE001,iPhone 14\n")
	observations, err := ParseObservations("batch.csv", payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}
	if observations[0].AvgPrice != nil {
		t.Fatalf("missing trailing cell must stay absent, got %+v", observations[0].AvgPrice)
	}
}

func TestParseObservationsRejectsUnknownExtension(t *testing.T) {
	if _, err := ParseObservations("batch.txt", []byte("whatever")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
