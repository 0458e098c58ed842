package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

type stubProductRepo struct {
	products []domain.Product
}

func (r *stubProductRepo) GetByCode(_ context.Context, code string) (domain.Product, bool, error) {
	for _, p := range r.products {
		if p.ProductCode == code {
			return p, true, nil
		}
	}
	return domain.Product{}, false, nil
}

func (r *stubProductRepo) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	r.products = append(r.products, product)
	return product, nil
}

func (r *stubProductRepo) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	return product, nil
}

func (r *stubProductRepo) List(_ context.Context, keyword string) ([]domain.Product, error) {
	if keyword == "" {
		return r.products, nil
	}
	var matched []domain.Product
	needle := strings.ToLower(keyword)
	for _, p := range r.products {
		haystack := strings.ToLower(p.Name + " " + p.Brand + " " + p.Model + " " + p.Category + " " + p.ProductCode)
		if strings.Contains(haystack, needle) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func (r *stubProductRepo) ListCategories(_ context.Context) ([]string, error) {
	return []string{"手机", "平板"}, nil
}

func (r *stubProductRepo) ListBrands(_ context.Context, _ string) ([]string, error) {
	return []string{"Apple"}, nil
}

func (r *stubProductRepo) ListModels(_ context.Context, _, _ string) ([]string, error) {
	return []string{"iPhone 14"}, nil
}

func (r *stubProductRepo) GetByCatalog(_ context.Context, category, brand, model string) (domain.Product, bool, error) {
	for _, p := range r.products {
		if p.Category == category && p.Brand == brand && p.Model == model {
			return p, true, nil
		}
	}
	return domain.Product{}, false, nil
}

type stubScrapeLogRepo struct {
	entries []domain.ScrapeLogEntry
}

func (r *stubScrapeLogRepo) Record(_ context.Context, entry domain.ScrapeLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubScrapeLogRepo) List(_ context.Context, _, _ int) ([]domain.ScrapeLogEntry, error) {
	return r.entries, nil
}

func catalogProduct(code, name, brand, model string, price string, history domain.PriceHistory) domain.Product {
	return domain.Product{
		ID:           uuid.New(),
		ProductCode:  code,
		Name:         name,
		Category:     "手机",
		Brand:        brand,
		Model:        model,
		AvgPrice:     decimal.RequireFromString(price),
		ScrapeDate:   "2024-01-07",
		PriceHistory: history,
	}
}

func newTestHandler() (http.Handler, *stubProductRepo) {
	repo := &stubProductRepo{products: []domain.Product{
		catalogProduct("PHONE001", "iPhone 14", "Apple", "iPhone 14", "5800", domain.PriceHistory{
			{Date: "2024-01-06", Price: decimal.RequireFromString("5900")},
			{Date: "2024-01-07", Price: decimal.RequireFromString("5800")},
		}),
		catalogProduct("PHONE002", "Galaxy S23", "Samsung", "Galaxy S23", "4200", nil),
	}}
	return NewHTTPHandler(repo, &stubScrapeLogRepo{}, nil), repo
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProductsKeywordFilter(t *testing.T) {
	handler, _ := newTestHandler()

	rec := get(t, handler, "/api/products?keyword=galaxy")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var payload []map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected 1 match, got %d", len(payload))
	}
	if string(payload[0]["product_code"]) != `"PHONE002"` {
		t.Fatalf("unexpected match: %s", payload[0]["product_code"])
	}
	if string(payload[0]["avg_price"]) != "4200.00" {
		t.Fatalf("price must be a bare two-decimal number, got %s", payload[0]["avg_price"])
	}
}

func TestProductsRejectsNonGet(t *testing.T) {
	handler, _ := newTestHandler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDrillDownLists(t *testing.T) {
	handler, _ := newTestHandler()

	rec := get(t, handler, "/api/types")
	var types []string
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil || len(types) != 2 {
		t.Fatalf("unexpected types response: %s (%v)", rec.Body, err)
	}

	// Brands and models degrade to empty lists when the filter is incomplete.
	rec = get(t, handler, "/api/brands")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty brand list without category, got %s", body)
	}
	rec = get(t, handler, "/api/models?category=手机")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty model list without brand, got %s", body)
	}

	rec = get(t, handler, "/api/brands?category=手机")
	var brands []string
	if err := json.Unmarshal(rec.Body.Bytes(), &brands); err != nil || len(brands) != 1 || brands[0] != "Apple" {
		t.Fatalf("unexpected brands response: %s (%v)", rec.Body, err)
	}
}

func TestPriceTrendReturnsStoredHistory(t *testing.T) {
	handler, _ := newTestHandler()

	rec := get(t, handler, "/api/price-trend?category=手机&brand=Apple&model=iPhone+14")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var payload struct {
		Product struct {
			ProductCode string `json:"product_code"`
		} `json:"product"`
		History []struct {
			Date  string      `json:"date"`
			Price json.Number `json:"price"`
		} `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if payload.Product.ProductCode != "PHONE001" {
		t.Fatalf("unexpected product %s", payload.Product.ProductCode)
	}
	if len(payload.History) != 2 || payload.History[1].Price.String() != "5800.00" {
		t.Fatalf("unexpected history %+v", payload.History)
	}
}

func TestPriceTrendSynthesizesRampWithoutHistory(t *testing.T) {
	handler, _ := newTestHandler()

	rec := get(t, handler, "/api/price-trend?category=手机&brand=Samsung&model=Galaxy+S23")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var payload struct {
		History domain.PriceHistory `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(payload.History) != domain.MaxHistoryDays {
		t.Fatalf("expected %d synthetic points, got %d", domain.MaxHistoryDays, len(payload.History))
	}
	if payload.History[0].Date != "2024-01-01" || payload.History[6].Date != "2024-01-07" {
		t.Fatalf("ramp must end on the scrape date, got %v", payload.History)
	}
	// 0.96 .. 1.02 of the latest price, latest day highest.
	if payload.History[0].Price.String() != "4032" && payload.History[0].Price.String() != "4032.00" {
		t.Fatalf("unexpected first ramp price %s", payload.History[0].Price)
	}
	if !payload.History[6].Price.GreaterThan(payload.History[0].Price) {
		t.Fatalf("ramp must ascend toward today, got %v", payload.History)
	}
}

func TestPriceTrendValidation(t *testing.T) {
	handler, _ := newTestHandler()

	if rec := get(t, handler, "/api/price-trend?category=手机&brand=Apple"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing model, got %d", rec.Code)
	}
	if rec := get(t, handler, "/api/price-trend?category=手机&brand=Nokia&model=3310"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown catalog entry, got %d", rec.Code)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	handler, _ := newTestHandler()
	if rec := get(t, handler, "/api/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
