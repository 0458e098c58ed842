package ingestion

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/qiwen-dev/recycleprice/internal/domain"
	"github.com/qiwen-dev/recycleprice/internal/metrics"
	"github.com/qiwen-dev/recycleprice/internal/repository"
)

// Outcome discriminates what happened to one observation.
type Outcome string

const (
	OutcomeInserted     Outcome = "inserted"
	OutcomeUpdated      Outcome = "updated"
	OutcomeRejected     Outcome = "rejected"
	OutcomeStoreFailure Outcome = "store_failure"
)

// RejectReason explains a rejected observation.
type RejectReason string

const (
	ReasonValidationFailed RejectReason = "validation_failed"
	ReasonDuplicateInRun   RejectReason = "duplicate_in_run"
)

// Result is the outcome of ingesting one observation. Reason is set for
// rejections, Err for store failures.
type Result struct {
	Outcome     Outcome      `json:"outcome"`
	ProductCode string       `json:"product_code,omitempty"`
	Reason      RejectReason `json:"reason,omitempty"`
	Err         error        `json:"-"`
}

// Service turns raw scraped observations into product upserts.
type Service struct {
	products   repository.ProductRepository
	scrapeLogs repository.ScrapeLogRepository
	metrics    *metrics.Registry
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, used by tests and backfills.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches ingestion counters.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Service) { s.metrics = reg }
}

// NewService creates the ingestion service. scrapeLogs may be nil; dropped
// observations are then only logged, not persisted.
func NewService(products repository.ProductRepository, scrapeLogs repository.ScrapeLogRepository, opts ...Option) *Service {
	s := &Service{
		products:   products,
		scrapeLogs: scrapeLogs,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scopes one ingestion batch: the duplicate-suppression set lives here
// and dies with the run, so repeated or concurrent runs never share state.
type Run struct {
	svc    *Service
	source string

	mu      sync.Mutex
	seen    map[string]struct{}
	locks   map[string]*sync.Mutex
	summary Summary
}

// Summary counts the outcomes of a run.
type Summary struct {
	Inserted      int `json:"inserted"`
	Updated       int `json:"updated"`
	Rejected      int `json:"rejected"`
	StoreFailures int `json:"store_failures"`
}

// Total returns the number of observations the run has handled.
func (s Summary) Total() int {
	return s.Inserted + s.Updated + s.Rejected + s.StoreFailures
}

// NewRun starts an ingestion run. source labels where the batch came from
// (file name, topic) for diagnostics.
func (s *Service) NewRun(source string) *Run {
	return &Run{
		svc:    s,
		source: source,
		seen:   make(map[string]struct{}),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Ingest processes one observation: normalize, validate, then insert or
// update the product under its code. Observations are independent; a failure
// here never affects other observations, and callers choose the fan-out.
// Safe for concurrent use within the run.
func (r *Run) Ingest(ctx context.Context, raw domain.RawObservation) Result {
	start := time.Now()
	result := r.ingest(ctx, raw)
	r.record(result, time.Since(start))
	return result
}

func (r *Run) ingest(ctx context.Context, raw domain.RawObservation) Result {
	product := Normalize(raw, r.svc.now)

	if field, ok := Validate(product); !ok {
		r.svc.logDropped(ctx, r.source, product.ProductCode, field, raw)
		return Result{Outcome: OutcomeRejected, ProductCode: product.ProductCode, Reason: ReasonValidationFailed}
	}

	code := product.ProductCode
	if r.alreadyProcessed(code) {
		return Result{Outcome: OutcomeRejected, ProductCode: code, Reason: ReasonDuplicateInRun}
	}

	// Mutations for one code are serialized so two concurrent observations
	// of a new product cannot both see "not found". Across runs the store's
	// unique constraint is the backstop.
	unlock := r.lockCode(code)
	defer unlock()

	if r.alreadyProcessed(code) {
		return Result{Outcome: OutcomeRejected, ProductCode: code, Reason: ReasonDuplicateInRun}
	}

	existing, found, err := r.svc.products.GetByCode(ctx, code)
	if err != nil {
		log.Printf("[INGEST] lookup failed for %s: %v", code, err)
		return Result{Outcome: OutcomeStoreFailure, ProductCode: code, Err: err}
	}

	if !found {
		// First observation of this product: the history starts with
		// exactly this data point.
		product.PriceHistory = domain.PriceHistory{{Date: product.ScrapeDate, Price: product.AvgPrice}}
		record := domain.NewProduct(product)
		if _, err := r.svc.products.Create(ctx, record); err != nil {
			log.Printf("[INGEST] insert failed for %s: %v", code, err)
			return Result{Outcome: OutcomeStoreFailure, ProductCode: code, Err: err}
		}
		r.markProcessed(code)
		log.Printf("[INGEST] inserted %s (%s)", code, record.Name)
		return Result{Outcome: OutcomeInserted, ProductCode: code}
	}

	updated := existing
	updated.Name = product.Name
	updated.Category = product.Category
	updated.Brand = product.Brand
	updated.Model = product.Model
	updated.AvgPrice = product.AvgPrice
	updated.ScrapeDate = product.ScrapeDate
	updated.PriceHistory = existing.PriceHistory.Merge(product.AvgPrice, product.ScrapeDate)

	if _, err := r.svc.products.Update(ctx, updated); err != nil {
		log.Printf("[INGEST] update failed for %s: %v", code, err)
		return Result{Outcome: OutcomeStoreFailure, ProductCode: code, Err: err}
	}
	r.markProcessed(code)
	log.Printf("[INGEST] updated %s (%s)", code, updated.Name)
	return Result{Outcome: OutcomeUpdated, ProductCode: code}
}

// Summary returns a snapshot of the run's outcome counts.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func (r *Run) alreadyProcessed(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[code]
	return ok
}

// markProcessed runs only after a confirmed store mutation. A failed code
// stays out of the set so a later observation in the same run retries it.
func (r *Run) markProcessed(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[code] = struct{}{}
}

func (r *Run) lockCode(code string) func() {
	r.mu.Lock()
	l, ok := r.locks[code]
	if !ok {
		l = &sync.Mutex{}
		r.locks[code] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (r *Run) record(result Result, elapsed time.Duration) {
	r.mu.Lock()
	switch result.Outcome {
	case OutcomeInserted:
		r.summary.Inserted++
	case OutcomeUpdated:
		r.summary.Updated++
	case OutcomeRejected:
		r.summary.Rejected++
	case OutcomeStoreFailure:
		r.summary.StoreFailures++
	}
	r.mu.Unlock()

	if m := r.svc.metrics; m != nil {
		switch result.Outcome {
		case OutcomeInserted:
			m.Inserted.Inc()
		case OutcomeUpdated:
			m.Updated.Inc()
		case OutcomeRejected:
			m.Rejected.Inc()
		case OutcomeStoreFailure:
			m.StoreFailures.Inc()
		}
		m.IngestLatency.Observe(elapsed.Seconds())
	}
}

func (s *Service) logDropped(ctx context.Context, source, code, field string, raw domain.RawObservation) {
	log.Printf("[INGEST] validation failed, missing %s (code=%q source=%s)", field, code, source)
	if s.scrapeLogs == nil {
		return
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		payload = nil
	}
	entry := domain.ScrapeLogEntry{
		ProductCode:  code,
		Source:       source,
		Field:        field,
		ErrorMessage: "required field missing or invalid: " + field,
		Payload:      payload,
	}
	if err := s.scrapeLogs.Record(ctx, entry); err != nil {
		log.Printf("[INGEST] failed to record scrape log: %v", err)
	}
}
