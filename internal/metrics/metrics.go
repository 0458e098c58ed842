package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the ingestion counters and their prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Inserted      prometheus.Counter
	Updated       prometheus.Counter
	Rejected      prometheus.Counter
	StoreFailures prometheus.Counter
	IngestLatency prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	inserted := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_products_inserted_total"})
	updated := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_products_updated_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_observations_rejected_total"})
	storeFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_store_failures_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_observation_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(inserted, updated, rejected, storeFailures, latency)
	return &Registry{
		reg:           r,
		Inserted:      inserted,
		Updated:       updated,
		Rejected:      rejected,
		StoreFailures: storeFailures,
		IngestLatency: latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
