package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/qiwen-dev/recycleprice/internal/config"
	"github.com/qiwen-dev/recycleprice/internal/domain"
	"github.com/qiwen-dev/recycleprice/internal/ingestion"
)

// Consumer drains raw observations from a Kafka topic into the ingestion
// engine. One consumer corresponds to one ingestion run; restarting the
// consumer starts a fresh run with a fresh dedup set.
type Consumer struct {
	reader  *kafka.Reader
	service *ingestion.Service
	topic   string
}

// New creates a consumer for the configured observation topic.
// Brokers may be a comma-separated host:port list.
func New(cfg config.Kafka, service *ingestion.Service) *Consumer {
	var brokers []string
	for _, addr := range strings.Split(cfg.Brokers, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			brokers = append(brokers, addr)
		}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{reader: reader, service: service, topic: cfg.Topic}
}

// Run consumes until ctx is canceled, then returns the run summary.
// Malformed messages are logged and skipped; one bad observation never
// stops the stream.
func (c *Consumer) Run(ctx context.Context) (ingestion.Summary, error) {
	run := c.service.NewRun("kafka:" + c.topic)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return run.Summary(), nil
			}
			return run.Summary(), fmt.Errorf("failed to read message: %w", err)
		}

		var raw domain.RawObservation
		if err := json.Unmarshal(msg.Value, &raw); err != nil {
			log.Printf("[KAFKA] skipping malformed observation at offset %d: %v", msg.Offset, err)
			continue
		}

		result := run.Ingest(ctx, raw)
		if result.Outcome == ingestion.OutcomeStoreFailure {
			log.Printf("[KAFKA] store failure for %s at offset %d: %v", result.ProductCode, msg.Offset, result.Err)
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
