package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qiwen-dev/recycleprice/internal/domain"
)

type scrapeLogRepository struct {
	pool *pgxpool.Pool
}

// NewScrapeLogRepository wires a repository backed by pgxpool.
func NewScrapeLogRepository(pool *pgxpool.Pool) ScrapeLogRepository {
	return &scrapeLogRepository{pool: pool}
}

func (r *scrapeLogRepository) Record(ctx context.Context, entry domain.ScrapeLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("scrape log repository not initialized")
	}

	var payload any
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO scrape_logs (product_code, source, field, error_message, payload)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ProductCode,
		entry.Source,
		entry.Field,
		entry.ErrorMessage,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to record scrape log: %w", err)
	}
	return nil
}

func (r *scrapeLogRepository) List(ctx context.Context, limit, offset int) ([]domain.ScrapeLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("scrape log repository not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, product_code, source, field, error_message, COALESCE(payload, 'null'::jsonb), created_at
		 FROM scrape_logs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.ScrapeLogEntry{}
	for rows.Next() {
		var entry domain.ScrapeLogEntry
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.ProductCode,
			&entry.Source,
			&entry.Field,
			&entry.ErrorMessage,
			&entry.Payload,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan scrape log: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scrape logs: %w", err)
	}
	return entries, nil
}
