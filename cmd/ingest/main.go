// recycleprice-ingest feeds scraped buy-back price observations into the
// product catalog.
//
// Usage:
//
//	recycleprice-ingest file batch.json [batch2.csv ...]
//	recycleprice-ingest kafka
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/qiwen-dev/recycleprice/internal/config"
	"github.com/qiwen-dev/recycleprice/internal/consumer"
	"github.com/qiwen-dev/recycleprice/internal/db"
	"github.com/qiwen-dev/recycleprice/internal/ingestion"
	"github.com/qiwen-dev/recycleprice/internal/repository"
)

func main() {
	app := &cli.App{
		Name:  "recycleprice-ingest",
		Usage: "Ingest scraped buy-back price observations into the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   ".",
				Usage:   "Directory containing config.yaml",
				EnvVars: []string{"RP_CONFIG_DIR"},
			},
			&cli.StringFlag{
				Name:    "migrations",
				Value:   "./migrations",
				Usage:   "Directory containing schema migrations",
				EnvVars: []string{"RP_MIGRATIONS_DIR"},
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 4,
				Usage: "Concurrent observations per batch",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Ingest one or more scraped batch files (json, csv, xlsx)",
				ArgsUsage: "FILE...",
				Action:    runFiles,
			},
			{
				Name:   "kafka",
				Usage:  "Consume observations from the configured Kafka topic until interrupted",
				Action: runKafka,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
}

func setup(ctx context.Context, c *cli.Context) (config.App, *db.Connection, *ingestion.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.App{}, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return config.App{}, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(c.String("migrations"), cfg.Database); err != nil {
		conn.Close()
		return config.App{}, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	service := ingestion.NewService(
		repository.NewProductRepository(conn.Pool),
		repository.NewScrapeLogRepository(conn.Pool),
	)
	return cfg, conn, service, nil
}

func runFiles(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one batch file is required")
	}

	ctx := c.Context
	_, conn, service, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer conn.Close()

	workers := c.Int("workers")
	for _, path := range c.Args().Slice() {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		observations, err := ingestion.ParseObservations(path, payload)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		run := service.NewRun(filepath.Base(path))
		summary := ingestion.IngestAll(ctx, run, observations, workers)
		log.Printf("[INGEST] %s: %d observations, %d inserted, %d updated, %d rejected, %d store failures",
			filepath.Base(path), summary.Total(), summary.Inserted, summary.Updated, summary.Rejected, summary.StoreFailures)
	}
	return nil
}

func runKafka(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, conn, service, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer conn.Close()

	kc := consumer.New(cfg.Kafka, service)
	defer kc.Close()

	log.Printf("[KAFKA] consuming %s from %s", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	summary, err := kc.Run(ctx)
	log.Printf("[KAFKA] run finished: %d observations, %d inserted, %d updated, %d rejected, %d store failures",
		summary.Total(), summary.Inserted, summary.Updated, summary.Rejected, summary.StoreFailures)
	return err
}
