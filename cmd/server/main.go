package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/qiwen-dev/recycleprice/internal/api"
	"github.com/qiwen-dev/recycleprice/internal/config"
	"github.com/qiwen-dev/recycleprice/internal/db"
	"github.com/qiwen-dev/recycleprice/internal/export"
	"github.com/qiwen-dev/recycleprice/internal/ingestion"
	"github.com/qiwen-dev/recycleprice/internal/metrics"
	"github.com/qiwen-dev/recycleprice/internal/middleware"
	"github.com/qiwen-dev/recycleprice/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations("./migrations", cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	productRepo := repository.NewProductRepository(conn.Pool)
	scrapeLogRepo := repository.NewScrapeLogRepository(conn.Pool)

	registry := metrics.NewRegistry()
	ingestService := ingestion.NewService(productRepo, scrapeLogRepo, ingestion.WithMetrics(registry))
	exporter := export.NewService(productRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	apiHandler := middleware.LoggingMiddleware(api.NewHTTPHandler(productRepo, scrapeLogRepo, exporter))
	ingestHandler := middleware.LoggingMiddleware(ingestion.NewHTTPHandler(ingestService))

	mux := http.NewServeMux()
	mux.Handle("/api/ingest", corsHandler.Handler(ingestHandler))
	mux.Handle("/api/", corsHandler.Handler(apiHandler))
	mux.Handle("/metrics", registry.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
