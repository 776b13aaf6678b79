package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"position-lab/internal/observability"
	"position-lab/internal/pipeline"
	"position-lab/internal/storage"
	chstore "position-lab/internal/storage/clickhouse"
	"position-lab/internal/storage/memory"
	"position-lab/internal/storage/migrations"
	pgstore "position-lab/internal/storage/postgres"
)

func main() {
	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (positions)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (price bars)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply migrations before running")

	// Run parameters
	asOf := flag.String("as-of", "", "Refresh anchor time, RFC3339 (default: now UTC)")

	// Output
	outputJSON := flag.Bool("json", false, "Output summary as JSON")
	metricsAddr := flag.String("metrics-addr", "", "Address to expose Prometheus metrics on (optional)")

	flag.Parse()

	logger := log.New(os.Stderr, "[refresh] ", log.LstdFlags)

	now := time.Now().UTC()
	if *asOf != "" {
		parsed, err := time.Parse(time.RFC3339, *asOf)
		if err != nil {
			logger.Fatalf("invalid --as-of %q: %v", *asOf, err)
		}
		now = parsed.UTC()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	var positionStore storage.PositionStore = memory.NewPositionStore()
	var windowStore storage.PriceWindowStore = memory.NewPriceWindowStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (positions)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (price bars)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("postgres migrations: %v", err)
			}
		}
		positionStore = pgstore.NewPositionStore(pool)

		var conn *chstore.Conn
		if *migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, *clickhouseDSN)
		}
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		windowStore = chstore.NewPriceWindowStore(conn)
	}

	var obs *observability.Metrics
	if *metricsAddr != "" {
		obs = observability.NewMetrics("")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	runner := pipeline.NewRefreshRunner(pipeline.RefreshRunnerOptions{
		PositionStore:    positionStore,
		PriceWindowStore: windowStore,
		Observability:    obs,
		Logger:           logger,
	})

	logger.Printf("refreshing positions as of %s", now.Format(time.RFC3339))

	summary, err := runner.Run(ctx, now)
	if err != nil {
		logger.Fatalf("refresh failed: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Fatalf("encode summary: %v", err)
		}
		return
	}

	logger.Printf("done: total=%d refreshed=%d changed=%d failed=%d",
		summary.Total, summary.Refreshed, summary.Changed, summary.Failed)
	for id, reason := range summary.Failures {
		logger.Printf("  failed %s: %s", id, reason)
	}
}
