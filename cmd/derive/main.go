package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"position-lab/internal/pipeline"
	"position-lab/internal/statmodel"
	"position-lab/internal/storage"
	"position-lab/internal/storage/memory"
	"position-lab/internal/storage/migrations"
	pgstore "position-lab/internal/storage/postgres"
)

func main() {
	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (positions and parameter sets)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply migrations before running")

	// Derivation parameters
	confidence := flag.Float64("confidence", 0.80, "Confidence level in (0, 1]")
	modelConfig := flag.String("model-config", "", "Path to statistical model YAML overrides (optional)")

	// Output
	outputJSON := flag.Bool("json", false, "Output derived parameter sets as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[derive] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	cfg := statmodel.Default()
	if *modelConfig != "" {
		loaded, err := statmodel.Load(*modelConfig)
		if err != nil {
			logger.Fatalf("load model config: %v", err)
		}
		cfg = loaded
	}

	var positionStore storage.PositionStore = memory.NewPositionStore()
	var setStore storage.ParameterSetStore = memory.NewParameterSetStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory")
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
		setStore = pgstore.NewParameterSetStore(pool)
	}

	runner := pipeline.NewDeriveRunner(pipeline.DeriveRunnerOptions{
		PositionStore:     positionStore,
		ParameterSetStore: setStore,
		Config:            cfg,
		Logger:            logger,
	})

	logger.Printf("deriving parameters at confidence %.2f", *confidence)

	summary, err := runner.Run(ctx, *confidence)
	if err != nil {
		logger.Fatalf("derivation failed: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary.Sets); err != nil {
			logger.Fatalf("encode parameter sets: %v", err)
		}
	}

	logger.Printf("done: strategies=%d derived=%d failed=%d",
		summary.Strategies, summary.Derived, summary.Failed)
	for id, reason := range summary.Failures {
		logger.Printf("  failed %s: %s", id, reason)
	}
}
