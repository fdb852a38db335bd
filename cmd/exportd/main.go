package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"exportd/internal/bench"
	"exportd/internal/config"
	"exportd/internal/job"
	"exportd/internal/mapper"
	"exportd/internal/metrics"
	"exportd/internal/metrics/promexp"
	"exportd/internal/rowsource"
	"exportd/internal/webapi"
)

// main is the entry point for the export service. It loads the config,
// optionally initializes a metrics backend, builds the connection pool and
// serves the HTTP API.
func main() {
	var (
		cfgPath           string
		listenFlg         string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/exportd.json", "config JSON path")
	flag.StringVar(&listenFlg, "listen", "", "listen address (overrides config)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (prometheus, none; overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if listenFlg != "" {
		cfg.Listen.Addr = listenFlg
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → config.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = cfg.Metrics.Backend
	}
	var metricsHandler http.Handler
	switch backendName {
	case "prometheus":
		b := promexp.NewBackend()
		metrics.SetBackend(b)
		metricsHandler = b.Handler()
		if *verbose {
			log.Printf("metrics: backend=%v", backendName)
		}
	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		fatalf("parse dsn: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.DB.PoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		fatalf("create pool: %v", err)
	}
	defer pool.Close()

	src := &rowsource.PoolSource{
		Pool:     pool,
		Table:    cfg.Dataset.Table,
		OrderKey: cfg.Dataset.OrderKey,
	}
	open := func(ctx context.Context, cols []mapper.ColumnMapping, batchSize int) (job.RowSource, error) {
		return src.Open(ctx, cols, batchSize)
	}

	jobCfg := job.Config{
		TextBatchSize:   cfg.Export.TextBatchSize,
		BinaryBatchSize: cfg.Export.BinaryBatchSize,
		Timeout:         time.Duration(cfg.Export.TimeoutSeconds) * time.Second,
	}
	coord := job.NewCoordinator(open, jobCfg)
	harness := bench.NewHarness(open, mapper.Normalize(cfg.Bench.Columns),
		bench.PoolRowCount(pool, cfg.Dataset.Table), jobCfg)

	srv := webapi.NewServer(webapi.Config{Addr: cfg.Listen.Addr}, coord, harness, metricsHandler)

	log.Printf("exportd: listening on %s (dataset %s, pool %d)",
		cfg.Listen.Addr, cfg.Dataset.Table, cfg.DB.PoolSize)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
