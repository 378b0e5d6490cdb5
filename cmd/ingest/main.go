package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trade-emulator/internal/config"
	"trade-emulator/internal/domain"
	"trade-emulator/internal/ingestion"
	"trade-emulator/internal/marketdata/kis"
	"trade-emulator/internal/observability"
	"trade-emulator/internal/storage"
	chstore "trade-emulator/internal/storage/clickhouse"
	"trade-emulator/internal/storage/memory"
	"trade-emulator/internal/storage/migrations"
)

func main() {
	symbols := flag.String("symbols", "", "Comma-separated symbols to backfill (required)")
	fromDate := flag.String("from", "", "First day YYYYMMDD (required)")
	toDate := flag.String("to", "", "Last day YYYYMMDD (default: today)")
	windowDays := flag.Int("window-days", ingestion.DefaultWindowDays, "Days per market data request")
	adjusted := flag.Bool("adjusted", true, "Request split-adjusted prices")
	useMemory := flag.Bool("use-memory", false, "Store into memory (dry run) instead of ClickHouse")

	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	symbolList := parseSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}
	if *fromDate == "" {
		logger.Fatal("--from is required")
	}
	from, err := domain.ParseDate(*fromDate)
	if err != nil {
		logger.Fatalf("--from: %v", err)
	}
	to := domain.Day(time.Now())
	if *toDate != "" {
		if to, err = domain.ParseDate(*toDate); err != nil {
			logger.Fatalf("--to: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.RequireKIS(); err != nil {
		logger.Fatal(err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	client, err := kis.NewHTTPClient(cfg.KIS.AppKey, cfg.KIS.AppSecret,
		kis.WithBaseURL(cfg.KIS.BaseURL),
		kis.WithRateLimit(cfg.KIS.RateLimit),
		kis.WithAdjustedPrices(*adjusted),
	)
	if err != nil {
		logger.Fatalf("create KIS client: %v", err)
	}

	var store storage.DailyPriceStore = memory.NewDailyPriceStore()
	if !*useMemory {
		if cfg.ClickhouseDSN == "" {
			logger.Fatal("EMULATOR_CLICKHOUSE_DSN is required when not using --use-memory")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse: %v", err)
		}
		defer conn.Close()
		store = chstore.NewDailyPriceStore(conn)
	}

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Source:     client,
		Store:      store,
		WindowDays: *windowDays,
		Logger:     logger,
	})

	var failed int
	for _, symbol := range symbolList {
		if _, err := backfiller.BackfillRange(ctx, symbol, from, to); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Println("Backfill cancelled")
				os.Exit(1)
			}
			logger.Printf("backfill %s failed: %v", symbol, err)
			failed++
		}
	}
	if failed > 0 {
		logger.Fatalf("%d of %d symbols failed", failed, len(symbolList))
	}
}

// parseSymbols splits a comma-separated list, dropping blanks and duplicates.
func parseSymbols(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
