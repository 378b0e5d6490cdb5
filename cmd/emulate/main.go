package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trade-emulator/internal/config"
	"trade-emulator/internal/domain"
	"trade-emulator/internal/emulation"
	"trade-emulator/internal/idhash"
	"trade-emulator/internal/marketdata"
	"trade-emulator/internal/marketdata/kis"
	"trade-emulator/internal/observability"
	"trade-emulator/internal/pricecache"
	"trade-emulator/internal/reporting"
	chstore "trade-emulator/internal/storage/clickhouse"
	"trade-emulator/internal/storage/migrations"
	"trade-emulator/internal/tick"
)

func main() {
	// Input
	txPath := flag.String("transactions", "", "Transaction CSV file: date,symbol,amount,sell_price (required)")
	defaultSymbol := flag.String("symbol", "", "Default symbol for price lookups")
	source := flag.String("source", "kis", "Price source: kis or store (backfilled ClickHouse rows)")

	// Run parameters
	budget := flag.Int64("budget", 0, "Initial cash budget")
	startDate := flag.String("start", "", "Initial state date YYYYMMDD (default: earliest transaction)")
	finalDate := flag.String("final", "", "Last walked day YYYYMMDD (default: latest transaction)")
	onlyIfTx := flag.Bool("only-if-tx", false, "Emit states only on transaction days")
	buyCommission := flag.Float64("buy-commission", 0, "Commission rate on buys, e.g. 0.00015")
	sellCommission := flag.Float64("sell-commission", 0, "Commission rate on sells, e.g. 0.00245")
	panicRate := flag.Float64("panic-rate", 0, "Drawdown rate in (0,1) that triggers liquidation, 0 disables")
	checkPriceUnit := flag.Bool("check-price-unit", false, "Adjust explicit prices to the exchange tick table")
	tickMode := flag.String("tick-mode", string(tick.ModeRound), "Tick adjustment: round, floor or ceil")
	tickPolicy := flag.String("tick-policy", "warn", "Off-tick price handling: silent, warn or error")

	// Storage
	persist := flag.Bool("persist", false, "Persist the run, its states and drawdown samples")
	useMemory := flag.Bool("use-memory", false, "Persist into in-memory stores")

	// Output
	outputJSON := flag.Bool("json", false, "Output the summary as JSON")
	statesCSV := flag.String("states-csv", "", "Write every emitted state to this CSV file")
	drawdownCSV := flag.String("drawdown-csv", "", "Write drawdown samples to this CSV file")

	flag.Parse()

	logger := log.New(os.Stderr, "[emulate] ", log.LstdFlags)

	if *txPath == "" {
		logger.Fatal("--transactions is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	opts, err := buildRunOptions(*budget, *startDate, *finalDate, *onlyIfTx,
		*buyCommission, *sellCommission, *panicRate, *checkPriceUnit, *tickMode, *tickPolicy, logger)
	if err != nil {
		logger.Fatal(err)
	}

	f, err := os.Open(*txPath)
	if err != nil {
		logger.Fatalf("open transactions: %v", err)
	}
	txs, err := emulation.LoadTransactionsCSV(f)
	f.Close()
	if err != nil {
		logger.Fatalf("load transactions: %v", err)
	}
	logger.Printf("Loaded %d transactions from %s", len(txs), *txPath)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	var src marketdata.Source
	switch strings.ToLower(*source) {
	case "kis":
		if err := cfg.RequireKIS(); err != nil {
			logger.Fatal(err)
		}
		client, err := kis.NewHTTPClient(cfg.KIS.AppKey, cfg.KIS.AppSecret,
			kis.WithBaseURL(cfg.KIS.BaseURL),
			kis.WithRateLimit(cfg.KIS.RateLimit),
		)
		if err != nil {
			logger.Fatalf("create KIS client: %v", err)
		}
		src = client
	case "store":
		if cfg.ClickhouseDSN == "" {
			logger.Fatal("EMULATOR_CLICKHOUSE_DSN is required for --source=store")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse: %v", err)
		}
		defer conn.Close()
		src = marketdata.NewStoreSource(chstore.NewDailyPriceStore(conn))
	default:
		logger.Fatalf("Invalid source: %s. Must be kis or store", *source)
	}

	cache := pricecache.New(pricecache.Options{
		Source:        src,
		DefaultSymbol: *defaultSymbol,
		Logger:        logger,
	})
	engine := emulation.NewEngine(emulation.EngineOptions{
		Prices: cache,
		Logger: logger,
	})

	started := time.Now()
	res, err := engine.Run(ctx, txs, opts)
	if err != nil {
		logger.Fatalf("emulation failed: %v", err)
	}
	stats := cache.Stats()
	logger.Printf("Emulated %d states in %s (bucket fetches=%d hits=%d fallbacks=%d)",
		len(res.States), time.Since(started).Round(time.Millisecond), stats.Fetches, stats.Hits, stats.Fallbacks)

	runID := idhash.NewRunID()
	if *persist {
		stores, closeStores, err := openStores(ctx, cfg, *useMemory)
		if err != nil {
			logger.Fatalf("open stores: %v", err)
		}
		defer closeStores()

		run := newRunRecord(runID, txs, opts, res)
		if err := stores.save(ctx, run, res); err != nil {
			logger.Fatalf("persist run: %v", err)
		}
		logger.Printf("Persisted run %s (%d states, %d drawdown samples)", runID, len(res.States), len(res.Drawdowns))
	}

	if *statesCSV != "" {
		if err := os.WriteFile(*statesCSV, []byte(reporting.RenderStatesCSV(res.States)), 0o644); err != nil {
			logger.Fatalf("write states csv: %v", err)
		}
	}
	if *drawdownCSV != "" {
		if err := os.WriteFile(*drawdownCSV, []byte(reporting.RenderDrawdownCSV(res.Drawdowns)), 0o644); err != nil {
			logger.Fatalf("write drawdown csv: %v", err)
		}
	}

	summary := reporting.Summarize(runID, res, time.Now().UTC())
	if *outputJSON {
		output, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderMarkdown(summary))
	}
}

// buildRunOptions creates RunOptions from CLI flags.
func buildRunOptions(
	budget int64,
	startDate, finalDate string,
	onlyIfTx bool,
	buyCommission, sellCommission, panicRate float64,
	checkPriceUnit bool,
	tickMode, tickPolicy string,
	logger *log.Logger,
) (emulation.RunOptions, error) {
	opts := emulation.RunOptions{
		OnlyIfTransactionExists: onlyIfTx,
		PanicSellRate:           panicRate,
	}

	initial := domain.InitialState()
	initial.Budget = budget
	initial.TotalAppraisement = budget
	if startDate != "" {
		d, err := domain.ParseDate(startDate)
		if err != nil {
			return opts, fmt.Errorf("--start: %w", err)
		}
		initial.Date = d
	}
	opts.InitialState = initial

	if finalDate != "" {
		d, err := domain.ParseDate(finalDate)
		if err != nil {
			return opts, fmt.Errorf("--final: %w", err)
		}
		opts.FinalDate = d
	}

	if buyCommission < 0 || sellCommission < 0 {
		return opts, fmt.Errorf("commission rates must not be negative")
	}
	if buyCommission != 0 || sellCommission != 0 {
		opts.Commission = &domain.Commission{BuyRate: buyCommission, SellRate: sellCommission}
	}

	mode := tick.Mode(strings.ToLower(tickMode))
	switch mode {
	case tick.ModeRound, tick.ModeFloor, tick.ModeCeil:
	default:
		return opts, fmt.Errorf("invalid tick mode: %s. Must be round, floor or ceil", tickMode)
	}

	var policy tick.Policy
	switch strings.ToLower(tickPolicy) {
	case "silent":
		policy = tick.PolicySilent
	case "warn":
		policy = tick.PolicyWarn
	case "error":
		policy = tick.PolicyError
	default:
		return opts, fmt.Errorf("invalid tick policy: %s. Must be silent, warn or error", tickPolicy)
	}

	opts.Resolve = emulation.ResolveOptions{
		CheckPriceUnit: checkPriceUnit,
		Tick:           &tick.Options{Mode: mode, Policy: policy, Logger: logger},
	}
	return opts, nil
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
