package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
	"strategy-lab/internal/strategy"
)

func main() {
	// Parse flags
	strategyType := flag.String("strategy", "", "Strategy: SMA_CROSS, MOMENTUM (required)")
	symbol := flag.String("symbol", "", "Symbol to backtest, e.g. BTC/USDT (required)")
	startStr := flag.String("start", "", "Range start, RFC3339 (required)")
	endStr := flag.String("end", "", "Range end, RFC3339 (required)")
	intervalStr := flag.String("interval", "1h", "Bar interval, e.g. 15m, 1h, 1d")
	initialCapital := flag.Float64("capital", 10_000, "Initial capital")

	// Strategy parameters
	fastPeriod := flag.Int("fast-period", strategy.DefaultFastPeriod, "Fast SMA period for SMA_CROSS")
	slowPeriod := flag.Int("slow-period", strategy.DefaultSlowPeriod, "Slow SMA period for SMA_CROSS")
	lookback := flag.Int("lookback", strategy.DefaultLookbackPeriod, "Lookback period for MOMENTUM")
	threshold := flag.Float64("threshold", strategy.DefaultThreshold, "Return threshold for MOMENTUM")

	// Risk and friction
	stopLossPct := flag.Float64("stop-loss-pct", 0.05, "Stop distance from entry; 0 disables")
	takeProfitPct := flag.Float64("take-profit-pct", 0.10, "Target distance from entry; 0 disables")
	feeRate := flag.Float64("fee-rate", 0.001, "Commission rate per fill")
	slippageRate := flag.Float64("slippage-rate", 0.0005, "Slippage rate per fill")
	seed := flag.Int64("seed", 1, "Friction randomness seed")

	// Analysis
	robustness := flag.Bool("robustness", false, "Run the parameter robustness sweep")
	variation := flag.Float64("variation", 0, "Robustness perturbation fraction; 0 uses the default")

	// Data
	synthetic := flag.Bool("synthetic", false, "Generate a synthetic series instead of reading storage")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	outputMarkdown := flag.Bool("markdown", false, "Output as Markdown")
	persistResult := flag.Bool("persist", false, "Persist the run record to storage")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *strategyType == "" {
		logger.Fatal("--strategy is required")
	}
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}

	*strategyType = strings.ToUpper(*strategyType)
	if *strategyType != domain.StrategyTypeSMACross && *strategyType != domain.StrategyTypeMomentum {
		logger.Fatalf("Invalid strategy: %s. Must be SMA_CROSS or MOMENTUM", *strategyType)
	}

	interval, err := time.ParseDuration(*intervalStr)
	if err != nil {
		logger.Fatalf("Invalid interval %q: %v", *intervalStr, err)
	}

	start, end := parseRange(logger, *startStr, *endStr, *synthetic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var barStore storage.BarStore = memory.NewBarStore()
	var runStore storage.RunStore = memory.NewRunStore()

	if !*useMemory && !*synthetic {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory or --synthetic (bars)")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	}
	if !*useMemory && *persistResult {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist when not using --use-memory")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run postgres migrations: %v", err)
		}
		runStore = pgstore.NewRunStore(pool)
	}

	// Select the bar source
	var source marketdata.BarSource = marketdata.NewStoreSource(barStore)
	if *synthetic {
		synthCfg := marketdata.DefaultSyntheticConfig()
		synthCfg.Seed = *seed
		source = marketdata.NewSyntheticSource(synthCfg)
	}

	var persistStore storage.RunStore
	if *persistResult {
		persistStore = runStore
	}

	friction := domain.DefaultFriction()
	friction.FeeRate = *feeRate
	friction.SlippageRate = *slippageRate
	friction.Seed = *seed

	limits := domain.DefaultRiskLimits()
	limits.StopLossPct = *stopLossPct
	limits.TakeProfitPct = *takeProfitPct

	runner := backtest.NewRunner(backtest.RunnerOptions{
		Registry: strategy.DefaultRegistry(),
		Source:   source,
		Store:    persistStore,
		Metrics:  observability.NewMetrics(""),
		Logger:   logger,
	})

	logger.Printf("Running backtest: strategy=%s symbol=%s interval=%s range=[%s, %s]",
		*strategyType, *symbol, interval, start.Format(time.RFC3339), end.Format(time.RFC3339))

	report, err := runner.Run(ctx, backtest.Request{
		Strategy:       buildStrategyConfig(*strategyType, *fastPeriod, *slowPeriod, *lookback, *threshold),
		Symbol:         *symbol,
		Start:          start,
		End:            end,
		Interval:       interval,
		InitialCapital: *initialCapital,
		Limits:         limits,
		Friction:       friction,
		Robustness: backtest.RobustnessRequest{
			Enabled:   *robustness,
			Variation: *variation,
		},
	})
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	switch {
	case *outputJSON:
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	case *outputMarkdown:
		fmt.Println(reporting.RenderMarkdown(report))
	default:
		printSummary(report)
	}
}

// parseRange parses the start/end flags. A synthetic run defaults to the 90
// days ending now when the range is omitted.
func parseRange(logger *log.Logger, startStr, endStr string, synthetic bool) (time.Time, time.Time) {
	if startStr == "" && endStr == "" && synthetic {
		end := time.Now().UTC().Truncate(time.Hour)
		return end.AddDate(0, 0, -90), end
	}
	if startStr == "" {
		logger.Fatal("--start is required")
	}
	if endStr == "" {
		logger.Fatal("--end is required")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		logger.Fatalf("Invalid --start: %v", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		logger.Fatalf("Invalid --end: %v", err)
	}
	if !end.After(start) {
		logger.Fatal("--end must be after --start")
	}
	return start, end
}

// buildStrategyConfig creates a StrategyConfig from CLI flags.
func buildStrategyConfig(strategyType string, fast, slow, lookback int, threshold float64) domain.StrategyConfig {
	cfg := domain.StrategyConfig{StrategyType: strategyType}

	switch strategyType {
	case domain.StrategyTypeSMACross:
		cfg.FastPeriod = &fast
		cfg.SlowPeriod = &slow
	case domain.StrategyTypeMomentum:
		cfg.LookbackPeriod = &lookback
		cfg.Threshold = &threshold
	}

	return cfg
}

// printSummary outputs a human-readable report summary.
func printSummary(r *reporting.Report) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:           %s\n", r.RunID)
	fmt.Printf("Strategy:         %s\n", r.StrategyID)
	fmt.Printf("Symbol:           %s\n", r.Symbol)
	fmt.Printf("Data Source:      %s\n", r.DataSource)
	fmt.Printf("Status:           %s\n", r.Status)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Initial Capital: %.2f\n", r.InitialCapital)
	fmt.Printf("  Final Equity:    %.2f\n", r.FinalEquity)
	fmt.Printf("  Trades:          %d\n", r.TotalTrades)
	fmt.Printf("  Sharpe:          %.4f\n", r.Sharpe)
	fmt.Printf("  Sortino:         %.4f\n", r.Sortino)
	fmt.Printf("  Max Drawdown:    %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  CAGR:            %.2f%%\n", r.CAGR*100)
	fmt.Println()

	fmt.Println("Viability:")
	fmt.Printf("  Score:           %.1f\n", r.ViabilityScore)
	fmt.Printf("  Verdict:         %s\n", r.Viability)
	for _, w := range r.Warnings {
		fmt.Printf("  Warning:         %s\n", w)
	}
	for _, rec := range r.Recommendations {
		fmt.Printf("  Recommendation:  %s\n", rec)
	}
}
