// Package main runs the paper-trading daemon: one runner per configured
// strategy, fed by a live bar stream, with events logged and exported
// through Prometheus.
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

	"strategy-lab/internal/config"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/paper"
	"strategy-lab/internal/strategy"
)

func main() {
	configPath := flag.String("config", "papertrade.yaml", "Path to the YAML configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "[papertrade] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if len(cfg.Runners) == 0 {
		logger.Fatal("config defines no runners")
	}
	if cfg.Data.WebsocketURL == "" {
		logger.Fatal("data.websocket_url is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	obs := observability.NewMetrics("")
	bus := paper.NewBus(logger)
	reg := paper.NewRegistry()
	source := marketdata.NewWSSource(cfg.Data.WebsocketURL, logger)
	strategies := strategy.DefaultRegistry()

	limits := cfg.Risk.RiskLimits()
	friction := cfg.Friction.FrictionConfig()

	for _, entry := range cfg.Runners {
		runner, err := paper.NewRunner(strategies, source, bus, obs, paper.RunnerConfig{
			Strategy:       entry.StrategyConfig(),
			Symbol:         entry.Symbol,
			Interval:       entry.Interval.Std(),
			InitialCapital: entry.InitialCapital,
			Limits:         limits,
			Friction:       friction,
			FlattenOnStop:  entry.FlattenOnStop,
		}, logger)
		if err != nil {
			logger.Fatalf("build runner for %s %s: %v", entry.StrategyType, entry.Symbol, err)
		}
		if err := reg.Add(runner); err != nil {
			logger.Fatalf("register runner %s: %v", runner.StrategyID(), err)
		}
	}

	// Log every event; external observers subscribe the same way.
	go logEvents(ctx, bus, logger)

	// Runners get their own root context so the signal handler does not
	// race the cooperative Stop below into an already-STOPPED runner.
	for _, snap := range reg.List() {
		runner, err := reg.Get(snap.StrategyID)
		if err != nil {
			logger.Fatalf("lookup runner %s: %v", snap.StrategyID, err)
		}
		if err := runner.Start(context.Background()); err != nil {
			logger.Fatalf("start runner %s: %v", snap.StrategyID, err)
		}
		logger.Printf("Started runner %s on %s", snap.StrategyID, snap.Symbol)
	}

	go startHTTPServer(cfg.Server.MetricsAddr, reg, logger)

	<-ctx.Done()

	// Stop runners cooperatively; each finishes its current bar first.
	for _, snap := range reg.List() {
		runner, err := reg.Get(snap.StrategyID)
		if err != nil {
			continue
		}
		if err := runner.Stop(); err != nil {
			logger.Printf("stop runner %s: %v", snap.StrategyID, err)
			continue
		}
		final := runner.Status()
		logger.Printf("Stopped runner %s: equity=%.2f trades=%d", final.StrategyID, final.Equity, final.TradeCount)
	}
}

// logEvents consumes the bus and writes events to the log.
func logEvents(ctx context.Context, bus *paper.Bus, logger *log.Logger) {
	events, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case paper.EventTrade:
				logger.Printf("[%s] trade %s: %s %.4f pnl=%.2f",
					ev.StrategyID, ev.Trade.ID, ev.Trade.Side, ev.Trade.Size, ev.Trade.RealizedPnL)
			case paper.EventSignal:
				logger.Printf("[%s] signal %s: %s", ev.StrategyID, ev.Signal.Action, ev.Signal.Reason)
			case paper.EventRiskRejection:
				logger.Printf("[%s] risk rejection: %s", ev.StrategyID, ev.Message)
			case paper.EventWarning:
				logger.Printf("[%s] warning: %s", ev.StrategyID, ev.Message)
			}
		}
	}
}

// startHTTPServer serves health, metrics, and runner status.
func startHTTPServer(addr string, reg *paper.Registry, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		type runnerStatus struct {
			StrategyID string    `json:"strategy_id"`
			Symbol     string    `json:"symbol"`
			State      string    `json:"state"`
			Equity     float64   `json:"equity"`
			TradeCount int       `json:"trade_count"`
			LastBarAt  time.Time `json:"last_bar_at"`
			Liquidated bool      `json:"liquidated"`
		}

		snaps := reg.List()
		out := make([]runnerStatus, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, runnerStatus{
				StrategyID: s.StrategyID,
				Symbol:     s.Symbol,
				State:      string(s.State),
				Equity:     s.Equity,
				TradeCount: s.TradeCount,
				LastBarAt:  s.LastBarAt,
				Liquidated: s.Liquidated,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.Printf("encode status: %v", err)
		}
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}
