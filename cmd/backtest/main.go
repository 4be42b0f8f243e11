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

	"HackCap/internal/di"
	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	"HackCap/internal/usecase"
	"HackCap/pkg/config"
	"HackCap/pkg/util"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults when empty)")
	tickersFlag := flag.String("tickers", "", "comma-separated tickers (defaults to backtest.tickers)")
	fromFlag := flag.String("from", "", "first bar time: YYYY-MM-DD, RFC3339 or unix seconds")
	toFlag := flag.String("to", "", "last bar time (defaults to now)")
	tfFlag := flag.String("tf", "", "timeframe: 1m, 5m, 1h or 1d (defaults to source.timeframe)")
	capital := flag.Float64("capital", 0, "initial capital (defaults to backtest.initial_capital)")
	warm := flag.Bool("warm", true, "ingest the same history into the similarity store first")
	asJSON := flag.Bool("json", false, "print reports as JSON")
	enqueue := flag.Bool("enqueue", false, "push requests onto the job queue instead of running them")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	from, err := parseDate(*fromFlag)
	if err != nil {
		log.Fatalf("-from: %v", err)
	}
	to, err := parseDate(*toFlag)
	if err != nil {
		log.Fatalf("-to: %v", err)
	}
	tickers := cfg.Backtest.Tickers
	if *tickersFlag != "" {
		tickers = splitTickers(*tickersFlag)
	}
	if len(tickers) == 0 {
		log.Fatal("no tickers to backtest")
	}
	tf := cfg.Source.Timeframe
	if *tfFlag != "" {
		tf = *tfFlag
	}
	if *capital <= 0 {
		*capital = cfg.Backtest.InitialCapital
	}

	reqs := make([]models.BacktestRequest, len(tickers))
	for i, t := range tickers {
		reqs[i] = models.BacktestRequest{Ticker: t, From: from, To: to, Timeframe: tf, InitialCapital: *capital}
	}

	if *enqueue {
		if err := enqueueAll(cfg, reqs); err != nil {
			log.Fatal(err)
		}
		return
	}

	svc, cleanup, err := di.InitializeService(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *warm {
		warmTo := to
		if warmTo.IsZero() {
			warmTo = time.Now().UTC()
		}
		if _, err := svc.Warm(ctx, tickers, from, warmTo, domrepo.NormalizeTimeframe(tf)); err != nil {
			log.Fatalf("warm similarity store: %v", err)
		}
	}

	results, err := svc.BacktestMany(ctx, reqs)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	failed := 0
	reports := make([]models.BacktestReport, len(results))
	for i, res := range results {
		reports[i] = res.Report()
		if res.State != models.RunCompleted {
			failed++
		}
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Fatalf("encode reports: %v", err)
		}
	} else {
		for _, r := range reports {
			fmt.Printf("%-8s %s  %s\n", r.Ticker, r.RunID[:8], r.Summary)
		}
	}
	if failed > 0 {
		cleanup()
		os.Exit(1)
	}
}

func enqueueAll(cfg *config.Config, reqs []models.BacktestRequest) error {
	if !cfg.Queue.Enabled {
		return fmt.Errorf("-enqueue needs queue.enabled (or QUEUE_ENABLED=true)")
	}
	jobs, cleanup, err := di.InitializeQueue(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, req := range reqs {
		id, err := jobs.Enqueue(ctx, usecase.BacktestJobType, req)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", req.Ticker, err)
		}
		fmt.Printf("%-8s queued %s\n", req.Ticker, id)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	return t, nil
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
