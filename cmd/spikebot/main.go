package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alejandrodnm/spikebot/config"
	"github.com/alejandrodnm/spikebot/internal/adapters/metrics"
	"github.com/alejandrodnm/spikebot/internal/adapters/notify"
	"github.com/alejandrodnm/spikebot/internal/adapters/polymarket"
	"github.com/alejandrodnm/spikebot/internal/adapters/storage"
	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/history"
	"github.com/alejandrodnm/spikebot/internal/ledger"
	"github.com/alejandrodnm/spikebot/internal/scanner"
)

// recentClosedInReport limita la tabla de cerrados del reporte.
const recentClosedInReport = 10

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scan cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the signal table every cycle (default: compact 1-line)")
	report := flag.Bool("report", false, "print the paper ledger + journal report and exit")
	resolve := flag.Bool("resolve", false, "close all open positions at their last seen price and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		return 1
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if !cfg.PaperTrading {
		slog.Error("live trading is not supported: set paper_trading: true")
		return 1
	}

	slog.Info("spikebot starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"data_dir", cfg.DataDir,
		"once", *once,
	)

	hist, err := history.New(storage.NewHistoryFile(cfg.HistoryPath()), cfg.Scanner.HistoryWindow)
	if err != nil {
		logStateError("failed to load volume history", err, cfg.HistoryPath())
		return 1
	}

	book, err := ledger.New(storage.NewLedgerFile(cfg.LedgerPath()), cfg.LedgerLimits())
	if err != nil {
		logStateError("failed to load paper ledger", err, cfg.LedgerPath())
		return 1
	}

	journal, err := storage.NewSQLiteJournal(cfg.JournalDSN())
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.JournalDSN())
		return 1
	}
	defer journal.Close()

	notifier := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		return runReport(ctx, book, journal, notifier)
	}
	if *resolve {
		return runResolve(hist, book)
	}

	client := polymarket.NewClient(cfg.API.GammaBase, cfg.API.PageLimit, cfg.API.MaxMarkets)

	scanCfg := scanner.DefaultConfig()
	scanCfg.ScanInterval = cfg.ScanInterval()
	scanCfg.Thresholds = cfg.Thresholds()
	scanCfg.MaxTradesPerCycle = cfg.Scanner.MaxTradesPerCycle
	scanCfg.BaseSizeUSD = cfg.Scanner.BaseSizeUSD
	scanCfg.HistoryRetention = cfg.HistoryRetention()
	scanCfg.DryRun = *once

	deps := scanner.Deps{
		Markets:  client,
		History:  hist,
		Ledger:   book,
		Journal:  journal,
		Notifier: notifier,
	}

	if cfg.Metrics.Enabled {
		rec := metrics.New()
		deps.Metrics = rec
		srv := metrics.NewServer(cfg.Metrics.Addr, rec, book, 3*cfg.ScanInterval())
		srv.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Stop(stopCtx); err != nil {
				slog.Warn("status server shutdown", "err", err)
			}
		}()
	}

	go watchStopFile(ctx, cancel, filepath.Join(cfg.DataDir, "STOP"), 5*time.Second)

	if err := scanner.New(scanCfg, deps).Run(ctx); err != nil {
		slog.Error("scanner exited with error", "err", err)
		return 1
	}

	slog.Info("spikebot stopped cleanly")
	return 0
}

func runReport(ctx context.Context, book *ledger.Ledger, journal *storage.SQLiteJournal, notifier *notify.Console) int {
	stats, err := journal.GetStats(ctx)
	if err != nil {
		slog.Error("failed to read journal", "err", err)
		return 1
	}

	var closed []domain.Trade
	trades := book.Trades()
	for i := len(trades) - 1; i >= 0 && len(closed) < recentClosedInReport; i-- {
		if !trades[i].IsOpen() {
			closed = append(closed, trades[i])
		}
	}

	notifier.PrintReport(notify.ReportInput{
		Summary:       book.Summary(),
		OpenPositions: book.OpenPositions(),
		RecentClosed:  closed,
		Journal:       stats,
	})
	return 0
}

func runResolve(hist *history.Store, book *ledger.Ledger) int {
	closed, unpriced, err := scanner.ResolveOpen(hist, book)
	if err != nil {
		slog.Error("resolve failed", "err", err, "closed", len(closed))
		return 1
	}
	s := book.Summary()
	slog.Info("open positions resolved",
		"closed", len(closed),
		"left_open", unpriced,
		"realized_pnl", fmt.Sprintf("$%.2f", s.RealizedPnL),
		"cash", fmt.Sprintf("$%.2f", s.CashBalance),
	)
	return 0
}

// watchStopFile cancela el contexto si aparece el archivo STOP, y lo borra.
func watchStopFile(ctx context.Context, cancel context.CancelFunc, path string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				slog.Info("STOP file detected, shutting down", "path", path)
				os.Remove(path)
				cancel()
				return
			}
		}
	}
}

func logStateError(msg string, err error, path string) {
	if errors.Is(err, storage.ErrCorruptState) {
		slog.Error(msg+": persisted state is corrupt, fix or move the file", "err", err, "path", path)
		return
	}
	slog.Error(msg, "err", err, "path", path)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
