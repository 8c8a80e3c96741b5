package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/app"
	"github.com/Allenwang2004/Alltrader/internal/domain"
	"github.com/Allenwang2004/Alltrader/internal/engine"
	"github.com/Allenwang2004/Alltrader/internal/execution"
	"github.com/Allenwang2004/Alltrader/internal/infra"
	"github.com/Allenwang2004/Alltrader/internal/infra/okx"
	"github.com/Allenwang2004/Alltrader/internal/market"
	"github.com/Allenwang2004/Alltrader/internal/oms"
	"github.com/Allenwang2004/Alltrader/internal/storage"
	"github.com/Allenwang2004/Alltrader/internal/strategy"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof server, localhost only
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prometheus endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", infra.MetricsHandler())
		slog.Info("metrics server started", slog.String("addr", cfg.Metrics.Addr))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	tables, err := cfg.RiskTables()
	if err != nil {
		slog.Error("invalid risk tables", slog.Any("error", err))
		os.Exit(1)
	}

	port, err := bootstrap.ExecutionPort()
	if err != nil {
		slog.Error("execution port init failed", slog.Any("error", err))
		os.Exit(1)
	}

	coordinator := oms.New(port, oms.Config{
		MaxRetries:   cfg.Orders.MaxRetries,
		RetryDelay:   time.Duration(cfg.Orders.RetryDelayMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.Orders.PollIntervalMS) * time.Millisecond,
		FillTimeout:  time.Duration(cfg.Orders.FillTimeoutMS) * time.Millisecond,
	}, slog.Default())

	lastPrice := &market.LastPrice{}
	m15 := make(chan domain.Bar, cfg.Trading.WindowSize+16)
	h1 := make(chan domain.Bar, cfg.Trading.WindowSize+16)

	// Seed the rolling windows from REST history before streaming starts.
	rest := okx.NewClient(cfg)
	defer rest.Close()
	seedHistory(ctx, rest, bootstrap.Store, cfg.Trading.Symbol, cfg.Trading.WindowSize, m15, h1)

	// Market data workers
	ticker := okx.NewTickerWorker(cfg.API.OKX.WSPublicURL, cfg.Trading.Symbol, lastPrice)
	if err := ticker.Connect(ctx); err != nil {
		slog.Error("ticker worker failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer ticker.Disconnect()

	kline := okx.NewKlineWorker(cfg.API.OKX.WSBusinessURL, cfg.Trading.Symbol, m15, h1)
	if err := kline.Connect(ctx); err != nil {
		slog.Error("kline worker failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer kline.Disconnect()

	// Simulated execution fills at a mark price; keep it tracking the feed.
	if sim, ok := port.(*execution.SimExecution); ok {
		go trackMarkPrice(ctx, sim, lastPrice, cfg.Trading.Symbol, cfg.TickInterval())
	}

	controller := engine.NewController(engine.Config{
		Symbol:     cfg.Trading.Symbol,
		Leverage:   cfg.Leverage(),
		BaseQty:    cfg.BaseQty(),
		FeeRate:    cfg.FeeRate(),
		Tick:       cfg.TickInterval(),
		WindowSize: cfg.Trading.WindowSize,
	}, tables, strategy.ForName(cfg.Trading.Strategy), coordinator, lastPrice, m15, h1, slog.Default())

	store := bootstrap.Store
	controller.OnTrade(func(tr domain.TradeRecord) {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SaveTrade(sctx, tr); err != nil {
			slog.Error("persisting trade failed", slog.Any("error", err))
		}
	})

	slog.Info("trader operational, press Ctrl+C to exit",
		slog.String("symbol", cfg.Trading.Symbol),
		slog.String("mode", cfg.Trading.Mode))

	controller.Run(ctx)

	slog.Info("shutting down gracefully")
}

// seedHistory pulls recent confirmed candles over REST, persists them, and
// pre-fills the bar channels so the strategy has populated windows at start.
func seedHistory(ctx context.Context, rest *okx.Client, store *storage.Store, symbol string, limit int, m15, h1 chan<- domain.Bar) {
	for _, tf := range []struct {
		interval domain.Interval
		out      chan<- domain.Bar
	}{
		{domain.Interval15m, m15},
		{domain.Interval1h, h1},
	} {
		bars, err := rest.FetchBars(ctx, symbol, tf.interval, limit)
		if err != nil {
			slog.Warn("history seed failed, windows start cold",
				slog.String("interval", string(tf.interval)), slog.Any("error", err))
			continue
		}
		if err := store.SaveBars(ctx, symbol, tf.interval, bars); err != nil {
			slog.Warn("persisting history failed", slog.Any("error", err))
		}
		for _, b := range bars {
			select {
			case tf.out <- b:
			default:
			}
		}
		slog.Info("history seeded",
			slog.String("interval", string(tf.interval)), slog.Int("bars", len(bars)))
	}
}

// trackMarkPrice keeps the simulated exchange's fill price aligned with
// the live ticker stream.
func trackMarkPrice(ctx context.Context, sim *execution.SimExecution, last *market.LastPrice, symbol string, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if price, ok := last.Load(); ok {
				sim.SetMarkPrice(symbol, price)
			}
		}
	}
}
