package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Allenwang2004/Alltrader/internal/backtest"
	"github.com/Allenwang2004/Alltrader/internal/risk"
	"github.com/Allenwang2004/Alltrader/internal/storage"
	"github.com/Allenwang2004/Alltrader/internal/strategy"

	"github.com/shopspring/decimal"
)

func main() {
	var (
		csvPath   = flag.String("csv", "data/BTC_USDT_1m_okx_swap.csv", "1-minute OHLCV csv file")
		symbol    = flag.String("symbol", "BTC-USDT-SWAP", "instrument symbol")
		stratName = flag.String("strategy", "long", "strategy: long, short or macd")
		leverage  = flag.String("leverage", "1", "position leverage")
		baseQty   = flag.String("base-qty", "1", "base order quantity")
		feeRate   = flag.String("fee", "0.0005", "taker fee rate")
		initial   = flag.String("initial", "500", "initial equity for return metrics")
		dbPath    = flag.String("db", "", "optional sqlite path to persist trades")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*csvPath, *symbol, *stratName, *leverage, *baseQty, *feeRate, *initial, *dbPath, log); err != nil {
		log.Error("backtest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(csvPath, symbol, stratName, leverage, baseQty, feeRate, initial, dbPath string, log *slog.Logger) error {
	lev, err := decimal.NewFromString(leverage)
	if err != nil || lev.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("leverage %q must be a decimal >= 1", leverage)
	}
	qty, err := decimal.NewFromString(baseQty)
	if err != nil || !qty.IsPositive() {
		return fmt.Errorf("base-qty %q must be a positive decimal", baseQty)
	}
	fee, err := decimal.NewFromString(feeRate)
	if err != nil || fee.IsNegative() {
		return fmt.Errorf("fee %q must be a non-negative decimal", feeRate)
	}
	initialEquity, err := decimal.NewFromString(initial)
	if err != nil || !initialEquity.IsPositive() {
		return fmt.Errorf("initial %q must be a positive decimal", initial)
	}

	bars, err := backtest.LoadBarsCSV(csvPath)
	if err != nil {
		return err
	}
	log.Info("bars loaded", slog.String("csv", csvPath), slog.Int("bars", len(bars)))

	sim := backtest.NewSimulator(backtest.Config{
		Symbol:   symbol,
		Leverage: lev,
		BaseQty:  qty,
		FeeRate:  fee,
	}, risk.DefaultTables(), strategy.ForName(stratName), log)

	res, err := sim.Run(bars)
	if err != nil {
		return err
	}

	perf := backtest.Evaluate(res, initialEquity)
	printSummary(res, perf)

	if dbPath != "" {
		if err := persistTrades(dbPath, res); err != nil {
			return err
		}
		log.Info("trades persisted", slog.String("db", dbPath), slog.Int("trades", len(res.Trades)))
	}
	return nil
}

func printSummary(res *backtest.Result, perf backtest.Performance) {
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("%-20s %d\n", "Trades:", perf.TradeCount)
	fmt.Printf("%-20s %s\n", "Realized PnL:", res.RealizedPnL.StringFixed(6))
	fmt.Printf("%-20s %.4f%%\n", "Total Return:", perf.TotalReturn*100)
	fmt.Printf("%-20s %.4f%%\n", "Annualized Return:", perf.AnnualizedReturn*100)
	fmt.Printf("%-20s %.4f%%\n", "Max Drawdown:", perf.MaxDrawdown*100)
	fmt.Printf("%-20s %.4f\n", "Sharpe Ratio:", perf.SharpeRatio)
	fmt.Printf("%-20s %.2f%%\n", "Win Rate:", perf.WinRate*100)
	fmt.Printf("%-20s %.6f\n", "Avg Trade PnL:", perf.AvgTradePnL)
	fmt.Printf("%-20s %.6f\n", "Max Trade PnL:", perf.MaxTradePnL)
	fmt.Printf("%-20s %.6f\n", "Min Trade PnL:", perf.MinTradePnL)
}

func persistTrades(dbPath string, res *backtest.Result) error {
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, tr := range res.Trades {
		if err := store.SaveTrade(ctx, tr); err != nil {
			return err
		}
	}
	return nil
}
