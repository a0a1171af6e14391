package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quantsim/backtest"
	"quantsim/config"
	"quantsim/journal"
	"quantsim/market"
	"quantsim/portfolio"
	"quantsim/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over a daily bar CSV",
	Long: `Backtest replays daily OHLCV bars through a strategy and prints the
resulting performance summary.

The bar CSV has columns symbol,date,open,high,low,close,volume. Symbols are
classified by code pattern (stock, futures, option); unclassifiable symbols
need an explicit assets entry in the config file.

Example:
  quantsim backtest -c run.yaml -b bars.csv -s sma-cross --fast 5 --slow 20`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btBarsPath   string
	btStrategy   string
	btFast       int
	btSlow       int
	btSizePct    float64
	btReportPath string
	btJSONPath   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to run config (YAML or JSON) (required)")
	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to daily bar CSV (required)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "noop", "strategy name (noop, sma-cross)")
	backtestCmd.Flags().IntVar(&btFast, "fast", 5, "sma-cross: fast MA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 20, "sma-cross: slow MA period")
	backtestCmd.Flags().Float64Var(&btSizePct, "size-pct", 0.2, "sma-cross: position size as fraction of equity")
	backtestCmd.Flags().StringVarP(&btReportPath, "report", "r", "", "write a markdown report to this path")
	backtestCmd.Flags().StringVarP(&btJSONPath, "json", "j", "", "write the full result as JSON to this path")

	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return err
	}

	bars, err := backtest.LoadBarsCSV(btBarsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	start, end, err := cfg.Window()
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		wanted[s] = true
	}
	filtered := bars[:0]
	for _, b := range bars {
		if !wanted[b.Symbol] || b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		filtered = append(filtered, b)
	}

	assets := backtest.NewAssetTable()
	for _, symbol := range cfg.Symbols {
		at := market.AssetType(cfg.Assets[symbol].Type)
		if !at.Valid() {
			if at, err = market.Classify(symbol); err != nil {
				return err
			}
		}
		assets.Set(symbol, backtest.AssetInfo{Type: at, Params: cfg.Params(symbol, at)})
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	strat, err := strategy.ByName(btStrategy, btFast, btSlow, btSizePct)
	if err != nil {
		return err
	}

	runner := &backtest.Runner{
		Portfolio: portfolio.New(cfg.Portfolio()),
		Feed:      backtest.NewMemoryFeed(filtered),
		Strategy:  strat,
		Assets:    assets,
		Journal:   j,
	}

	fmt.Printf("Running backtest with strategy: %s\n", strat.Name())
	fmt.Printf("  Bars: %s (%d rows in window)\n", btBarsPath, len(filtered))
	fmt.Printf("  Period: %s to %s\n\n", cfg.StartDate, cfg.EndDate)

	res, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	summary := res.Summary(cfg.RiskFreeRate)
	fmt.Printf("Backtest complete (%s)\n", res.RunID)
	fmt.Printf("  Final capital: %.2f (%.2f%% total return)\n", res.FinalCapital, res.TotalReturn*100)
	fmt.Printf("  Trades: %d  Skipped: %d  Forced liquidations: %d\n",
		res.TotalTrades, len(res.SkippedSignals), res.ForcedLiquidations)
	fmt.Printf("  Max drawdown: %.2f%%\n", summary.MaxDrawdown*100)
	if summary.SharpeRatio != nil {
		fmt.Printf("  Sharpe: %.2f\n", *summary.SharpeRatio)
	}
	if summary.WinRate != nil {
		fmt.Printf("  Win rate: %.1f%%\n", *summary.WinRate*100)
	}

	if btReportPath != "" {
		report, err := backtest.Report(&res, cfg.RiskFreeRate)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		if err := os.WriteFile(btReportPath, []byte(report), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("  Report: %s\n", btReportPath)
	}
	if btJSONPath != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := os.WriteFile(btJSONPath, data, 0644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		fmt.Printf("  Result: %s\n", btJSONPath)
	}
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}
