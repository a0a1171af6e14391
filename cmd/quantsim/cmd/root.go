package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quantsim",
	Short: "A multi-asset portfolio backtesting engine",
	Long: `Quantsim simulates trading strategies across stocks, futures and
options with asset-specific settlement:

  - Full-payment settlement for stocks, premium settlement for options
  - Margin-based futures with forced liquidation
  - Trade-by-trade ledger, daily equity curve
  - Sharpe/Sortino/drawdown/win-rate statistics
  - SQLite or CSV journaling of trades, equity and runs`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}
