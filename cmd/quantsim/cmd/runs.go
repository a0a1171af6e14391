package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"quantsim/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List backtest runs stored in a SQLite journal",
	RunE:  listRuns,
}

var runsDBPath string

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVarP(&runsDBPath, "db", "d", "./quantsim.sqlite", "path to SQLite journal DB")
}

func listRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(runsDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-12s  %s..%s  %10.2f -> %10.2f  (%6.2f%%)  trades=%d forced=%d\n",
			r.RunID, r.Strategy,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"),
			r.InitialCapital, r.FinalCapital, r.TotalReturn*100,
			r.Trades, r.ForcedLiquidations)
	}
	return nil
}
