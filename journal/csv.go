package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"quantsim/portfolio"
)

// CSV writes trades and equity snapshots to two flat files. Run summaries
// are not persisted in this backend.
type CSV struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{
		"trade_id", "time", "symbol", "asset_type", "action", "price",
		"quantity", "commission", "slippage", "cash_delta", "margin_delta",
		"closing", "realized_pl", "is_forced_liquidation", "liquidation_reason",
	}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{
		"time", "cash", "equity", "margin_used", "margin_available",
	}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordTrade(t portfolio.Trade) error {
	err := j.trades.Write([]string{
		t.ID,
		t.Time.Format(time.RFC3339),
		t.Symbol,
		string(t.AssetType),
		string(t.Action),
		f(t.Price),
		f(t.Quantity),
		f(t.Commission),
		f(t.Slippage),
		f(t.CashDelta),
		f(t.MarginDelta),
		strconv.FormatBool(t.Closing),
		f(t.RealizedPL),
		strconv.FormatBool(t.Forced),
		t.ForcedReason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.MarginAvailable),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) RecordRun(RunRecord) error { return nil }

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
