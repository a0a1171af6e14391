package journal

import (
	"database/sql"
	"fmt"
	"time"

	"quantsim/market"
	"quantsim/portfolio"
)

const tradeColumns = `trade_id, time, symbol, asset_type, action, price,
	quantity, commission, slippage, cash_delta, margin_delta, closing,
	realized_pl, is_forced_liquidation, liquidation_reason`

func scanTrade(row interface{ Scan(...any) error }) (portfolio.Trade, error) {
	var t portfolio.Trade
	var assetType, action string
	err := row.Scan(
		&t.ID, &t.Time, &t.Symbol, &assetType, &action, &t.Price,
		&t.Quantity, &t.Commission, &t.Slippage, &t.CashDelta,
		&t.MarginDelta, &t.Closing, &t.RealizedPL, &t.Forced,
		&t.ForcedReason,
	)
	t.AssetType = market.AssetType(assetType)
	t.Action = portfolio.Action(action)
	return t, err
}

// GetTrade returns a single ledger entry by ID.
func (j *SQLite) GetTrade(tradeID string) (portfolio.Trade, error) {
	row := j.db.QueryRow(
		`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return portfolio.Trade{}, fmt.Errorf("trade %q not found", tradeID)
	}
	return t, err
}

// ListTradesBetween returns ledger entries with time in [start, end),
// in chronological order.
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]portfolio.Trade, error) {
	rows, err := j.db.Query(
		`SELECT `+tradeColumns+` FROM trades
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, trade_id ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListForcedLiquidations returns the forced-close entries of the ledger.
func (j *SQLite) ListForcedLiquidations() ([]portfolio.Trade, error) {
	rows, err := j.db.Query(
		`SELECT ` + tradeColumns + ` FROM trades
		WHERE is_forced_liquidation = 1
		ORDER BY time ASC, trade_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetRun returns a stored run summary by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var r RunRecord
	row := j.db.QueryRow(`
		SELECT run_id, strategy, start_date, end_date, initial_capital, final_capital,
		       total_return, trades, forced_liquidations, created
		FROM runs WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Strategy, &r.Start, &r.End, &r.InitialCapital,
		&r.FinalCapital, &r.TotalReturn, &r.Trades,
		&r.ForcedLiquidations, &r.Created,
	)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	return r, err
}

// ListRuns returns stored run summaries, newest first.
func (j *SQLite) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, strategy, start_date, end_date, initial_capital, final_capital,
		       total_return, trades, forced_liquidations, created
		FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.Strategy, &r.Start, &r.End, &r.InitialCapital,
			&r.FinalCapital, &r.TotalReturn, &r.Trades,
			&r.ForcedLiquidations, &r.Created,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
