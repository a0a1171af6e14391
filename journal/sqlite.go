package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"quantsim/portfolio"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t portfolio.Trade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, time, symbol, asset_type, action, price, quantity,
		 commission, slippage, cash_delta, margin_delta, closing,
		 realized_pl, is_forced_liquidation, liquidation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time, t.Symbol, string(t.AssetType), string(t.Action),
		t.Price, t.Quantity, t.Commission, t.Slippage, t.CashDelta,
		t.MarginDelta, t.Closing, t.RealizedPL, t.Forced, t.ForcedReason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity, margin_used, margin_available)
		VALUES (?, ?, ?, ?, ?)`,
		e.Time, e.Cash, e.Equity, e.MarginUsed, e.MarginAvailable,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, strategy, start_date, end_date, initial_capital, final_capital,
		 total_return, trades, forced_liquidations, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Strategy, r.Start, r.End, r.InitialCapital,
		r.FinalCapital, r.TotalReturn, r.Trades, r.ForcedLiquidations,
		r.Created,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
