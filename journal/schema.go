package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	asset_type TEXT NOT NULL,
	action TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	commission REAL NOT NULL,
	slippage REAL NOT NULL,
	cash_delta REAL NOT NULL,
	margin_delta REAL NOT NULL,
	closing INTEGER NOT NULL,
	realized_pl REAL NOT NULL,
	is_forced_liquidation INTEGER NOT NULL,
	liquidation_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	margin_available REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	final_capital REAL NOT NULL,
	total_return REAL NOT NULL,
	trades INTEGER NOT NULL,
	forced_liquidations INTEGER NOT NULL,
	created DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
