package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	started DATETIME NOT NULL,
	finished DATETIME
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	time DATETIME NOT NULL,
	currency TEXT NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	positions INTEGER NOT NULL,
	open_orders INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	time DATETIME NOT NULL,
	order_id INTEGER NOT NULL,
	asset TEXT NOT NULL,
	size REAL NOT NULL,
	price REAL NOT NULL,
	pnl REAL NOT NULL,
	currency TEXT NOT NULL,
	tag TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_fills_run_time ON fills(run_id, time);
`
