package repos

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	if !strings.Contains(dsn, "?") {
		// Immediate transactions take the write lock up front so concurrent
		// ledger batches serialize instead of failing mid-transaction.
		dsn += "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed a demo catalog if the DB is empty (idempotent; safe on every start)
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}

	return db, nil
}

// WithTx runs fn inside a single transaction, rolling back on any error.
// All batch ledger mutations and the payment/quote/stock transition go
// through here so they are all-or-nothing.
func WithTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nowUTC formats timestamps the way every table stores them: RFC3339 UTC,
// which also compares correctly as text.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if u := errors.Unwrap(err); u != nil {
		msg = u.Error()
	}
	return strings.Contains(msg, "UNIQUE constraint failed")
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Products (read-mostly; price here is only the current list price,
-- quotes snapshot it at creation time)
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(LOWER(name));

-- Stock ledger: one row per product, qty can never go below zero
CREATE TABLE IF NOT EXISTS stock(
  product_id TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
  qty INTEGER NOT NULL DEFAULT 0 CHECK (qty >= 0),
  updated_at TEXT
);

-- Quotes
CREATE TABLE IF NOT EXISTS quotes(
  id TEXT PRIMARY KEY,
  quote_number TEXT NOT NULL UNIQUE,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL DEFAULT '',
  customer_phone TEXT NOT NULL DEFAULT '',
  discount_pct NUMERIC NOT NULL DEFAULT 0 CHECK (discount_pct >= 0 AND discount_pct <= 100),
  tax_pct NUMERIC NOT NULL DEFAULT 0 CHECK (tax_pct >= 0 AND tax_pct <= 100),
  subtotal NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid','cancelled','expired')),
  notes TEXT NOT NULL DEFAULT '',
  expires_at TEXT NOT NULL,
  payment_id TEXT NOT NULL DEFAULT '',
  created_by TEXT NOT NULL DEFAULT '',
  created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_quotes_status  ON quotes(status);
CREATE INDEX IF NOT EXISTS idx_quotes_expires ON quotes(status, expires_at);

-- Quote lines carry a frozen snapshot of name and price
CREATE TABLE IF NOT EXISTS quote_lines(
  quote_id TEXT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id),
  product_name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  line_subtotal NUMERIC NOT NULL,
  PRIMARY KEY (quote_id, product_id)
);

-- Payments: at most one live (pending/approved) payment per quote, enforced
-- here rather than in application code to close the creation race
CREATE TABLE IF NOT EXISTS payments(
  id TEXT PRIMARY KEY,
  quote_id TEXT NOT NULL REFERENCES quotes(id),
  gateway_payment_id TEXT NOT NULL DEFAULT '',
  gateway_preference_id TEXT NOT NULL DEFAULT '',
  external_reference TEXT NOT NULL UNIQUE,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected','cancelled')),
  raw_payload TEXT NOT NULL DEFAULT '',
  paid_at TEXT NOT NULL DEFAULT '',
  created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_quote_live
  ON payments(quote_id) WHERE status IN ('pending','approved');
CREATE INDEX IF NOT EXISTS idx_payments_gateway_id ON payments(gateway_payment_id);

-- Counters back the human-readable quote numbers
CREATE TABLE IF NOT EXISTS counters(
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO counters(name, value) VALUES ('quote_number', 0);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo products/stock")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO products(id,name,description,price) VALUES
	  ('desk-001','Standing Desk 120cm','Electric height-adjustable desk',399.00),
	  ('chair-001','Ergonomic Office Chair','Mesh back, lumbar support',249.90),
	  ('lamp-001','LED Desk Lamp','Dimmable, USB charging port',39.50)`)

	tx.MustExec(`INSERT INTO stock(product_id,qty) VALUES
	  ('desk-001',12),
	  ('chair-001',30),
	  ('lamp-001',0)`)

	return tx.Commit()
}
