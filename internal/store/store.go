package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import sqlite driver for database/sql package
	_ "modernc.org/sqlite"
)

// schema holds the full DDL. The store keeps every record that must
// survive a restart while a cross-domain operation is in flight; the hub's
// balances themselves are rebuilt from these records plus operator input.
const schema = `
CREATE TABLE IF NOT EXISTS inbound_messages (
	message_id    TEXT PRIMARY KEY,
	origin_domain INTEGER NOT NULL,
	sender        TEXT NOT NULL,
	nonce         INTEGER NOT NULL,
	timestamp     INTEGER NOT NULL,
	processed     INTEGER NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS domain_cursors (
	origin_domain  INTEGER NOT NULL,
	sender         TEXT NOT NULL,
	last_nonce     INTEGER NOT NULL,
	last_timestamp INTEGER NOT NULL,
	PRIMARY KEY (origin_domain, sender)
);

CREATE TABLE IF NOT EXISTS outbound_nonces (
	dest_domain INTEGER PRIMARY KEY,
	next_nonce  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS failed_messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	message_type INTEGER NOT NULL,
	dest_domain  INTEGER NOT NULL,
	recipient    TEXT NOT NULL,
	payload      BLOB NOT NULL,
	gas_payment  TEXT NOT NULL DEFAULT '0',
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER NOT NULL DEFAULT 0,
	resolved     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pending_transfers (
	transfer_id  TEXT PRIMARY KEY,
	amount       TEXT NOT NULL,
	dest_domain  INTEGER NOT NULL,
	recipient    TEXT NOT NULL,
	reference    TEXT NOT NULL DEFAULT '',
	initiated_at INTEGER NOT NULL,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS processed_settlements (
	message_hash TEXT PRIMARY KEY,
	source_domain INTEGER NOT NULL,
	amount        TEXT NOT NULL,
	received_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS applied_settlements (
	message_hash TEXT PRIMARY KEY,
	applied_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_operations (
	correlation_id TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	amount         TEXT NOT NULL,
	target_domain  INTEGER NOT NULL,
	created_at     INTEGER NOT NULL,
	completed      INTEGER NOT NULL DEFAULT 0,
	flagged        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rebalance_executions (
	execution_id  TEXT PRIMARY KEY,
	source_domain INTEGER NOT NULL,
	target_domain INTEGER NOT NULL,
	amount        TEXT NOT NULL,
	executed_at   INTEGER NOT NULL
);
`

// Store wraps the SQLite database holding the durable cross-domain records.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and applies the
// schema. Pass "file::memory:?cache=shared" style paths for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}

	// The driver serializes writes; a single connection avoids SQLITE_BUSY
	// on concurrent readers in-memory.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for readiness pings.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "failed to ping store")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close store")
}
