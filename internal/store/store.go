// Package store is the backend's persistent transaction table.
//
// It backs `ft serve`: the REST handlers write through it and broadcast the
// result to connected clients. The database is embedded SQLite in WAL mode
// so the health check and list queries never wait on a writer.
//
// Architecture:
//   - Database file: serve.db under the data directory
//   - Schema: transactions table, indexed by user and date
//   - Identifiers: random UUIDs assigned on insert
//   - Amounts: decimal strings, never floats
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/schema"
)

// ErrNotFound is returned when no transaction has the requested id.
var ErrNotFound = errors.New("transaction not found")

const timeLayout = time.RFC3339Nano

// DB wraps the SQLite connection holding server-side transactions.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates or reopens the database at path and initializes the schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout is per connection, so it goes in the DSN for the whole pool.
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path, now: time.Now}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the transactions table. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user, date DESC);
	`
	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// Create validates the draft, assigns a new id and stores it. A user is
// required.
func (db *DB) Create(ctx context.Context, draft schema.Transaction) (schema.Transaction, error) {
	now := db.now().UTC()

	t := draft
	t.ID = uuid.NewString()
	t.SetDefaults(now)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.User == "" {
		return schema.Transaction{}, fmt.Errorf("%w: user is required", schema.ErrInvalid)
	}
	if err := t.Validate(); err != nil {
		return schema.Transaction{}, err
	}

	if err := db.upsert(ctx, t, now); err != nil {
		return schema.Transaction{}, err
	}
	return t, nil
}

// Get returns the transaction with id.
func (db *DB) Get(ctx context.Context, id string) (schema.Transaction, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user, description, amount, type, category, date, created_at
		FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return schema.Transaction{}, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return t, nil
}

// Update applies patch to the stored record and returns the result.
func (db *DB) Update(ctx context.Context, id string, patch schema.Patch) (schema.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return schema.Transaction{}, err
	}

	current, err := db.Get(ctx, id)
	if err != nil {
		return schema.Transaction{}, err
	}

	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return schema.Transaction{}, err
	}
	if err := db.upsert(ctx, updated, db.now().UTC()); err != nil {
		return schema.Transaction{}, err
	}
	return updated, nil
}

// Delete removes the record with id.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns the user's transactions, most recent first.
func (db *DB) List(ctx context.Context, user string) ([]schema.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user, description, amount, type, category, date, created_at
		FROM transactions
		WHERE user = ?
		ORDER BY date DESC, created_at DESC`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []schema.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) upsert(ctx context.Context, t schema.Transaction, now time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO transactions (id, user, description, amount, type, category, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			type = excluded.type,
			category = excluded.category,
			date = excluded.date,
			updated_at = excluded.updated_at`,
		t.ID, t.User, t.Description, t.Amount.String(), string(t.Type), t.EffectiveCategory(),
		t.Date.UTC().Format(timeLayout), t.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (schema.Transaction, error) {
	var (
		t               schema.Transaction
		amount, typ     string
		date, createdAt string
	)
	if err := s.Scan(&t.ID, &t.User, &t.Description, &amount, &typ, &t.Category, &date, &createdAt); err != nil {
		return schema.Transaction{}, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return schema.Transaction{}, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	t.Type = schema.Type(typ)
	if t.Date, err = time.Parse(timeLayout, date); err != nil {
		return schema.Transaction{}, fmt.Errorf("bad date %q: %w", date, err)
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return schema.Transaction{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	return t, nil
}
