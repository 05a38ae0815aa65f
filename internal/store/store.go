// Package store persists the logbook in PostgreSQL or SQLite.
//
// Both backends share one SQL layer on database/sql. PostgreSQL runs on a
// pgx connection pool exposed through pgx's database/sql adapter; SQLite
// uses the pure Go modernc driver. Queries are written with '?' placeholders
// and rebound per dialect.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/flightlog/internal/config"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is an open logbook database.
type DB struct {
	queries
	db   *sql.DB
	pool *pgxpool.Pool
}

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.URL)
	case DriverPostgres, "":
		return OpenPostgres(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// OpenPostgres opens a pgx pool with the configured limits and wraps it in
// a *sql.DB.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "driver", DriverPostgres, "name", strings.TrimPrefix(u.Path, "/"))
	}

	db := stdlib.OpenDBFromPool(pool)
	return &DB{queries: queries{q: db, d: postgresDialect{}}, db: db, pool: pool}, nil
}

// OpenSQLite opens or creates a SQLite database file. ":memory:" opens a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	memory := strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
	if memory {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	slog.Debug("opened database", "driver", DriverSQLite, "path", path)
	return &DB{queries: queries{q: db, d: sqliteDialect{}}, db: db}, nil
}

// Driver returns the name of the backend.
func (d *DB) Driver() string {
	return d.d.name()
}

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database and, for PostgreSQL, the pool.
func (d *DB) Close() error {
	err := d.db.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// Migrate creates missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range d.d.schema() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d.d.name(), d.d.wrap(err))
		}
	}
	return nil
}

// Tx is a logbook transaction. All mutations of one import run happen in a
// single Tx.
type Tx struct {
	queries
	tx *sql.Tx
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", d.d.wrap(err))
	}
	return &Tx{queries: queries{q: tx, d: d.d}, tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", t.d.wrap(err))
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement. It runs on the database or inside a Tx.
type queries struct {
	q querier
	d dialect
}

func (q queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.q.ExecContext(ctx, q.d.rebind(query), args...)
	return res, q.d.wrap(err)
}

func (q queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.q.QueryContext(ctx, q.d.rebind(query), args...)
	return rows, q.d.wrap(err)
}

func (q queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.d.rebind(query), args...)
}
