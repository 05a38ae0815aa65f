package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// sqliteTimeLayout is how times are stored in SQLite TEXT columns, always UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// dialect hides the differences between the SQL backends.
type dialect interface {
	name() string
	rebind(query string) string
	bindTime(t time.Time) any
	schema() []string
	// afterExplicitID runs after a row was written with a caller supplied id.
	afterExplicitID() string
	wrap(err error) error
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) bindTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func (sqliteDialect) afterExplicitID() string { return "" }

func (sqliteDialect) wrap(err error) error { return err }

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			last_name TEXT NOT NULL,
			first_name TEXT NOT NULL,
			club TEXT NOT NULL DEFAULT '',
			nickname TEXT NOT NULL DEFAULT '',
			comments TEXT NOT NULL DEFAULT '',
			medical_validity TEXT,
			check_medical_validity INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_people_name ON people(last_name, first_name)`,
		`CREATE TABLE IF NOT EXISTS planes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			registration TEXT NOT NULL,
			club TEXT NOT NULL DEFAULT '',
			num_seats INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			callsign TEXT NOT NULL DEFAULT '',
			comments TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_planes_registration ON planes(registration)`,
		`CREATE TABLE IF NOT EXISTS launch_methods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			short_name TEXT NOT NULL DEFAULT '',
			log_string TEXT NOT NULL DEFAULT '',
			keyboard_shortcut TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			towplane_registration TEXT NOT NULL DEFAULT '',
			person_required INTEGER NOT NULL DEFAULT 0,
			comments TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS flights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plane_id INTEGER REFERENCES planes(id),
			pilot_id INTEGER REFERENCES people(id),
			copilot_id INTEGER REFERENCES people(id),
			towplane_id INTEGER REFERENCES planes(id),
			towpilot_id INTEGER REFERENCES people(id),
			launch_method_id INTEGER REFERENCES launch_methods(id),
			type TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			departure_time TEXT,
			landing_time TEXT,
			departure_location TEXT NOT NULL DEFAULT '',
			landing_location TEXT NOT NULL DEFAULT '',
			num_landings INTEGER NOT NULL DEFAULT 0,
			towflight_mode TEXT NOT NULL DEFAULT '',
			towflight_landing_time TEXT,
			towflight_landing_location TEXT NOT NULL DEFAULT '',
			departed INTEGER NOT NULL DEFAULT 0,
			landed INTEGER NOT NULL DEFAULT 0,
			towflight_landed INTEGER NOT NULL DEFAULT 0,
			comments TEXT NOT NULL DEFAULT '',
			accounting_notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_departure ON flights(departure_time)`,
		`CREATE TABLE IF NOT EXISTS import_runs (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			stats TEXT NOT NULL DEFAULT '{}',
			missing TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at)`,
	}
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

// rebind rewrites '?' placeholders to $1, $2, ... Queries in this package
// never contain a literal question mark.
func (postgresDialect) rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) bindTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (postgresDialect) afterExplicitID() string {
	return `SELECT setval(pg_get_serial_sequence('flights', 'id'), GREATEST((SELECT MAX(id) FROM flights), 1))`
}

// wrap adds the detail of a PostgreSQL error, which pgx leaves out of Error().
func (postgresDialect) wrap(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS people (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			last_name TEXT NOT NULL,
			first_name TEXT NOT NULL,
			club TEXT NOT NULL DEFAULT '',
			nickname TEXT NOT NULL DEFAULT '',
			comments TEXT NOT NULL DEFAULT '',
			medical_validity TIMESTAMPTZ,
			check_medical_validity BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_people_name ON people(last_name, first_name)`,
		`CREATE TABLE IF NOT EXISTS planes (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			registration TEXT NOT NULL,
			club TEXT NOT NULL DEFAULT '',
			num_seats INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			callsign TEXT NOT NULL DEFAULT '',
			comments TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_planes_registration ON planes(registration)`,
		`CREATE TABLE IF NOT EXISTS launch_methods (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			name TEXT NOT NULL,
			short_name TEXT NOT NULL DEFAULT '',
			log_string TEXT NOT NULL DEFAULT '',
			keyboard_shortcut TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			towplane_registration TEXT NOT NULL DEFAULT '',
			person_required BOOLEAN NOT NULL DEFAULT FALSE,
			comments TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS flights (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			plane_id BIGINT REFERENCES planes(id),
			pilot_id BIGINT REFERENCES people(id),
			copilot_id BIGINT REFERENCES people(id),
			towplane_id BIGINT REFERENCES planes(id),
			towpilot_id BIGINT REFERENCES people(id),
			launch_method_id BIGINT REFERENCES launch_methods(id),
			type TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			departure_time TIMESTAMPTZ,
			landing_time TIMESTAMPTZ,
			departure_location TEXT NOT NULL DEFAULT '',
			landing_location TEXT NOT NULL DEFAULT '',
			num_landings INTEGER NOT NULL DEFAULT 0,
			towflight_mode TEXT NOT NULL DEFAULT '',
			towflight_landing_time TIMESTAMPTZ,
			towflight_landing_location TEXT NOT NULL DEFAULT '',
			departed BOOLEAN NOT NULL DEFAULT FALSE,
			landed BOOLEAN NOT NULL DEFAULT FALSE,
			towflight_landed BOOLEAN NOT NULL DEFAULT FALSE,
			comments TEXT NOT NULL DEFAULT '',
			accounting_notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_departure ON flights(departure_time)`,
		`CREATE TABLE IF NOT EXISTS import_runs (
			id UUID PRIMARY KEY,
			file_name TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			stats JSONB NOT NULL DEFAULT '{}',
			missing JSONB NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at)`,
	}
}
