package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/flightlog/internal/core"
)

const flightColumns = `id, plane_id, pilot_id, copilot_id, towplane_id, towpilot_id, launch_method_id,
	type, mode, departure_time, landing_time, departure_location, landing_location, num_landings,
	towflight_mode, towflight_landing_time, towflight_landing_location,
	departed, landed, towflight_landed, comments, accounting_notes`

func scanFlight(row rowScanner) (core.Flight, error) {
	var f core.Flight
	var typ, mode, towMode string
	err := row.Scan(
		&f.ID, idScanner{&f.PlaneID}, idScanner{&f.PilotID}, idScanner{&f.CopilotID},
		idScanner{&f.TowplaneID}, idScanner{&f.TowpilotID}, idScanner{&f.LaunchMethodID},
		&typ, &mode, dbTime{&f.DepartureTime}, dbTime{&f.LandingTime},
		&f.DepartureLocation, &f.LandingLocation, &f.NumLandings,
		&towMode, dbTime{&f.TowflightLandingTime}, &f.TowflightLandingLocation,
		&f.Departed, &f.Landed, &f.TowflightLanded, &f.Comments, &f.AccountingNotes,
	)
	f.Type = core.FlightType(typ)
	f.Mode = core.FlightMode(mode)
	f.TowflightMode = core.FlightMode(towMode)
	return f, err
}

func (q queries) scanFlights(rows *sql.Rows) ([]core.Flight, error) {
	defer rows.Close()
	var flights []core.Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, q.d.wrap(rows.Err())
}

// FindSimilar returns the stored local flights with an id above excludeID
// whose time span overlaps f and which share f's pilot, copilot or plane.
// A flight without any time has no similar flights.
func (q queries) FindSimilar(ctx context.Context, f core.Flight, excludeID int64) ([]core.Flight, error) {
	start, end, ok := f.Span()
	if !ok {
		return nil, nil
	}

	// Stored flights with a missing bound take the other one, so the
	// window check works on the same span as core.Flight.Span.
	query := `SELECT ` + flightColumns + ` FROM flights
		WHERE mode = ?
		AND COALESCE(landing_time, departure_time) >= ?
		AND COALESCE(departure_time, landing_time) <= ?
		AND (pilot_id = ? OR copilot_id = ? OR plane_id = ?`
	args := []any{
		string(core.ModeLocal), q.d.bindTime(start), q.d.bindTime(end),
		nullID(f.PilotID), nullID(f.PilotID), nullID(f.PlaneID),
	}
	if f.CopilotID != 0 {
		query += ` OR pilot_id = ? OR copilot_id = ?`
		args = append(args, f.CopilotID, f.CopilotID)
	}
	query += `) AND id > ? ORDER BY id`
	args = append(args, excludeID)

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar flights: %w", err)
	}
	return q.scanFlights(rows)
}

// InsertOrReplace stores f. A flight with ID 0 is inserted and receives its
// new id; otherwise the row with f.ID is created or overwritten.
func (q queries) InsertOrReplace(ctx context.Context, f *core.Flight) error {
	f.Update()
	args := []any{
		nullID(f.PlaneID), nullID(f.PilotID), nullID(f.CopilotID),
		nullID(f.TowplaneID), nullID(f.TowpilotID), nullID(f.LaunchMethodID),
		string(f.Type), string(f.Mode), q.d.bindTime(f.DepartureTime), q.d.bindTime(f.LandingTime),
		f.DepartureLocation, f.LandingLocation, f.NumLandings,
		string(f.TowflightMode), q.d.bindTime(f.TowflightLandingTime), f.TowflightLandingLocation,
		f.Departed, f.Landed, f.TowflightLanded, f.Comments, f.AccountingNotes,
	}
	columns := `plane_id, pilot_id, copilot_id, towplane_id, towpilot_id, launch_method_id,
		type, mode, departure_time, landing_time, departure_location, landing_location, num_landings,
		towflight_mode, towflight_landing_time, towflight_landing_location,
		departed, landed, towflight_landed, comments, accounting_notes`
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	if f.ID == 0 {
		query := `INSERT INTO flights (` + columns + `) VALUES (` + placeholders + `) RETURNING id`
		if err := q.queryRow(ctx, query, args...).Scan(&f.ID); err != nil {
			return fmt.Errorf("insert flight: %w", q.d.wrap(err))
		}
		return nil
	}

	var set []string
	for _, c := range strings.Split(columns, ",") {
		c = strings.TrimSpace(c)
		set = append(set, c+" = excluded."+c)
	}
	query := `INSERT INTO flights (id, ` + columns + `) VALUES (?, ` + placeholders + `)
		ON CONFLICT (id) DO UPDATE SET ` + strings.Join(set, ", ")
	if _, err := q.exec(ctx, query, append([]any{f.ID}, args...)...); err != nil {
		return fmt.Errorf("replace flight %d: %w", f.ID, err)
	}
	if stmt := q.d.afterExplicitID(); stmt != "" {
		if _, err := q.exec(ctx, stmt); err != nil {
			return fmt.Errorf("advance flight id sequence: %w", err)
		}
	}
	return nil
}

// Delete removes the flights with the given ids and returns how many
// existed. Unknown ids are ignored.
func (q queries) Delete(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `DELETE FROM flights WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + `)`
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete flights: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete flights: %w", err)
	}
	return int(n), nil
}

// FlightExists reports whether a flight with id is stored.
func (q queries) FlightExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM flights WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check flight %d: %w", id, q.d.wrap(err))
	}
	return n > 0, nil
}

// GetFlight returns the flight with id.
func (q queries) GetFlight(ctx context.Context, id int64) (core.Flight, error) {
	f, err := scanFlight(q.queryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Flight{}, fmt.Errorf("flight %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Flight{}, fmt.Errorf("get flight %d: %w", id, q.d.wrap(err))
	}
	return f, nil
}

// ListFlights returns all flights ordered by id.
func (q queries) ListFlights(ctx context.Context) ([]core.Flight, error) {
	rows, err := q.query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return q.scanFlights(rows)
}

// CountFlights returns the number of stored flights.
func (q queries) CountFlights(ctx context.Context) (int, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM flights`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count flights: %w", q.d.wrap(err))
	}
	return n, nil
}

// Hydrate loads the participants of a stored flight for display. Participants
// whose rows no longer exist are left nil.
func (q queries) Hydrate(ctx context.Context, f core.Flight) (*core.Record, error) {
	rec := &core.Record{Flight: f}
	var err error

	load := func(id int64, get func(context.Context, int64) error) {
		if err != nil || id == 0 {
			return
		}
		if e := get(ctx, id); e != nil && !errors.Is(e, core.ErrNotFound) {
			err = e
		}
	}

	pilot := func(dst **core.Pilot) func(context.Context, int64) error {
		return func(ctx context.Context, id int64) error {
			p, err := q.GetPilot(ctx, id)
			if err == nil {
				*dst = &p
			}
			return err
		}
	}
	plane := func(dst **core.Airplane) func(context.Context, int64) error {
		return func(ctx context.Context, id int64) error {
			p, err := q.GetPlane(ctx, id)
			if err == nil {
				*dst = &p
			}
			return err
		}
	}

	load(f.PilotID, pilot(&rec.Pilot))
	load(f.CopilotID, pilot(&rec.Copilot))
	load(f.TowpilotID, pilot(&rec.Towpilot))
	load(f.PlaneID, plane(&rec.Plane))
	load(f.TowplaneID, plane(&rec.Towplane))
	load(f.LaunchMethodID, func(ctx context.Context, id int64) error {
		lm, err := q.GetLaunchMethod(ctx, id)
		if err == nil {
			rec.LaunchMethod = &lm
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate flight %d: %w", f.ID, err)
	}
	return rec, nil
}
