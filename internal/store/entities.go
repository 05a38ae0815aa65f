package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/flightlog/internal/core"
)

const (
	pilotColumns        = `id, last_name, first_name, club, nickname, comments, medical_validity, check_medical_validity`
	planeColumns        = `id, registration, club, num_seats, type, category, callsign, comments`
	launchMethodColumns = `id, name, short_name, log_string, keyboard_shortcut, type, towplane_registration, person_required, comments`
)

func scanPilot(row rowScanner) (core.Pilot, error) {
	var p core.Pilot
	err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.Club, &p.Nickname, &p.Comments,
		dbTime{&p.MedicalValidity}, &p.CheckMedicalValidity)
	return p, err
}

func scanPlane(row rowScanner) (core.Airplane, error) {
	var a core.Airplane
	err := row.Scan(&a.ID, &a.Registration, &a.Club, &a.NumSeats, &a.Type, &a.Category, &a.Callsign, &a.Comments)
	return a, err
}

func scanLaunchMethod(row rowScanner) (core.LaunchMethod, error) {
	var l core.LaunchMethod
	var typ string
	err := row.Scan(&l.ID, &l.Name, &l.ShortName, &l.LogString, &l.KeyboardShortcut,
		&typ, &l.TowplaneRegistration, &l.PersonRequired, &l.Comments)
	l.Type = core.LaunchType(typ)
	return l, err
}

// unique runs a query expected to match exactly one row. It returns
// core.ErrNotFound for no match and core.ErrMultipleResults for several.
func unique[T any](ctx context.Context, q queries, scan func(rowScanner) (T, error), query string, args ...any) (T, error) {
	var zero T
	rows, err := q.query(ctx, query+` LIMIT 2`, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	var found []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return zero, err
		}
		found = append(found, v)
	}
	if err := rows.Err(); err != nil {
		return zero, q.d.wrap(err)
	}

	switch len(found) {
	case 0:
		return zero, core.ErrNotFound
	case 1:
		return found[0], nil
	}
	return zero, core.ErrMultipleResults
}

// byID loads one row by primary key.
func byID[T any](ctx context.Context, q queries, scan func(rowScanner) (T, error), table, columns string, id int64) (T, error) {
	v, err := scan(q.queryRow(ctx, `SELECT `+columns+` FROM `+table+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("get %s %d: %w", table, id, q.d.wrap(err))
	}
	return v, nil
}

// FindPilotByName returns the only person with the given names.
func (q queries) FindPilotByName(ctx context.Context, lastName, firstName string) (core.Pilot, error) {
	return unique(ctx, q, scanPilot,
		`SELECT `+pilotColumns+` FROM people WHERE last_name = ? AND first_name = ? ORDER BY id`,
		lastName, firstName)
}

// FindPlaneByRegistration returns the only plane with the registration.
func (q queries) FindPlaneByRegistration(ctx context.Context, registration string) (core.Airplane, error) {
	return unique(ctx, q, scanPlane,
		`SELECT `+planeColumns+` FROM planes WHERE registration = ? ORDER BY id`, registration)
}

// FindLaunchMethodByNameOrShortName returns the only launch method whose
// name or short name equals name.
func (q queries) FindLaunchMethodByNameOrShortName(ctx context.Context, name string) (core.LaunchMethod, error) {
	return unique(ctx, q, scanLaunchMethod,
		`SELECT `+launchMethodColumns+` FROM launch_methods WHERE name = ? OR short_name = ? ORDER BY id`,
		name, name)
}

// FindLaunchMethodByTowplane returns the only airtow launch method bound to
// the tow-plane registration.
func (q queries) FindLaunchMethodByTowplane(ctx context.Context, registration string) (core.LaunchMethod, error) {
	return unique(ctx, q, scanLaunchMethod,
		`SELECT `+launchMethodColumns+` FROM launch_methods WHERE type = ? AND towplane_registration = ? ORDER BY id`,
		string(core.LaunchAirtow), registration)
}

func (q queries) GetPilot(ctx context.Context, id int64) (core.Pilot, error) {
	return byID(ctx, q, scanPilot, "people", pilotColumns, id)
}

func (q queries) GetPlane(ctx context.Context, id int64) (core.Airplane, error) {
	return byID(ctx, q, scanPlane, "planes", planeColumns, id)
}

func (q queries) GetLaunchMethod(ctx context.Context, id int64) (core.LaunchMethod, error) {
	return byID(ctx, q, scanLaunchMethod, "launch_methods", launchMethodColumns, id)
}

// CreatePilot inserts p and sets its id.
func (q queries) CreatePilot(ctx context.Context, p *core.Pilot) error {
	err := q.queryRow(ctx, `INSERT INTO people (last_name, first_name, club, nickname, comments, medical_validity, check_medical_validity)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.LastName, p.FirstName, p.Club, p.Nickname, p.Comments, q.d.bindTime(p.MedicalValidity), p.CheckMedicalValidity,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create pilot %q: %w", p.String(), q.d.wrap(err))
	}
	return nil
}

// CreatePlane inserts a and sets its id.
func (q queries) CreatePlane(ctx context.Context, a *core.Airplane) error {
	err := q.queryRow(ctx, `INSERT INTO planes (registration, club, num_seats, type, category, callsign, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		a.Registration, a.Club, a.NumSeats, a.Type, a.Category, a.Callsign, a.Comments,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create plane %q: %w", a.Registration, q.d.wrap(err))
	}
	return nil
}

// CreateLaunchMethod inserts l and sets its id.
func (q queries) CreateLaunchMethod(ctx context.Context, l *core.LaunchMethod) error {
	err := q.queryRow(ctx, `INSERT INTO launch_methods (name, short_name, log_string, keyboard_shortcut, type, towplane_registration, person_required, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		l.Name, l.ShortName, l.LogString, l.KeyboardShortcut, string(l.Type), l.TowplaneRegistration, l.PersonRequired, l.Comments,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create launch method %q: %w", l.Name, q.d.wrap(err))
	}
	return nil
}
