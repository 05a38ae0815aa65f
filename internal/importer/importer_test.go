package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flightlog/internal/config"
	"github.com/JonMunkholm/flightlog/internal/conflict"
	"github.com/JonMunkholm/flightlog/internal/core"
	_ "github.com/JonMunkholm/flightlog/internal/core/formats"
	"github.com/JonMunkholm/flightlog/internal/resolve"
	"github.com/JonMunkholm/flightlog/internal/store"
)

// =============================================================================
// Helpers
// =============================================================================

var header = []string{
	"flight_id", "date", "plane_registration", "pilot_first_name", "pilot_last_name",
	"copilot_first_name", "copilot_last_name", "flight_type", "num_landings", "flight_mode",
	"departure_time", "landing_time", "launch_method", "towplane_registration",
	"departure_location", "landing_location", "comments", "accounting_notes",
}

type row map[string]string

// file renders a comma separated canonical file.
func file(rows ...row) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, r := range rows {
		cells := make([]string, len(header))
		for i, h := range header {
			cells[i] = r[h]
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

// flightRow is a local winch flight of John Doe in D-1234 at Home.
func flightRow(dep, land string) row {
	return row{
		"date": "2024-05-01", "plane_registration": "D-1234",
		"pilot_first_name": "John", "pilot_last_name": "Doe",
		"flight_type": "normal", "num_landings": "1", "flight_mode": "local",
		"departure_time": dep, "landing_time": land, "launch_method": "W",
		"departure_location": "Home", "landing_location": "Home",
	}
}

func with(r row, kv ...string) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

type env struct {
	db  *store.DB
	svc *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	for _, p := range []*core.Pilot{
		{LastName: "Doe", FirstName: "John", Club: "LSV"},
		{LastName: "Muster", FirstName: "Max"},
		{LastName: "Tow", FirstName: "Tom"},
	} {
		require.NoError(t, db.CreatePilot(ctx, p))
	}
	for _, a := range []*core.Airplane{
		{Registration: "D-1234", Club: "LSV"},
		{Registration: "D-5678"},
		{Registration: "D-EFGH"},
	} {
		require.NoError(t, db.CreatePlane(ctx, a))
	}
	for _, l := range []*core.LaunchMethod{
		{Name: "Winch", ShortName: "W", Type: core.LaunchWinch},
		{Name: "Tow D-EFGH", ShortName: "T", Type: core.LaunchAirtow, TowplaneRegistration: "D-EFGH"},
	} {
		require.NoError(t, db.CreateLaunchMethod(ctx, l))
	}

	return &env{db: db, svc: NewService(db, core.NewImportLimiter(1, time.Second))}
}

func options(mode conflict.Mode) Options {
	return Options{
		FileName:        "flights.csv",
		Format:          "startkladde-en",
		Encoding:        "utf-8",
		DateFormat:      "%Y-%m-%d",
		TimeFormat:      "%H:%M",
		MergeTowflights: true,
		Mode:            mode,
	}
}

func (e *env) run(t *testing.T, data string, opts Options) *Report {
	t.Helper()
	rep, err := e.svc.Run(context.Background(), strings.NewReader(data), opts)
	require.NoError(t, err)
	return rep
}

func (e *env) flights(t *testing.T) []core.Flight {
	t.Helper()
	flights, err := e.db.ListFlights(context.Background())
	require.NoError(t, err)
	return flights
}

// scripted answers prompts from a fixed list.
type scripted struct {
	answers []conflict.Action
}

func (p *scripted) Ask(_ context.Context, _ string, _ []conflict.Action) (conflict.Action, error) {
	if len(p.answers) == 0 {
		return 0, errors.New("no valid answer before end of input")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

// =============================================================================
// Run
// =============================================================================

func TestRun_Imports(t *testing.T) {
	e := newEnv(t)
	rep := e.run(t, file(flightRow("10:00", "11:00"), flightRow("12:00", "13:00")), options(conflict.RejectOnConflict))

	assert.Equal(t, core.RunCommitted, rep.Run.Status)
	assert.Equal(t, core.ImportStats{Rows: 2, Inserted: 2}, rep.Run.Stats)
	assert.True(t, rep.Run.Missing.Empty())

	flights := e.flights(t)
	require.Len(t, flights, 2)
	assert.True(t, flights[0].Departed)
	assert.True(t, flights[0].Landed)
	assert.NotZero(t, flights[0].LaunchMethodID)

	runs, err := e.db.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.Run.ID, runs[0].ID)
	assert.Equal(t, "flights.csv", runs[0].FileName)
	assert.Equal(t, "reject", runs[0].Mode)
	assert.Equal(t, rep.Run.Stats, runs[0].Stats)
}

func TestRun_ReimportIsIdempotent(t *testing.T) {
	for _, mode := range []conflict.Mode{conflict.RejectOnConflict, conflict.IgnoreAllConflicts} {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEnv(t)
			data := file(flightRow("10:00", "11:00"), flightRow("12:00", "13:00"))

			e.run(t, data, options(mode))
			rep := e.run(t, data, options(mode))

			assert.Equal(t, 2, rep.Run.Stats.Duplicates)
			assert.Zero(t, rep.Run.Stats.Inserted)
			assert.Len(t, e.flights(t), 2)
		})
	}
}

func TestRun_Conflicts(t *testing.T) {
	stored := file(flightRow("10:00", "11:00"))
	// Same pilot and plane, overlapping, different landing.
	candidate := file(flightRow("10:30", "11:30"))

	t.Run("reject skips", func(t *testing.T) {
		e := newEnv(t)
		e.run(t, stored, options(conflict.RejectOnConflict))
		rep := e.run(t, candidate, options(conflict.RejectOnConflict))

		assert.Equal(t, core.ImportStats{Rows: 1, Skipped: 1}, rep.Run.Stats)
		assert.Len(t, e.flights(t), 1)
	})

	t.Run("ignore imports both", func(t *testing.T) {
		e := newEnv(t)
		e.run(t, stored, options(conflict.IgnoreAllConflicts))
		rep := e.run(t, candidate, options(conflict.IgnoreAllConflicts))

		assert.Equal(t, 1, rep.Run.Stats.Inserted)
		assert.Len(t, e.flights(t), 2)
	})

	t.Run("interactive replace takes over id", func(t *testing.T) {
		e := newEnv(t)
		e.run(t, stored, options(conflict.RejectOnConflict))
		before := e.flights(t)

		opts := options(conflict.Interactive)
		opts.Prompter = &scripted{answers: []conflict.Action{conflict.ActionReplace}}
		var out bytes.Buffer
		opts.Out = &out
		rep := e.run(t, candidate, opts)

		assert.Equal(t, 1, rep.Run.Stats.Inserted)
		assert.Zero(t, rep.Run.Stats.Updated)
		after := e.flights(t)
		require.Len(t, after, 1)
		assert.Equal(t, before[0].ID, after[0].ID)
		assert.Equal(t, "2024-05-01 11:30", core.FormatTime(after[0].LandingTime))
		assert.Contains(t, out.String(), "has conflicts:")
		assert.Contains(t, out.String(), "Doe,John")
	})
}

func TestRun_AbortRollsBack(t *testing.T) {
	e := newEnv(t)
	opts := options(conflict.Interactive)
	opts.Prompter = &scripted{answers: []conflict.Action{conflict.ActionAbort}}

	// The second flight has no landing location and triggers the dialog.
	data := file(flightRow("10:00", "11:00"), with(flightRow("12:00", "13:00"), "landing_location", ""))
	rep, err := e.svc.Run(context.Background(), strings.NewReader(data), opts)

	require.ErrorIs(t, err, conflict.ErrAborted)
	require.NotNil(t, rep)
	assert.Equal(t, core.RunAborted, rep.Run.Status)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)
	assert.Empty(t, e.flights(t))

	runs, err := e.db.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunAborted, runs[0].Status)
	assert.Contains(t, runs[0].Error, "import aborted by operator")
}

func TestRun_PromptFailureFailsRun(t *testing.T) {
	e := newEnv(t)
	opts := options(conflict.Interactive)
	opts.Prompter = &scripted{}

	data := file(with(flightRow("12:00", "13:00"), "landing_location", ""))
	rep, err := e.svc.Run(context.Background(), strings.NewReader(data), opts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid answer")
	assert.Equal(t, core.RunFailed, rep.Run.Status)
	assert.Empty(t, e.flights(t))
}

func TestRun_DryRun(t *testing.T) {
	e := newEnv(t)
	opts := options(conflict.RejectOnConflict)
	opts.DryRun = true

	rep := e.run(t, file(flightRow("10:00", "11:00")), opts)

	assert.Equal(t, core.RunDryRun, rep.Run.Status)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)
	assert.Empty(t, e.flights(t))
}

func TestRun_UnresolvedParticipants(t *testing.T) {
	e := newEnv(t)
	data := file(
		with(flightRow("10:00", "11:00"), "pilot_first_name", "Jim"),
		with(flightRow("12:00", "13:00"), "plane_registration", "D-0000"),
		with(flightRow("14:00", "15:00"), "copilot_first_name", "Eve", "copilot_last_name", "Unknown"),
	)
	rep := e.run(t, data, options(conflict.IgnoreAllConflicts))

	assert.Equal(t, 2, rep.Run.Stats.RecordErrors)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)
	require.Len(t, rep.Rejected, 2)
	assert.Equal(t, "Unknown pilot: 'Doe, Jim'", rep.Rejected[0].Reason)
	assert.Equal(t, 2, rep.Rejected[0].Line)
	assert.Equal(t, "Unknown plane: 'D-0000'", rep.Rejected[1].Reason)

	assert.Equal(t, core.MissingReport{
		Pilots: []string{"Doe, Jim", "Unknown, Eve"},
		Planes: []string{"D-0000"},
	}, rep.Run.Missing)
}

func TestRun_Aliases(t *testing.T) {
	e := newEnv(t)
	aliases, err := resolve.ParseAliases(strings.NewReader("[pilots]\nDoe, Jon: Doe, John\n[planes]\nD1234: D-1234\n"))
	require.NoError(t, err)

	opts := options(conflict.RejectOnConflict)
	opts.Aliases = aliases
	rep := e.run(t, file(with(flightRow("10:00", "11:00"), "pilot_first_name", "Jon", "plane_registration", "D1234")), opts)

	assert.Equal(t, 1, rep.Run.Stats.Inserted)
	assert.True(t, rep.Run.Missing.Empty())
}

func TestRun_ClubFilter(t *testing.T) {
	e := newEnv(t)
	opts := options(conflict.RejectOnConflict)
	opts.Club = "lsv"

	data := file(
		flightRow("10:00", "11:00"),
		with(flightRow("12:00", "13:00"), "pilot_first_name", "Max", "pilot_last_name", "Muster", "plane_registration", "D-5678"),
	)
	rep := e.run(t, data, opts)

	assert.Equal(t, 1, rep.Run.Stats.ClubSkipped)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)
}

func TestRun_MergesTowflight(t *testing.T) {
	e := newEnv(t)
	glider := with(flightRow("10:00", "10:40"), "flight_id", "17", "launch_method", "F-Schlepp", "towplane_registration", "")
	tow := with(flightRow("10:00", "10:12"), "flight_id", "17",
		"plane_registration", "D-EFGH", "pilot_first_name", "Tom", "pilot_last_name", "Tow",
		"flight_type", "towflight", "launch_method", "")

	rep := e.run(t, file(glider, tow), options(conflict.RejectOnConflict))

	assert.Equal(t, 1, rep.Run.Stats.Merged)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)
	assert.True(t, rep.Run.Missing.Empty(), "missing: %+v", rep.Run.Missing)

	flights := e.flights(t)
	require.Len(t, flights, 1)
	f := flights[0]
	assert.Equal(t, int64(17), f.ID)
	assert.NotZero(t, f.TowplaneID)
	assert.NotZero(t, f.TowpilotID)
	assert.Equal(t, "2024-05-01 10:12", core.FormatTime(f.TowflightLandingTime))
	assert.True(t, f.TowflightLanded)

	lm, err := e.db.GetLaunchMethod(context.Background(), f.LaunchMethodID)
	require.NoError(t, err)
	assert.Equal(t, "Tow D-EFGH", lm.Name)
}

func TestRun_UnmergedTowflightKeepsGlider(t *testing.T) {
	tests := []struct {
		name        string
		merge       bool
		towLocation string
		mergeErrors int
	}{
		{"departure location mismatch", true, "EDDF", 1},
		{"merging disabled", false, "EDDH", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			glider := with(flightRow("10:00", "10:40"), "flight_id", "17",
				"departure_location", "EDDH", "landing_location", "EDDH")
			tow := with(flightRow("10:00", "10:12"), "flight_id", "17",
				"plane_registration", "D-EFGH", "pilot_first_name", "Tom", "pilot_last_name", "Tow",
				"flight_type", "towflight", "departure_location", tt.towLocation, "landing_location", "EDDH")

			opts := options(conflict.RejectOnConflict)
			opts.MergeTowflights = tt.merge
			rep := e.run(t, file(glider, tow), opts)

			assert.Len(t, rep.MergeErrors, tt.mergeErrors)
			assert.Equal(t, 2, rep.Run.Stats.Inserted)
			assert.Zero(t, rep.Run.Stats.Updated)

			flights := e.flights(t)
			require.Len(t, flights, 2)
			assert.Equal(t, int64(17), flights[0].ID)
			assert.Equal(t, core.TypeNormal, flights[0].Type)
			assert.Equal(t, "EDDH", flights[0].DepartureLocation)
			assert.Equal(t, "2024-05-01 10:40", core.FormatTime(flights[0].LandingTime))
			assert.Equal(t, core.TypeTowflight, flights[1].Type)
			assert.Equal(t, tt.towLocation, flights[1].DepartureLocation)

			plane, err := e.db.GetPlane(context.Background(), flights[0].PlaneID)
			require.NoError(t, err)
			assert.Equal(t, "D-1234", plane.Registration)
		})
	}
}

func TestRun_RowErrorsAndFailedRows(t *testing.T) {
	e := newEnv(t)
	data := file(
		flightRow("10:00", "11:00"),
		with(flightRow("12:00", "13:00"), "num_landings", "many"),
		with(flightRow("14:00", "15:00"), "pilot_first_name", "Jim"),
	)
	rep := e.run(t, data, options(conflict.RejectOnConflict))

	assert.Equal(t, 1, rep.Run.Stats.RowErrors)
	assert.Equal(t, 1, rep.Run.Stats.RecordErrors)
	assert.Equal(t, 1, rep.Run.Stats.Inserted)

	var out bytes.Buffer
	require.NoError(t, rep.WriteFailedRows(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Status,flight_id,date"))
	assert.Contains(t, lines[1], "line 3:")
	assert.Contains(t, lines[1], "invalid number")
	assert.Contains(t, lines[1], "many")
	assert.Contains(t, lines[2], "line 4: Unknown pilot")
}

func TestRun_FileErrors(t *testing.T) {
	e := newEnv(t)

	t.Run("unknown format", func(t *testing.T) {
		opts := options(conflict.RejectOnConflict)
		opts.Format = "nope"
		rep, err := e.svc.Run(context.Background(), strings.NewReader(file()), opts)
		require.ErrorIs(t, err, core.ErrUnknownFormat)
		assert.Nil(t, rep)
	})

	t.Run("empty file recorded as failed", func(t *testing.T) {
		rep, err := e.svc.Run(context.Background(), strings.NewReader(""), options(conflict.RejectOnConflict))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty file")
		assert.Equal(t, core.RunFailed, rep.Run.Status)

		runs, err := e.db.ListRuns(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, core.RunFailed, runs[0].Status)
	})

	t.Run("interactive without prompter", func(t *testing.T) {
		_, err := e.svc.Run(context.Background(), strings.NewReader(file(flightRow("10:00", "11:00"))), options(conflict.Interactive))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interactive mode requires a prompter")
	})
}

func TestRun_Busy(t *testing.T) {
	e := newEnv(t)
	e.svc = NewService(e.db, core.NewImportLimiter(1, 10*time.Millisecond))
	require.True(t, e.svc.Limiter().TryAcquire())
	defer e.svc.Limiter().Release()

	_, err := e.svc.Run(context.Background(), strings.NewReader(file()), options(conflict.RejectOnConflict))
	assert.ErrorIs(t, err, core.ErrImportBusy)
}

// =============================================================================
// Options
// =============================================================================

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.ImportConfig{
		Format:           "startkladde-de",
		Delimiter:        ";",
		Encoding:         "windows-1252",
		DateFormat:       "%d.%m.%Y",
		TimeFormat:       "%H:%M",
		Timezone:         "Europe/Berlin",
		Mode:             "ignore",
		MergeTowflights:  true,
		DisabledWarnings: []string{"missing-landing-location"},
		Club:             "LSV",
	}

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ';', opts.Delimiter)
	assert.Equal(t, conflict.IgnoreAllConflicts, opts.Mode)
	assert.True(t, opts.Disabled.Has(conflict.MissingLandingLocation))
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
	assert.Equal(t, "LSV", opts.Club)
	assert.Nil(t, opts.Aliases)

	t.Run("errors", func(t *testing.T) {
		bad := []config.ImportConfig{
			{Mode: "sometimes"},
			{Mode: "reject", Delimiter: ";;"},
			{Mode: "reject", Timezone: "Mars/Olympus_Mons"},
			{Mode: "reject", DisabledWarnings: []string{"missing-everything"}},
			{Mode: "reject", AliasFile: "/does/not/exist.txt", Encoding: "utf-8"},
		}
		for _, c := range bad {
			_, err := OptionsFromConfig(c)
			assert.Error(t, err, "%+v", c)
		}
	})
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{",", ',', false},
		{";", ';', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"§", '§', false},
		{"ab", 0, true},
		{`"`, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
