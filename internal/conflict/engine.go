// Package conflict decides what happens to each imported flight: whether it
// is complete enough to import, whether it duplicates or contradicts a stored
// flight, and how a contradiction is resolved.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/logging"
)

// ErrAborted is returned when the operator aborts the import.
var ErrAborted = errors.New("import aborted by operator")

// DefaultQuestion is shown before the operator's options.
const DefaultQuestion = "How do you want to proceed?\n"

// Store is the part of the logbook the engine reads and mutates.
type Store interface {
	// FindSimilar returns stored local flights with id > excludeID that
	// overlap f in time and share its pilot, copilot or plane.
	FindSimilar(ctx context.Context, f core.Flight, excludeID int64) ([]core.Flight, error)

	// InsertOrReplace stores f under f.ID, or under a new id written back to
	// f when f.ID is 0.
	InsertOrReplace(ctx context.Context, f *core.Flight) error

	// FlightExists reports whether a flight with id is stored.
	FlightExists(ctx context.Context, id int64) (bool, error)

	// Delete removes flights and returns how many rows existed.
	Delete(ctx context.Context, ids ...int64) (int, error)

	// Hydrate loads the participants of a stored flight for display.
	Hydrate(ctx context.Context, f core.Flight) (*core.Record, error)
}

// Outcome is what happened to one candidate.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
	OutcomeSkipped
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Counters are the running totals of one engine.
//
// Inserted counts candidates stored as a new flight: without an id, under an
// input id that is not stored, or under the id of a conflict they replaced.
// Updated counts candidates whose input id named a stored flight that was
// overwritten.
type Counters struct {
	Inserted   int
	Updated    int
	Deleted    int
	Skipped    int
	Duplicates int
}

// Config configures an Engine.
type Config struct {
	Mode Mode

	// Disabled warnings never make a candidate invalid.
	Disabled WarningSet

	// Prompter answers Interactive decisions. Required in Interactive mode.
	Prompter Prompter

	// Out receives candidate and conflict listings in Interactive mode.
	// nil discards them.
	Out io.Writer
}

// Engine resolves candidates one at a time against a Store. Candidates must
// be handled in input order since each one changes what later ones conflict
// with. An Engine is not safe for concurrent use.
type Engine struct {
	store    Store
	mode     Mode
	enabled  WarningSet
	prompter Prompter
	out      io.Writer

	counters Counters
}

// NewEngine creates an engine over store.
func NewEngine(store Store, cfg Config) (*Engine, error) {
	switch cfg.Mode {
	case Interactive:
		if cfg.Prompter == nil {
			return nil, errors.New("interactive mode requires a prompter")
		}
	case IgnoreAllConflicts, RejectOnConflict:
	default:
		return nil, fmt.Errorf("unknown conflict mode %v", cfg.Mode)
	}

	enabled := AllEnabled()
	for w := range cfg.Disabled {
		delete(enabled, w)
	}

	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	return &Engine{
		store:    store,
		mode:     cfg.Mode,
		enabled:  enabled,
		prompter: cfg.Prompter,
		out:      out,
	}, nil
}

// Counters returns the totals so far.
func (e *Engine) Counters() Counters {
	return e.counters
}

// Enabled returns the warnings that make a candidate invalid.
func (e *Engine) Enabled() WarningSet {
	return e.enabled
}

// Handle checks rec's flight, resolves conflicts according to the mode and
// stores the flight unless it was skipped. rec.Flight.ID holds the stored id
// afterwards. ErrAborted ends the run.
func (e *Engine) Handle(ctx context.Context, rec *core.Record) (Outcome, error) {
	log := logging.WithFields(ctx, "line", rec.Line, "flight", rec.Flight.String())

	if warnings := Check(rec.Flight).Intersect(e.enabled); len(warnings) > 0 {
		log.Debug("candidate has warnings", "warnings", warnings.Messages())

		switch e.mode {
		case Interactive:
			fmt.Fprintf(e.out, "\nCandidate:\n  %s\nhas warnings:\n -> %s\n",
				rec, strings.Join(warnings.Messages(), "\n -> "))
			action, err := e.ask(ctx, ActionAbort, ActionSkip, ActionIgnore)
			if err != nil {
				return 0, err
			}
			switch action {
			case ActionAbort:
				return 0, ErrAborted
			case ActionSkip:
				return e.skip(ctx, rec, OutcomeSkipped)
			}
		case RejectOnConflict:
			return e.skip(ctx, rec, OutcomeSkipped)
		}
	}

	var tookOver bool
	conflicts, err := e.store.FindSimilar(ctx, rec.Flight, rec.Flight.ID)
	if err != nil {
		return 0, fmt.Errorf("find similar flights: %w", err)
	}

	if len(conflicts) > 0 {
		for _, other := range conflicts {
			if IsDuplicate(rec.Flight, other) {
				log.Debug("candidate duplicates stored flight", "stored_id", other.ID)
				return e.skip(ctx, rec, OutcomeDuplicate)
			}
		}

		log.Debug("candidate has conflicts", "count", len(conflicts))

		switch e.mode {
		case Interactive:
			if err := e.showConflicts(ctx, rec, conflicts); err != nil {
				return 0, err
			}
			action, err := e.ask(ctx, ActionAbort, ActionReplace, ActionSkip, ActionIgnore)
			if err != nil {
				return 0, err
			}
			switch action {
			case ActionAbort:
				return 0, ErrAborted
			case ActionSkip:
				return e.skip(ctx, rec, OutcomeSkipped)
			case ActionReplace:
				if tookOver, err = e.replace(ctx, rec, conflicts); err != nil {
					return 0, err
				}
			}
		case RejectOnConflict:
			return e.skip(ctx, rec, OutcomeSkipped)
		}
	}

	outcome := OutcomeInserted
	if rec.Flight.ID != 0 && !tookOver {
		exists, err := e.store.FlightExists(ctx, rec.Flight.ID)
		if err != nil {
			return 0, fmt.Errorf("check stored flight: %w", err)
		}
		if exists {
			outcome = OutcomeUpdated
		}
	}
	if err := e.store.InsertOrReplace(ctx, &rec.Flight); err != nil {
		return 0, fmt.Errorf("store flight: %w", err)
	}

	if outcome == OutcomeInserted {
		e.counters.Inserted++
	} else {
		e.counters.Updated++
	}
	log.Debug("candidate stored", "outcome", outcome.String(), "id", rec.Flight.ID)
	return outcome, nil
}

// skip drops the candidate and deletes its stored version if it has one.
func (e *Engine) skip(ctx context.Context, rec *core.Record, outcome Outcome) (Outcome, error) {
	if id := rec.Flight.ID; id != 0 {
		n, err := e.store.Delete(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("delete skipped flight %d: %w", id, err)
		}
		e.counters.Deleted += n
	}

	if outcome == OutcomeDuplicate {
		e.counters.Duplicates++
	} else {
		e.counters.Skipped++
	}
	return outcome, nil
}

// replace deletes the conflicts. A candidate without id takes over the id of
// the first conflict instead of deleting it; tookOver reports that.
func (e *Engine) replace(ctx context.Context, rec *core.Record, conflicts []core.Flight) (tookOver bool, err error) {
	rest := conflicts
	if rec.Flight.ID == 0 {
		rec.Flight.ID = conflicts[0].ID
		rest = conflicts[1:]
		tookOver = true
	}
	if len(rest) == 0 {
		return tookOver, nil
	}

	ids := make([]int64, len(rest))
	for i, f := range rest {
		ids[i] = f.ID
	}
	n, err := e.store.Delete(ctx, ids...)
	if err != nil {
		return tookOver, fmt.Errorf("delete conflicting flights: %w", err)
	}
	e.counters.Deleted += n
	return tookOver, nil
}

func (e *Engine) showConflicts(ctx context.Context, rec *core.Record, conflicts []core.Flight) error {
	lines := make([]string, len(conflicts))
	for i, f := range conflicts {
		other, err := e.store.Hydrate(ctx, f)
		if err != nil {
			return fmt.Errorf("load conflicting flight %d: %w", f.ID, err)
		}
		lines[i] = other.String()
	}
	fmt.Fprintf(e.out, "\nCandidate:\n  %s\nhas conflicts:\n  %s\n", rec, strings.Join(lines, "\n  "))
	return nil
}

func (e *Engine) ask(ctx context.Context, choices ...Action) (Action, error) {
	action, err := e.prompter.Ask(ctx, DefaultQuestion, choices)
	if err != nil {
		return 0, fmt.Errorf("operator prompt: %w", err)
	}
	return action, nil
}

// IsDuplicate reports whether f repeats other exactly: same plane, pilot,
// copilot, mode, type and launch method, the same departure unless inbound
// and the same landing unless outbound.
func IsDuplicate(f, other core.Flight) bool {
	if f.PlaneID != other.PlaneID ||
		f.PilotID != other.PilotID ||
		f.CopilotID != other.CopilotID ||
		f.Mode != other.Mode ||
		f.Type != other.Type ||
		f.LaunchMethodID != other.LaunchMethodID {
		return false
	}

	if f.Mode != core.ModeInbound &&
		(!f.DepartureTime.Equal(other.DepartureTime) || f.DepartureLocation != other.DepartureLocation) {
		return false
	}

	if f.Mode != core.ModeOutbound &&
		(!f.LandingTime.Equal(other.LandingTime) || f.LandingLocation != other.LandingLocation) {
		return false
	}

	return true
}
