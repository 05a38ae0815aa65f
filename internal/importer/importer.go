// Package importer runs a flight import: it reads a CSV file, resolves the
// participants of every record against the logbook and hands the records to
// the conflict engine, all inside one storage transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/flightlog/internal/conflict"
	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/csvimport"
	"github.com/JonMunkholm/flightlog/internal/logging"
	"github.com/JonMunkholm/flightlog/internal/resolve"
	"github.com/JonMunkholm/flightlog/internal/store"
)

// Report is the outcome of one run.
type Report struct {
	Run *core.ImportRun

	// Header is the input header, for writing failed rows.
	Header []string

	RowErrors   []csvimport.RowError
	MergeErrors []csvimport.MergeError

	// Rejected lists records that were read but not imported because a
	// critical participant is unknown.
	Rejected []csvimport.RowError
}

// Failed returns every input line that did not make it into the logbook.
// Rejected records carry no raw cells.
func (r *Report) Failed() []csvimport.RowError {
	failed := make([]csvimport.RowError, 0, len(r.RowErrors)+len(r.Rejected))
	failed = append(failed, r.RowErrors...)
	return append(failed, r.Rejected...)
}

// WriteFailedRows writes Failed as CSV.
func (r *Report) WriteFailedRows(w io.Writer) error {
	return csvimport.WriteFailedRows(w, r.Header, r.Failed())
}

// Service runs imports against a logbook database.
type Service struct {
	db      *store.DB
	limiter *core.ImportLimiter
}

// NewService creates a Service. A nil limiter lets runs proceed
// concurrently, which is only safe when the caller serializes them.
func NewService(db *store.DB, limiter *core.ImportLimiter) *Service {
	return &Service{db: db, limiter: limiter}
}

// Limiter returns the limiter the service serializes runs through.
func (s *Service) Limiter() *core.ImportLimiter {
	return s.limiter
}

// Run imports r. The returned report is non-nil whenever the run got far
// enough to have an id, including aborted and failed runs. Every run is
// recorded in the import_runs table.
func (s *Service) Run(ctx context.Context, r io.Reader, opts Options) (*Report, error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	format, err := core.GetFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	run := core.NewImportRun(opts.FileName, format.Key, opts.Mode.String())
	ctx = logging.WithRunID(ctx, run.ID.String())
	log := logging.WithFields(ctx, "file", opts.FileName, "format", format.Key, "mode", opts.Mode.String())
	log.Info("import started", "dry_run", opts.DryRun)

	report := &Report{Run: run}
	status, err := s.run(ctx, r, format, opts, report)
	if err != nil {
		run.Finish(status, err)
		log.Error("import failed", "status", run.Status, "error", err)
	} else {
		run.Finish(status, nil)
		log.Info("import finished",
			"status", run.Status,
			"inserted", run.Stats.Inserted,
			"updated", run.Stats.Updated,
			"deleted", run.Stats.Deleted,
			"skipped", run.Stats.Skipped,
			"duplicates", run.Stats.Duplicates,
			"duration", run.Duration(),
		)
	}

	// The audit entry must not inherit a cancelled run context.
	if recErr := s.db.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Warn("failed to record import run", "error", recErr)
	}

	return report, err
}

func (s *Service) run(ctx context.Context, r io.Reader, format core.Format, opts Options, report *Report) (core.RunStatus, error) {
	log := logging.FromContext(ctx)
	stats := &report.Run.Stats

	res, err := csvimport.Read(ctx, r, csvimport.Options{
		Format:          format,
		Delimiter:       opts.Delimiter,
		Encoding:        opts.Encoding,
		DateFormat:      opts.DateFormat,
		TimeFormat:      opts.TimeFormat,
		Location:        opts.Location,
		MergeTowflights: opts.MergeTowflights,
	})
	if err != nil {
		return core.RunFailed, err
	}

	report.Header = res.Header
	report.RowErrors = res.RowErrors
	report.MergeErrors = res.MergeErrors
	stats.Rows = res.Rows
	stats.RowErrors = len(res.RowErrors)
	stats.Merged = res.Merged
	stats.MergeErrors = len(res.MergeErrors)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.RunFailed, err
	}
	defer tx.Rollback()

	engine, err := conflict.NewEngine(tx, conflict.Config{
		Mode:     opts.Mode,
		Disabled: opts.Disabled,
		Prompter: opts.Prompter,
		Out:      opts.Out,
	})
	if err != nil {
		return core.RunFailed, err
	}
	resolver := resolve.NewResolver(tx, opts.Aliases)

	// Counters and the missing report are kept even when the run unwinds.
	defer func() {
		c := engine.Counters()
		stats.Inserted = c.Inserted
		stats.Updated = c.Updated
		stats.Deleted = c.Deleted
		stats.Skipped = c.Skipped
		stats.Duplicates = c.Duplicates
		report.Run.Missing = resolver.Missing()
	}()

	for i, rec := range res.Records {
		if i%csvimport.ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.RunRolledBack, fmt.Errorf("operation cancelled: %w", err)
			}
		}

		if err := resolver.Resolve(ctx, rec); err != nil {
			return core.RunFailed, fmt.Errorf("line %d: %w", rec.Line, err)
		}

		if opts.Club != "" && !rec.InClub(opts.Club) {
			stats.ClubSkipped++
			log.Debug("record not in club", "line", rec.Line, "club", opts.Club)
			continue
		}

		warnings, err := rec.UpdateFlight()
		if err != nil {
			var recErr *core.RecordError
			if !errors.As(err, &recErr) {
				return core.RunFailed, fmt.Errorf("line %d: %w", rec.Line, err)
			}
			stats.RecordErrors++
			report.Rejected = append(report.Rejected, csvimport.RowError{Line: rec.Line, Reason: err.Error()})
			log.Warn("record rejected", "line", rec.Line, "error", err)
			continue
		}
		for _, w := range warnings {
			log.Warn("record warning", "line", rec.Line, "warning", w)
		}

		outcome, err := engine.Handle(ctx, rec)
		if err != nil {
			if errors.Is(err, conflict.ErrAborted) {
				return core.RunAborted, err
			}
			return core.RunFailed, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		log.Debug("record handled", "line", rec.Line, "outcome", outcome.String(), "flight_id", rec.Flight.ID)
	}

	if missing := resolver.Missing(); !missing.Empty() {
		log.Warn("unresolved entities",
			"pilots", missing.Pilots,
			"planes", missing.Planes,
			"launch_methods", missing.LaunchMethods,
		)
	}

	if opts.DryRun {
		if err := tx.Rollback(); err != nil {
			return core.RunFailed, err
		}
		return core.RunDryRun, nil
	}
	if err := tx.Commit(); err != nil {
		return core.RunFailed, err
	}
	return core.RunCommitted, nil
}
