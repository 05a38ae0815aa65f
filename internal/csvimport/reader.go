// Package csvimport reads logbook CSV exports into records.
//
// A file is decoded to UTF-8, its header is resolved against a registered
// format, and every data row is assembled into a core.Record. Rows that
// fail to assemble are collected as RowErrors and never abort the file.
// Towflights logged on their own line are merged into their glider flight
// afterwards.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/logging"
)

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// Options configures one read.
type Options struct {
	Format core.Format

	// Delimiter overrides the format's delimiter. 0 means the format's, or ','.
	Delimiter rune

	Encoding   string
	DateFormat string
	TimeFormat string

	// Location the times are written in. nil means UTC.
	Location *time.Location

	MergeTowflights bool
}

// RowError is a data row that could not be assembled.
type RowError struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Row    []string `json:"row,omitempty"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Result is the outcome of reading one file.
type Result struct {
	Header      []string
	Records     []*core.Record
	RowErrors   []RowError
	MergeErrors []MergeError

	// Rows counts non-empty data rows.
	Rows int

	// Merged counts towflight lines folded into their glider flight.
	Merged int
}

// Read parses r according to opts.
//
// Only file level problems are returned as errors: an unknown encoding or
// date format, an empty file, an unreadable header, or cancellation.
func Read(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)

	parser, err := core.NewDateTimeParser(opts.DateFormat, opts.TimeFormat, opts.Location)
	if err != nil {
		return nil, err
	}

	decoded, err := core.DecodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = delimiter(opts)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	idx := MakeHeaderIndex(header, opts.Format)
	if missing := idx.Missing(); len(missing) > 0 {
		log.Warn("header lacks mandatory fields", "format", opts.Format.Key, "missing", missing)
	}

	res := &Result{Header: header}
	asm := &assembler{format: opts.Format, parser: parser}

	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("operation cancelled: %w", err)
			}
		}

		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("invalid csv: %w", err)
			}
			res.Rows++
			res.addRowError(ctx, RowError{Line: pe.StartLine, Reason: "invalid csv: " + pe.Err.Error(), Row: cells})
			continue
		}
		line, _ := cr.FieldPos(0)

		row := Row{Line: line, Cells: cells, index: idx}
		if row.Empty() {
			continue
		}
		res.Rows++

		rec, err := asm.assemble(row)
		if err != nil {
			res.addRowError(ctx, RowError{Line: line, Reason: err.Error(), Row: cells})
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if s, ok := decoded.(interface{ Replaced() int }); ok && s.Replaced() > 0 {
		log.Warn("invalid UTF-8 replaced with '?'; check the encoding setting", "bytes", s.Replaced(), "encoding", opts.Encoding)
	}
	if len(res.RowErrors) > 0 {
		log.Warn("rows skipped", "errors", len(res.RowErrors), "rows", res.Rows)
	}

	if opts.MergeTowflights {
		before := len(res.Records)
		res.Records, res.MergeErrors = MergeTowflights(res.Records)
		res.Merged = before - len(res.Records)
		for _, me := range res.MergeErrors {
			log.Error("towflight not merged", "line", me.Line, "flight_id", me.FlightID, "reason", me.Reason)
		}
		log.Info("merged towflights", "count", res.Merged)
	} else {
		DetachTowflights(res.Records)
	}

	return res, nil
}

func (res *Result) addRowError(ctx context.Context, re RowError) {
	res.RowErrors = append(res.RowErrors, re)
	logging.FromContext(ctx).Error("while processing line", "line", re.Line, "error", re.Reason)
}

func delimiter(opts Options) rune {
	switch {
	case opts.Delimiter != 0:
		return opts.Delimiter
	case opts.Format.Delimiter != 0:
		return opts.Format.Delimiter
	default:
		return ','
	}
}
