// Package core holds the logbook domain model and the pieces of the import
// pipeline that do not depend on storage or transport.
//
// It can be used by the importer, the HTTP API, the CLI and tests without
// modification.
//
// # Domain
//
// A [Flight] is one logbook row. Its participants (pilot, copilot, plane,
// tow-plane, tow-pilot and launch method) are referenced by id. While a file
// is imported, each flight travels inside a [Record] together with the
// participants named in the input. [Record.UpdateFlight] copies the resolved
// ids into the flight; pilot, plane and the launch method of non-inbound
// flights are required and produce a [RecordError] when unresolved.
//
// # Format Registry
//
// CSV dialects are registered at init time using [Register]. Each [Format]
// maps normalized header cells to canonical fields and translates flight
// type and mode values:
//
//	core.Register(core.Format{
//	    Key:     "startkladde-de",
//	    Label:   "Startkladde (Deutsch)",
//	    Columns: map[string]schema.Field{"pilot nachname": schema.PilotLastName},
//	})
//
// Package formats registers the built-in formats and loads more from YAML.
//
// # Decoding
//
// [DecodeReader] turns the input into UTF-8 while it is read: the BOM is
// skipped, invalid UTF-8 is replaced, and other encodings are decoded with
// golang.org/x/text. Dates and times are configured in strftime notation and
// parsed by [DateTimeParser].
//
// # Import Runs
//
// Every import produces an [ImportRun] with counters ([ImportStats]) and the
// participants that could not be found ([MissingReport]). [ImportLimiter]
// keeps imports from running concurrently against the same logbook.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections, locks)
//   - VAL001-VAL006: Validation errors (dates, numbers, missing columns, unknown participants)
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - IMP001-IMP005: Import errors (aborted, busy, unknown format, operator dialog)
//   - REQ001-REQ003: Request errors (cancelled, timeout)
package core
