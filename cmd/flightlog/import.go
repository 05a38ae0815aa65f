package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/JonMunkholm/flightlog/internal/config"
	"github.com/JonMunkholm/flightlog/internal/conflict"
	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/core/formats"
	"github.com/JonMunkholm/flightlog/internal/importer"
	"github.com/JonMunkholm/flightlog/internal/store"
)

// importFlags are the command line overrides of config.ImportConfig.
type importFlags struct {
	mode             string
	format           string
	formatFile       string
	separator        string
	encoding         string
	dateFormat       string
	timeFormat       string
	timezone         string
	aliasFile        string
	club             string
	disabledWarnings []string
	noMerge          bool
	failedRows       string
	dryRun           bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import flights from CSV files",
		Long: `Import reads each file, checks every flight against the logbook and
resolves conflicts with the selected mode. Each file is imported in its own
transaction; an aborted or failed file leaves the logbook unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd.Flags(), &cfg.Import); err != nil {
				return withCode(exitUsage, err)
			}
			return runImport(cmd, cfg, flags, args)
		},
	}

	bindImportFlags(cmd.Flags(), &flags)
	return cmd
}

func bindImportFlags(f *pflag.FlagSet, fl *importFlags) {
	f.StringVar(&fl.mode, "mode", "", "conflict mode: interactive, ignore or reject (default from IMPORT_MODE)")
	f.StringVar(&fl.format, "format", "", "CSV format key, see `flightlog formats`")
	f.StringVar(&fl.formatFile, "format-file", "", "YAML file with additional format definitions")
	f.StringVar(&fl.separator, "separator", "", "field separator, a single character or \"tab\"")
	f.StringVar(&fl.encoding, "encoding", "", "input file encoding, e.g. utf-8 or iso-8859-1")
	f.StringVar(&fl.dateFormat, "date-format", "", "date format in strftime notation, e.g. %d.%m.%Y")
	f.StringVar(&fl.timeFormat, "time-format", "", "time format in strftime notation, e.g. %H:%M")
	f.StringVar(&fl.timezone, "timezone", "", "IANA time zone the file's times are written in")
	f.StringVar(&fl.aliasFile, "alias-file", "", "file mapping input names to logbook names")
	f.StringVar(&fl.club, "club", "", "only import flights with a member of this club on board")
	f.StringSliceVar(&fl.disabledWarnings, "disable-warning", nil, "warning that never invalidates a flight (repeatable)")
	f.BoolVar(&fl.noMerge, "no-merge-towflights", false, "import towflight rows as separate flights")
	f.StringVar(&fl.failedRows, "failed-rows", "", "write rows that were not imported to this CSV file")
	f.BoolVar(&fl.dryRun, "dry-run", false, "roll back instead of committing")
}

// apply copies the flags the user set onto cfg and loads the format file.
func (fl importFlags) apply(f *pflag.FlagSet, cfg *config.ImportConfig) error {
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("mode", &cfg.Mode, fl.mode)
	set("format", &cfg.Format, fl.format)
	set("format-file", &cfg.FormatFile, fl.formatFile)
	set("separator", &cfg.Delimiter, fl.separator)
	set("encoding", &cfg.Encoding, fl.encoding)
	set("date-format", &cfg.DateFormat, fl.dateFormat)
	set("time-format", &cfg.TimeFormat, fl.timeFormat)
	set("timezone", &cfg.Timezone, fl.timezone)
	set("alias-file", &cfg.AliasFile, fl.aliasFile)
	set("club", &cfg.Club, fl.club)
	if f.Changed("disable-warning") {
		cfg.DisabledWarnings = fl.disabledWarnings
	}
	if fl.noMerge {
		cfg.MergeTowflights = false
	}

	if cfg.FormatFile != "" {
		keys, err := formats.LoadFile(cfg.FormatFile)
		if err != nil {
			return err
		}
		slog.Debug("formats loaded", "file", cfg.FormatFile, "keys", keys)
	}
	return cfg.Validate()
}

func runImport(cmd *cobra.Command, cfg *config.Config, flags importFlags, files []string) error {
	ctx := cmd.Context()

	opts, err := importer.OptionsFromConfig(cfg.Import)
	if err != nil {
		return withCode(exitUsage, err)
	}
	opts.DryRun = flags.dryRun
	if opts.Mode == conflict.Interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return withCode(exitUsage, fmt.Errorf("interactive mode needs a terminal on stdin; use --mode ignore or --mode reject"))
		}
		opts.Prompter = conflict.NewConsolePrompter(os.Stdin, cmd.OutOrStdout(), cfg.Import.PromptRetries)
		opts.Out = cmd.OutOrStdout()
	}

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := importer.NewService(db, core.NewImportLimiter(1, cfg.Upload.MaxWaitTime))
	return importFiles(cmd, svc, opts, files, flags.failedRows)
}

// importFiles imports files in order and stops at the first failing one.
// Failed rows collected up to that point are still written to failedRows.
func importFiles(cmd *cobra.Command, svc *importer.Service, opts importer.Options, files []string, failedRows string) error {
	var (
		failed    []*importer.Report
		importErr error
	)
	for _, name := range files {
		rep, err := importFile(cmd, svc, opts, name)
		if rep != nil {
			printSummary(cmd, rep)
			if len(rep.Failed()) > 0 {
				failed = append(failed, rep)
			}
		}
		if err != nil {
			importErr = withCode(exitImport, fmt.Errorf("%s: %w", name, err))
			break
		}
	}

	if failedRows != "" && len(failed) > 0 {
		paths, err := writeFailedRows(failedRows, failed)
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "Rows not imported written to %s\n", p)
		}
		if err != nil {
			return errors.Join(importErr, err)
		}
	}
	return importErr
}

func importFile(cmd *cobra.Command, svc *importer.Service, opts importer.Options, name string) (*importer.Report, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts.FileName = name
	return svc.Run(cmd.Context(), f, opts)
}

// writeFailedRows writes the failed rows of all reports, in order. Reports
// with the same header share path; every further header layout gets its own
// file next to it, "failed.2.csv" and so on. It returns the files written.
func writeFailedRows(path string, reports []*importer.Report) ([]string, error) {
	var layouts []*importer.Report
	for _, rep := range reports {
		i := slices.IndexFunc(layouts, func(l *importer.Report) bool {
			return slices.Equal(l.Header, rep.Header)
		})
		if i < 0 {
			layouts = append(layouts, &importer.Report{Header: rep.Header})
			i = len(layouts) - 1
		}
		layouts[i].RowErrors = append(layouts[i].RowErrors, rep.Failed()...)
	}

	var written []string
	ext := filepath.Ext(path)
	for i, l := range layouts {
		name := path
		if i > 0 {
			name = fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), i+1, ext)
		}
		if err := writeFailedFile(name, l); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

func writeFailedFile(path string, rep *importer.Report) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed rows file: %w", err)
	}
	defer out.Close()

	if err := rep.WriteFailedRows(out); err != nil {
		return fmt.Errorf("failed rows file %s: %w", path, err)
	}
	return out.Close()
}

func printSummary(cmd *cobra.Command, rep *importer.Report) {
	w := cmd.OutOrStdout()
	run := rep.Run
	s := run.Stats

	fmt.Fprintf(w, "%s: %s (run %s)\n", run.FileName, run.Status, run.ID)
	fmt.Fprintf(w, "  rows %d, inserted %d, updated %d, deleted %d, skipped %d, duplicates %d\n",
		s.Rows, s.Inserted, s.Updated, s.Deleted, s.Skipped, s.Duplicates)
	if n := s.RowErrors + s.RecordErrors + s.MergeErrors; n > 0 {
		fmt.Fprintf(w, "  not imported: %d row errors, %d unresolved, %d merge errors\n",
			s.RowErrors, s.RecordErrors, s.MergeErrors)
	}
	if s.Merged > 0 || s.ClubSkipped > 0 {
		fmt.Fprintf(w, "  merged towflights %d, other clubs %d\n", s.Merged, s.ClubSkipped)
	}

	m := run.Missing
	for _, missing := range []struct {
		label string
		names []string
	}{
		{"pilots", m.Pilots},
		{"planes", m.Planes},
		{"launch methods", m.LaunchMethods},
	} {
		if len(missing.names) > 0 {
			fmt.Fprintf(w, "  missing %s: %s\n", missing.label, strings.Join(missing.names, "; "))
		}
	}
}
