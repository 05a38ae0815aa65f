package importer

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/flightlog/internal/config"
	"github.com/JonMunkholm/flightlog/internal/conflict"
	"github.com/JonMunkholm/flightlog/internal/resolve"
)

// Options configures one import run.
type Options struct {
	// FileName is recorded in the run audit entry.
	FileName string

	// Format is a registered format key.
	Format string

	Delimiter  rune
	Encoding   string
	DateFormat string
	TimeFormat string
	Location   *time.Location

	MergeTowflights bool

	Mode     conflict.Mode
	Disabled conflict.WarningSet

	// Prompter and Out are used in interactive mode.
	Prompter conflict.Prompter
	Out      io.Writer

	// Aliases may be nil.
	Aliases *resolve.Aliases

	// Club, when set, skips records without a club member on board.
	Club string

	// DryRun rolls the run back instead of committing it.
	DryRun bool
}

// OptionsFromConfig builds run options from the import configuration. The
// alias file, if any, is loaded here so a broken file fails before the input
// is read.
func OptionsFromConfig(cfg config.ImportConfig) (Options, error) {
	mode, err := conflict.ParseMode(cfg.Mode)
	if err != nil {
		return Options{}, err
	}

	delim, err := ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return Options{}, err
	}

	disabled := conflict.NewWarningSet()
	for _, name := range cfg.DisabledWarnings {
		w, err := conflict.ParseWarning(name)
		if err != nil {
			return Options{}, err
		}
		disabled[w] = true
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("unknown time zone %q", cfg.Timezone)
	}

	opts := Options{
		Format:          cfg.Format,
		Delimiter:       delim,
		Encoding:        cfg.Encoding,
		DateFormat:      cfg.DateFormat,
		TimeFormat:      cfg.TimeFormat,
		Location:        loc,
		MergeTowflights: cfg.MergeTowflights,
		Mode:            mode,
		Disabled:        disabled,
		Club:            cfg.Club,
	}

	if cfg.AliasFile != "" {
		aliases, err := resolve.LoadAliases(cfg.AliasFile, cfg.Encoding)
		if err != nil {
			return Options{}, err
		}
		opts.Aliases = aliases
	}

	return opts, nil
}

// ParseDelimiter accepts a single character, or "\t" / "tab" for a tab.
// The empty string means the format's default.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid separator %q: must be a single character", s)
	}
	return r, nil
}
