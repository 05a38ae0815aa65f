// Command flightlog imports flight logbook CSV exports into a logbook
// database, interactively on the console or unattended over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // IMPORT_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flightlog/internal/config"
	"github.com/JonMunkholm/flightlog/internal/core"
	_ "github.com/JonMunkholm/flightlog/internal/core/formats" // Register built-in formats
	"github.com/JonMunkholm/flightlog/internal/logging"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitImport  = 3
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode returns the exit code for err; errors without one are failures.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envLoaded := godotenv.Overload() == nil

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(envLoaded).ExecuteContext(ctx)
	stop()

	if err != nil {
		if msg := core.FormatUserError(err); core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(exitCode(err))
}

func newRootCmd(envLoaded bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "flightlog",
		Short:         "Import flight logbook CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if envLoaded {
			slog.Debug("loaded .env file (overwriting existing env vars)")
		}
	}

	root.AddCommand(
		newImportCmd(),
		newServeCmd(),
		newMigrateCmd(),
		newFormatsCmd(),
	)
	return root
}

// loadConfig loads the environment configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
