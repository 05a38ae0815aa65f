package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/core/formats"
)

// newFormatsCmd lists the registered formats. It needs no database and no
// configuration beyond an optional format file.
func newFormatsCmd() *cobra.Command {
	var formatFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the known CSV formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if formatFile != "" {
				if _, err := formats.LoadFile(formatFile); err != nil {
					return withCode(exitUsage, err)
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tDESCRIPTION")
			for _, f := range core.Formats() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Key, f.Label, f.Description)
				if verbose {
					fmt.Fprintf(tw, "\t\theaders: %s\n", strings.Join(formatHeaders(f), ", "))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&formatFile, "format-file", "", "YAML file with additional format definitions")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the headers of each format")
	return cmd
}

func formatHeaders(f core.Format) []string {
	headers := make([]string, 0, len(f.Columns))
	for h := range f.Columns {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return headers
}
