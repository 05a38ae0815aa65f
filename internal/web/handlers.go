package web

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/JonMunkholm/flightlog/internal/conflict"
	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/csvimport"
	"github.com/JonMunkholm/flightlog/internal/importer"
)

// DefaultRunsLimit is how many runs GET /api/imports returns by default.
const DefaultRunsLimit = 50

// ImportResponse is the body of a finished import.
type ImportResponse struct {
	Run         *core.ImportRun        `json:"run"`
	RowErrors   []csvimport.RowError   `json:"row_errors,omitempty"`
	MergeErrors []csvimport.MergeError `json:"merge_errors,omitempty"`
	Rejected    []csvimport.RowError   `json:"rejected,omitempty"`
}

// FormatInfo describes a registered CSV format.
type FormatInfo struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Headers     []string `json:"headers"`
	Delimiter   string   `json:"delimiter,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Imports  core.ImportLimiterStatus `json:"imports"`
	Error    string                   `json:"error,omitempty"`
}

// handleImport runs an unattended import of the uploaded file. Conflicts are
// resolved with mode=reject (default) or mode=ignore; the operator dialog is
// not available over HTTP.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	opts, err := s.importOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.FileName = header.Filename

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	rep, err := s.importer.Run(ctx, file, opts)
	if err != nil {
		runID := ""
		if rep != nil {
			runID = rep.Run.ID.String()
		}
		s.respondError(w, r, err, runID)
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Run:         rep.Run,
		RowErrors:   rep.RowErrors,
		MergeErrors: rep.MergeErrors,
		Rejected:    rep.Rejected,
	})
}

// importOptions starts from the configured import defaults and applies the
// query parameters of r.
func (s *Server) importOptions(r *http.Request) (importer.Options, error) {
	cfg := s.cfg.Import
	q := r.URL.Query()

	cfg.Mode = conflict.RejectOnConflict.String()
	if v := q.Get("mode"); v != "" {
		cfg.Mode = v
	}
	override := func(dst *string, key string) {
		if v := q.Get(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.Format, "format")
	override(&cfg.Encoding, "encoding")
	override(&cfg.Delimiter, "separator")
	override(&cfg.DateFormat, "date_format")
	override(&cfg.TimeFormat, "time_format")
	override(&cfg.Club, "club")
	override(&cfg.Timezone, "timezone")

	opts, err := importer.OptionsFromConfig(cfg)
	if err != nil {
		return opts, err
	}
	if opts.Mode == conflict.Interactive {
		return opts, errors.New("interactive mode is not available over HTTP")
	}

	if v := q.Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("invalid boolean for dry_run")
		}
		opts.DryRun = dry
	}
	if v := q.Get("merge_towflights"); v != "" {
		merge, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("invalid boolean for merge_towflights")
		}
		opts.MergeTowflights = merge
	}
	return opts, nil
}

// handleListRuns returns the most recent import runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultRunsLimit)

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleListFormats returns the registered CSV formats.
func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	formats := core.Formats()
	infos := make([]FormatInfo, len(formats))
	for i, f := range formats {
		headers := make([]string, 0, len(f.Columns))
		for h := range f.Columns {
			headers = append(headers, h)
		}
		sort.Strings(headers)

		infos[i] = FormatInfo{
			Key:         f.Key,
			Label:       f.Label,
			Description: f.Description,
			Headers:     headers,
		}
		if f.Delimiter != 0 {
			infos[i].Delimiter = string(f.Delimiter)
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleHealth reports database reachability and the import slot state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: s.db.Driver()}
	if limiter := s.importer.Limiter(); limiter != nil {
		resp.Imports = limiter.Status()
	}

	status := http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = core.MapError(err).Message
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
