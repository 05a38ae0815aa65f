package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/flightlog/internal/core"
)

const runColumns = `id, file_name, format, mode, status, stats, missing, error, started_at, finished_at`

// RecordRun stores the audit entry of an import run. It is written outside
// the run's transaction so that aborted and failed runs are kept too.
func (q queries) RecordRun(ctx context.Context, run *core.ImportRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode run stats: %w", err)
	}
	missing, err := json.Marshal(run.Missing)
	if err != nil {
		return fmt.Errorf("encode missing report: %w", err)
	}

	_, err = q.exec(ctx, `INSERT INTO import_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.FileName, run.Format, run.Mode, string(run.Status),
		string(stats), string(missing), run.Error,
		q.d.bindTime(run.StartedAt), q.d.bindTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record import run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent import runs, newest first. limit <= 0
// returns all of them.
func (q queries) ListRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	query := `SELECT ` + runColumns + ` FROM import_runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		var (
			run            core.ImportRun
			id, status     string
			stats, missing []byte
		)
		err := rows.Scan(&id, &run.FileName, &run.Format, &run.Mode, &status,
			&stats, &missing, &run.Error, dbTime{&run.StartedAt}, dbTime{&run.FinishedAt})
		if err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("import run id %q: %w", id, err)
		}
		run.Status = core.RunStatus(status)
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of run %s: %w", id, err)
		}
		if err := json.Unmarshal(missing, &run.Missing); err != nil {
			return nil, fmt.Errorf("decode missing report of run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, q.d.wrap(rows.Err())
}
