package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordRun logs one pipeline execution for operational visibility.
func (s *Store) RecordRun(ctx context.Context, runType string, startedAt time.Time, result map[string]any, runErr string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	status := "success"
	if runErr != "" {
		status = "error"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, run_type, started_at, finished_at, status, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		runType,
		formatTime(startedAt),
		formatTime(time.Now().UTC()),
		status,
		string(resultJSON),
		nullable(runErr),
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// PipelineRun is one recorded pipeline execution.
type PipelineRun struct {
	ID         string         `json:"id"`
	RunType    string         `json:"run_type"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	Status     string         `json:"status"`
	Result     map[string]any `json:"result"`
	Error      string         `json:"error,omitempty"`
}

// Runs returns recorded pipeline runs, newest first, optionally
// filtered by run type. The total count comes from the same snapshot
// as the page contents.
func (s *Store) Runs(ctx context.Context, runType string, page, perPage int) ([]PipelineRun, int, error) {
	where := ""
	var args []any
	if runType != "" {
		where = " WHERE run_type = ?"
		args = append(args, runType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin runs tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipeline runs: %w", err)
	}

	pageArgs := append(append([]any{}, args...), perPage, (page-1)*perPage)
	rows, err := tx.QueryContext(ctx, `
		SELECT id, run_type, started_at, finished_at, status, result, error
		FROM pipeline_runs`+where+`
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := make([]PipelineRun, 0, perPage)
	for rows.Next() {
		var (
			run        PipelineRun
			resultJSON string
			runErr     sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.RunType, &run.StartedAt, &run.FinishedAt, &run.Status, &resultJSON, &runErr); err != nil {
			return nil, 0, fmt.Errorf("scan pipeline run: %w", err)
		}
		run.Error = runErr.String
		if err := json.Unmarshal([]byte(resultJSON), &run.Result); err != nil {
			return nil, 0, fmt.Errorf("decode run result: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate pipeline runs: %w", err)
	}
	return runs, total, nil
}

// RecordClassificationError bumps the attempt counter for an item whose
// classification failed, so poison items eventually stop consuming
// service calls.
func (s *Store) RecordClassificationError(ctx context.Context, itemID, message string) error {
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_errors (item_id, attempt_count, last_error, last_attempted_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			attempt_count = attempt_count + 1,
			last_error = excluded.last_error,
			last_attempted_at = excluded.last_attempted_at`,
		itemID, message, now)
	if err != nil {
		return fmt.Errorf("record classification error: %w", err)
	}
	return nil
}

// ClassificationAttempts returns how many failed classification
// attempts the item has accumulated.
func (s *Store) ClassificationAttempts(ctx context.Context, itemID string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempt_count FROM classification_errors WHERE item_id = ?`, itemID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query classification attempts: %w", err)
	}
	return attempts, nil
}
