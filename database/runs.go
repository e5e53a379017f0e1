package database

import (
	"database/sql"
	"fmt"
	"time"

	"forum-sync/models"
)

// SaveRun stores the summary of a run and the outcome of every thread it
// processed in a single transaction.
func SaveRun(db *sql.DB, rc *models.RunContext) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runErr string
	if rc.Err != nil {
		runErr = rc.Err.Error()
	}

	_, err = tx.Exec(`
    INSERT OR REPLACE INTO runs (
        run_id, started_at, finished_at, active, archived, merged, posts, degraded, dropped, output, error
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rc.RunID,
		rc.StartedAt.Unix(),
		rc.FinishedAt.Unix(),
		rc.ActiveCount,
		rc.ArchivedCount,
		rc.MergedCount,
		len(rc.Posts),
		rc.Count(models.OutcomeDegraded),
		rc.Count(models.OutcomeDropped),
		rc.Output,
		runErr,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rc.RunID, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO thread_outcomes (run_id, thread_id, kind, reasons) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for saving outcomes: %w", err)
	}
	defer stmt.Close()

	for _, o := range rc.Outcomes {
		if _, err := stmt.Exec(rc.RunID, o.ThreadID, string(o.Kind), o.Reason()); err != nil {
			return fmt.Errorf("failed to save outcome of thread %s: %w", o.ThreadID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", rc.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]models.RunRecord, error) {
	rows, err := db.Query(`
    SELECT run_id, started_at, finished_at, active, archived, merged, posts, degraded, dropped, output, error
    FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var (
			r                 models.RunRecord
			started, finished int64
			output, runErr    sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Active, &r.Archived, &r.Merged,
			&r.Posts, &r.Degraded, &r.Dropped, &output, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		r.Output = output.String
		r.Error = runErr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunOutcomes returns the degraded and dropped thread outcomes of a run.
func RunOutcomes(db *sql.DB, runID string) ([]models.ThreadOutcome, error) {
	rows, err := db.Query(`
    SELECT thread_id, kind, reasons FROM thread_outcomes
    WHERE run_id = ? AND kind != ? ORDER BY thread_id`, runID, string(models.OutcomeOK))
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes of run %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []models.ThreadOutcome
	for rows.Next() {
		var (
			o       models.ThreadOutcome
			kind    string
			reasons sql.NullString
		)
		if err := rows.Scan(&o.ThreadID, &kind, &reasons); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Kind = models.OutcomeKind(kind)
		if reasons.String != "" {
			o.Reasons = []string{reasons.String}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
