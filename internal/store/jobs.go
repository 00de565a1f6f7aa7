package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// CreateJob inserts a queued job. ID, Fingerprint and Plan must be set.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" || job.Fingerprint == "" {
		return errors.New("job id and fingerprint are required")
	}
	if len(job.Plan) == 0 {
		return errors.New("job plan is empty")
	}
	now := time.Now().UTC()
	job.Stage = stage.Queued
	job.Committed = 0
	job.ProgressPct = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	doc, err := encodeManifest(job.Manifest)
	if err != nil {
		return err
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (`+makePlaceholders(17)+`)`,
		job.ID,
		job.Fingerprint,
		nullableString(job.Title),
		nullableString(job.SourcePath),
		job.Pages.Start,
		job.Pages.End,
		boolToInt(job.Normalize),
		boolToInt(job.Forced),
		encodePlan(job.Plan),
		string(job.Stage),
		0,
		0,
		nil,
		doc,
		formatTime(now),
		formatTime(now),
		nil,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by id. It returns nil, nil when the job is unknown.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs, optionally filtered by stage, oldest first.
func (s *Store) ListJobs(ctx context.Context, stages ...stage.Name) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(stages))
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
		for _, name := range stages {
			args = append(args, string(name))
		}
	}
	query += ` ORDER BY created_at, id`
	return s.queryJobs(ctx, query, args...)
}

// ListResumable returns every job that has not reached done or failed.
func (s *Store) ListResumable(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE stage NOT IN (?, ?) ORDER BY created_at, id`,
		string(stage.Done), string(stage.Failed),
	)
}

// FindActiveByFingerprint returns the newest unfinished job for fp, or nil.
func (s *Store) FindActiveByFingerprint(ctx context.Context, fp string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE fingerprint = ? AND stage NOT IN (?, ?)
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		fp, string(stage.Done), string(stage.Failed),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return job, nil
}

// LatestByFingerprint returns the newest job of any state for fp, or nil.
func (s *Store) LatestByFingerprint(ctx context.Context, fp string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE fingerprint = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		fp,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest job: %w", err)
	}
	return job, nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkStage records that name is now running. Progress is left as is; a
// stage never moves a live job backward.
func (s *Store) MarkStage(ctx context.Context, id string, name stage.Name) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := loadJobState(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.stage.Terminal() {
			return fmt.Errorf("%w: job %s already %s", services.ErrConflict, id, current.stage)
		}
		if name.Rank() < current.stage.Rank() {
			return fmt.Errorf("%w: job %s cannot move from %s back to %s", services.ErrConflict, id, current.stage, name)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET stage = ?, updated_at = ? WHERE id = ?`,
			string(name), formatTime(time.Now()), id,
		)
		return err
	})
}

// CommitStage persists the manifest produced by the plan entry at position
// committed-1 together with the new committed count and progress. It is the
// only way a job advances, so a crash before it returns leaves the job to
// rerun that stage.
func (s *Store) CommitStage(ctx context.Context, id string, committed int, doc *manifest.Comic) (int, error) {
	encoded, err := encodeManifest(doc)
	if err != nil {
		return 0, err
	}
	var progress int
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := loadJobState(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.stage.Terminal() {
			return fmt.Errorf("%w: job %s already %s", services.ErrConflict, id, current.stage)
		}
		if committed != current.committed+1 || committed > current.planLen {
			return fmt.Errorf("%w: job %s commit %d out of sequence (committed %d of %d)",
				services.ErrConflict, id, committed, current.committed, current.planLen)
		}
		progress = Progress(committed, current.planLen)
		if progress < current.progress {
			progress = current.progress
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET manifest_json = ?, committed = ?, progress_pct = ?, updated_at = ? WHERE id = ?`,
			encoded, committed, progress, formatTime(time.Now()), id,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("commit stage: %w", err)
	}
	return progress, nil
}

// MarkDone finishes a job whose whole plan is committed.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	if err := s.inTx(ctx, func(tx *sql.Tx) error { return markDone(ctx, tx, id) }); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

func markDone(ctx context.Context, tx *sql.Tx, id string) error {
	current, err := loadJobState(ctx, tx, id)
	if err != nil {
		return err
	}
	if current.stage.Terminal() {
		return fmt.Errorf("%w: job %s already %s", services.ErrConflict, id, current.stage)
	}
	if current.committed != current.planLen {
		return fmt.Errorf("%w: job %s has %d of %d stages committed", services.ErrConflict, id, current.committed, current.planLen)
	}
	now := formatTime(time.Now())
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET stage = ?, progress_pct = 100, error_message = NULL, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(stage.Done), now, now, id,
	)
	return err
}

// SetFailed moves a live job to failed, keeping its progress.
func (s *Store) SetFailed(ctx context.Context, id, message string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET stage = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE id = ? AND stage NOT IN (?, ?)`,
		string(stage.Failed), message, now, now, id, string(stage.Done), string(stage.Failed),
	)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
		}
		return fmt.Errorf("%w: job %s already %s", services.ErrConflict, id, job.Stage)
	}
	return nil
}

// Stats returns a count of jobs grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[stage.Name]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[stage.Name]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		stats[stage.Name(name)] = count
	}
	return stats, rows.Err()
}

type jobState struct {
	stage     stage.Name
	committed int
	progress  int
	planLen   int
}

func loadJobState(ctx context.Context, tx *sql.Tx, id string) (jobState, error) {
	var (
		state     jobState
		stageName string
		plan      string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT stage, committed, progress_pct, plan FROM jobs WHERE id = ?`, id,
	).Scan(&stageName, &state.committed, &state.progress, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return state, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	if err != nil {
		return state, err
	}
	state.stage = stage.Name(stageName)
	decoded, err := decodePlan(plan)
	if err != nil {
		return state, err
	}
	state.planLen = len(decoded)
	return state, nil
}
