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

// Put replaces the cache entry for fp in a single statement. Callers hold
// Locks().Lock(fp) so two runs of the same fingerprint cannot interleave.
func (s *Store) Put(ctx context.Context, fp, jobID string, doc *manifest.Comic) error {
	encoded, err := encodeEntry(fp, jobID, doc)
	if err != nil {
		return err
	}
	if _, err := s.execWithRetry(ctx, upsertEntrySQL, entryArgs(fp, jobID, encoded)...); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Complete marks a fully committed job done and stores doc as the cache
// entry for fp, in one transaction. When a job created after this one
// already owns the entry, the entry is left alone and that job's id is
// returned. Jobs created in the same instant are ordered by insertion.
func (s *Store) Complete(ctx context.Context, fp, jobID string, doc *manifest.Comic) (string, error) {
	encoded, err := encodeEntry(fp, jobID, doc)
	if err != nil {
		return "", err
	}
	var newer string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		newer = ""
		if err := markDone(ctx, tx, jobID); err != nil {
			return err
		}
		owner, err := newerOwner(ctx, tx, fp, jobID)
		if err != nil {
			return err
		}
		if owner != "" {
			newer = owner
			return nil
		}
		_, err = tx.ExecContext(ctx, upsertEntrySQL, entryArgs(fp, jobID, encoded)...)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("complete job: %w", err)
	}
	return newer, nil
}

// newerOwner returns the job owning fp's entry when it was created after
// jobID. Owners whose job row is gone never win.
func newerOwner(ctx context.Context, tx *sql.Tx, fp, jobID string) (string, error) {
	var (
		owner      string
		ownerAt    sql.NullString
		ownerRowID sql.NullInt64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT c.job_id, j.created_at, j.rowid
         FROM cache_entries c LEFT JOIN jobs j ON j.id = c.job_id
         WHERE c.fingerprint = ?`, fp,
	).Scan(&owner, &ownerAt, &ownerRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if owner == jobID || !ownerAt.Valid {
		return "", nil
	}

	var (
		selfAt    string
		selfRowID int64
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at, rowid FROM jobs WHERE id = ?`, jobID,
	).Scan(&selfAt, &selfRowID); err != nil {
		return "", err
	}
	ownerTime, err := parseTimeString(ownerAt.String)
	if err != nil {
		return "", fmt.Errorf("owner created_at: %w", err)
	}
	selfTime, err := parseTimeString(selfAt)
	if err != nil {
		return "", fmt.Errorf("job created_at: %w", err)
	}
	switch {
	case ownerTime.After(selfTime):
		return owner, nil
	case ownerTime.Equal(selfTime) && ownerRowID.Int64 > selfRowID:
		return owner, nil
	default:
		return "", nil
	}
}

const upsertEntrySQL = `INSERT INTO cache_entries (fingerprint, job_id, stage, manifest_json, created_at, updated_at)
     VALUES (?, ?, ?, ?, ?, ?)
     ON CONFLICT(fingerprint) DO UPDATE SET
         job_id = excluded.job_id,
         stage = excluded.stage,
         manifest_json = excluded.manifest_json,
         updated_at = excluded.updated_at`

func encodeEntry(fp, jobID string, doc *manifest.Comic) (any, error) {
	if fp == "" || jobID == "" {
		return nil, errors.New("fingerprint and job id are required")
	}
	if doc == nil {
		return nil, errors.New("manifest is nil")
	}
	return encodeManifest(doc)
}

func entryArgs(fp, jobID string, encoded any) []any {
	now := formatTime(time.Now())
	return []any{fp, jobID, string(stage.Done), encoded, now, now}
}

// Get returns the cache entry for fp or services.ErrNotFound.
func (s *Store) Get(ctx context.Context, fp string) (*CacheEntry, error) {
	var (
		entry      CacheEntry
		stageName  string
		raw        string
		createdRaw string
		updatedRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT fingerprint, job_id, stage, manifest_json, created_at, updated_at
         FROM cache_entries WHERE fingerprint = ?`, fp,
	).Scan(&entry.Fingerprint, &entry.JobID, &stageName, &raw, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fingerprint %s", services.ErrNotFound, fp)
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	entry.Stage = stage.Name(stageName)
	doc, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}
	entry.Manifest = doc
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

// GetByJobID returns the manifest persisted for a job, which is partial
// until the job is done. Unknown jobs and jobs with nothing committed yet
// yield services.ErrNotFound.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*manifest.Comic, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT manifest_json FROM jobs WHERE id = ?`, jobID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (!raw.Valid || raw.String == "")) {
		return nil, fmt.Errorf("%w: manifest for job %s", services.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	return decodeManifest(raw.String)
}

// CacheSize counts cached fingerprints.
func (s *Store) CacheSize(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}
