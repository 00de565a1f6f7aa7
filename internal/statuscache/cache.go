package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"panelcast/internal/config"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

const pingTimeout = 5 * time.Second

// Snapshot is the cached view of a job.
type Snapshot struct {
	JobID       string     `json:"job_id"`
	Fingerprint string     `json:"fingerprint"`
	Stage       stage.Name `json:"stage"`
	ProgressPct int        `json:"progress_pct"`
	Committed   int        `json:"committed"`
	Total       int        `json:"total"`
	Error       string     `json:"error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Cache writes job snapshots under prefix+jobID with a TTL.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg config.StatusCache) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.KeyPrefix, time.Duration(cfg.TTLSeconds)*time.Second), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Publish stores the job's snapshot. It satisfies workflow.StatusSink.
func (c *Cache) Publish(ctx context.Context, job store.Job) error {
	data, err := json.Marshal(SnapshotOf(job))
	if err != nil {
		return fmt.Errorf("encode status snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(job.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write status snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot for jobID.
func (c *Cache) Get(ctx context.Context, jobID string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, c.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no cached status for job %s", services.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("read status snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode status snapshot: %w", err)
	}
	return &snap, nil
}

// Forget drops the cached snapshot for jobID.
func (c *Cache) Forget(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, c.key(jobID)).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) key(jobID string) string {
	return c.prefix + jobID
}

// SnapshotOf projects a job onto its cached view.
func SnapshotOf(job store.Job) Snapshot {
	updated := job.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return Snapshot{
		JobID:       job.ID,
		Fingerprint: job.Fingerprint,
		Stage:       job.Stage,
		ProgressPct: job.ProgressPct,
		Committed:   job.Committed,
		Total:       len(job.Plan),
		Error:       job.Error,
		UpdatedAt:   updated.UTC(),
	}
}
