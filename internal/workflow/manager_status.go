package workflow

import (
	"context"
	"fmt"
	"sort"

	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/share"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	ActiveJobs   []string
	StageCounts  map[stage.Name]int
	CacheEntries int
	StageHealth  []stage.Health
	LastError    string
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	active := make([]string, 0, len(m.active))
	for id := range m.active {
		active = append(active, id)
	}
	m.mu.RUnlock()
	sort.Strings(active)

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	cached, err := m.store.CacheSize(ctx)
	if err != nil {
		m.logger.Warn("failed to count cache entries", logging.Error(err))
	}

	summary := StatusSummary{
		Running:      running,
		ActiveJobs:   active,
		StageCounts:  stats,
		CacheEntries: cached,
		StageHealth:  m.stages.Health(ctx),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

// GetStatus returns the persisted job record.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*store.Job, error) {
	return m.requireJob(ctx, jobID)
}

// ListJobs returns jobs, optionally filtered by stage.
func (m *Manager) ListJobs(ctx context.Context, stages ...stage.Name) ([]*store.Job, error) {
	return m.store.ListJobs(ctx, stages...)
}

// GetManifest returns a finished job's manifest. Jobs that are still running
// or failed report ErrNotReady; partial manifests are never returned.
func (m *Manager) GetManifest(ctx context.Context, jobID string) (*manifest.Comic, error) {
	job, err := m.requireJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Stage != stage.Done || job.Manifest == nil {
		return nil, fmt.Errorf("%w: job %s is %s", services.ErrNotReady, job.ID, job.Stage)
	}
	return job.Manifest, nil
}

// MintShareLink returns the share token for a finished job's fingerprint.
func (m *Manager) MintShareLink(ctx context.Context, jobID string) (string, error) {
	job, err := m.requireJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Stage != stage.Done {
		return "", fmt.Errorf("%w: job %s is %s", services.ErrNotReady, job.ID, job.Stage)
	}
	return m.resolver.Mint(ctx, job.Fingerprint)
}

// ResolveShareLink returns the playback view behind token.
func (m *Manager) ResolveShareLink(ctx context.Context, token string) (*share.PublicManifest, error) {
	return m.resolver.Resolve(ctx, token)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
