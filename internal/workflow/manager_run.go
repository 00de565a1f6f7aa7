package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/stagerunner"
	"panelcast/internal/store"
)

// Start begins accepting work and, when configured, resumes every job the
// previous process left unfinished.
func (m *Manager) Start(ctx context.Context) error {
	if missing := m.stages.Missing(stage.Plan(true)); len(missing) > 0 {
		return fmt.Errorf("%w: workflow stages not configured: %v", services.ErrConfiguration, missing)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if m.cfg.Pipeline.ResumeOnStart {
		resumed, err := m.ResumeAll(ctx)
		if err != nil {
			m.setLastError(err)
			logging.WarnWithContext(m.logger, "resume of unfinished jobs failed",
				"resume_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check manifest database access"),
				logging.String(logging.FieldImpact, "unfinished jobs stay queued until resumed"),
			)
		} else if resumed > 0 {
			m.logger.Info("resumed unfinished jobs",
				logging.String(logging.FieldEventType, "jobs_resumed"),
				logging.Int("jobs", resumed),
			)
		}
	}
	m.sweepWorkspaces(ctx)
	return nil
}

// workspaceSweepGrace keeps directories a concurrent submission may still be
// filling before its job row exists.
const workspaceSweepGrace = time.Hour

func (m *Manager) sweepWorkspaces(ctx context.Context) {
	jobs, err := m.store.ListJobs(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "workspace sweep skipped",
			"workspace_sweep_skipped",
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned job directories stay on disk"),
		)
		return
	}
	known := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		known[job.ID] = struct{}{}
	}
	result := m.workspace.Sweep(ctx, func(id string) bool {
		_, ok := known[id]
		return ok
	}, workspaceSweepGrace, m.logger)
	if len(result.Removed) > 0 {
		m.logger.Info("job workspace sweep finished",
			logging.String(logging.FieldEventType, "workspace_sweep"),
			logging.Int("removed", len(result.Removed)),
			logging.Int("failed_items", len(result.Failed)),
		)
	}
}

// Stop cancels in-flight work and waits for every job goroutine to exit.
// Interrupted jobs keep their last committed stage and resume later.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// launch starts a goroutine for job unless one is already running.
func (m *Manager) launch(job *store.Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	if _, ok := m.active[job.ID]; ok {
		return false
	}
	jobCtx, cancel := context.WithCancel(m.runCtx)
	aj := &activeJob{cancel: cancel, done: make(chan struct{})}
	m.active[job.ID] = aj
	m.wg.Add(1)
	go m.runJob(jobCtx, aj, job)
	return true
}

func (m *Manager) runJob(ctx context.Context, aj *activeJob, job *store.Job) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
		aj.cancel()
		close(aj.done)
	}()

	ctx = services.WithFingerprint(services.WithJobID(ctx, job.ID), job.Fingerprint)
	logger := logging.WithContext(ctx, m.logger)

	doc := job.Manifest
	if doc == nil {
		m.handleStageFailure(ctx, aj, job, job.Stage,
			services.Wrap(services.ErrInvariant, "", "load manifest", "job has no manifest", nil))
		return
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int("committed", job.Committed),
		logging.Int("stages", len(job.Plan)),
		logging.Bool("resumed", job.Committed > 0 || job.Stage != stage.Queued),
	)
	started := time.Now()

	for {
		name, ok := job.NextStage()
		if !ok {
			break
		}
		next, err := m.runStage(ctx, job, name, doc)
		if err != nil {
			m.handleStageFailure(ctx, aj, job, name, err)
			return
		}
		doc = next
	}

	m.finish(ctx, aj, logger, job, doc, started)
}

// runStage marks name running, fans it out and commits the result. Nothing
// is persisted unless every item succeeded.
func (m *Manager) runStage(ctx context.Context, job *store.Job, name stage.Name, doc *manifest.Comic) (*manifest.Comic, error) {
	stg, ok := m.stages.Lookup(name)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, string(name), "lookup", "stage not configured", nil)
	}
	if err := m.store.MarkStage(ctx, job.ID, name); err != nil {
		return nil, err
	}
	job.Stage = name
	job.UpdatedAt = time.Now().UTC()
	m.publish(ctx, job)

	base := m.stageBaseLogger(name)
	stageCtx := services.WithStage(ctx, string(name))
	logger := logging.WithContext(stageCtx, base)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int(logging.FieldProgressPercent, job.ProgressPct),
	)

	sampler := logging.NewProgressSampler(4)
	runner := stagerunner.Runner{
		Concurrency: m.cfg.Pipeline.MaxConcurrency,
		ItemTimeout: m.cfg.ItemTimeout(),
		Logger:      base,
		OnItem: func(_ stage.Name, done, total int) {
			if sampler.Observe(string(name), done, total) {
				logger.Debug("stage items progress",
					logging.String(logging.FieldEventType, "stage_items_progress"),
					logging.Int("items_done", done),
					logging.Int("items", total),
				)
			}
		},
	}

	stageStart := time.Now()
	next, err := runner.Run(stageCtx, stg, doc)
	if err != nil {
		return nil, err
	}
	progress, err := m.store.CommitStage(ctx, job.ID, job.Committed+1, next)
	if err != nil {
		return nil, err
	}
	job.Committed++
	job.ProgressPct = progress
	job.Manifest = next
	job.UpdatedAt = time.Now().UTC()

	counts := next.Counts()
	logger.Info("stage committed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int(logging.FieldProgressPercent, progress),
		logging.Duration("duration", time.Since(stageStart)),
		logging.Int("pages", counts.Pages),
		logging.Int("panels", counts.Panels),
		logging.Int("bubbles", counts.Bubbles),
	)
	m.publish(ctx, job)
	return next, nil
}

// finish marks the job done and writes its cache entry in one store
// transaction under the fingerprint lock, so a cancel landing here leaves
// either both or neither. An older run that finishes after a newer one for
// the same fingerprint leaves the newer entry in place.
func (m *Manager) finish(ctx context.Context, aj *activeJob, logger *slog.Logger, job *store.Job, doc *manifest.Comic, started time.Time) {
	unlock := m.store.Locks().Lock(job.Fingerprint)
	newer, err := m.store.Complete(ctx, job.Fingerprint, job.ID, doc)
	unlock()
	if err != nil {
		m.handleStageFailure(ctx, aj, job, job.Stage, err)
		return
	}

	if newer != "" {
		logger.Info("newer job owns the cache entry; keeping it",
			logging.String(logging.FieldEventType, "cache_put_skipped"),
			logging.String("newer_job_id", newer),
		)
	}
	now := time.Now().UTC()
	job.Stage = stage.Done
	job.ProgressPct = 100
	job.Error = ""
	job.UpdatedAt = now
	job.FinishedAt = &now

	counts := doc.Counts()
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("duration", time.Since(started)),
		logging.Int("pages", counts.Pages),
		logging.Int("panels", counts.Panels),
		logging.Int("voiced_bubbles", counts.VoicedBubbles),
		logging.Int("panels_with_sfx", counts.PanelsWithSFX),
	)
	m.publish(ctx, job)
	m.notify(ctx, job, notificationsCompleted(job, counts))
}

func (m *Manager) stageBaseLogger(name stage.Name) *slog.Logger {
	if level, ok := m.cfg.Logging.StageOverrides[string(name)]; ok {
		return logging.WithLevelOverride(m.logger, logging.ParseLevel(level))
	}
	return m.logger
}
