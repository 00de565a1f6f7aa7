package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"panelcast/internal/fingerprint"
	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// pdfHeaderWindow is how far into the upload the %PDF- marker may appear.
const pdfHeaderWindow = 1024

// SubmitRequest describes one upload.
type SubmitRequest struct {
	Source    []byte
	Pages     fingerprint.PageRange
	Normalize bool
	Force     bool
	Title     string
}

// SubmitResult reports the job that will produce (or already produced) the
// manifest for a submission.
type SubmitResult struct {
	JobID       string
	Fingerprint string
	Stage       stage.Name
	ProgressPct int
	// Cached is set when a finished manifest already existed and no stage ran.
	Cached bool
	// Joined is set when an unfinished job for the same fingerprint was reused.
	Joined bool
}

// Submit validates the upload, short-circuits it against the cache and
// otherwise starts a job. Invalid input is rejected before any job exists.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := validateSubmission(req); err != nil {
		return SubmitResult{}, err
	}
	if !m.isRunning() {
		return SubmitResult{}, fmt.Errorf("%w: workflow not running", services.ErrNotReady)
	}

	fp := fingerprint.Compute(req.Source, req.Pages, req.Normalize)
	ctx = services.WithFingerprint(ctx, fp)
	logger := logging.WithContext(ctx, m.logger)

	unlock := m.store.Locks().Lock(fp)
	defer unlock()

	if !req.Force {
		res, found, err := m.lookupExisting(ctx, fp)
		if err != nil {
			return SubmitResult{}, err
		}
		if found {
			logger.Info("submission reused existing job",
				logging.String(logging.FieldEventType, "submit_reused"),
				logging.String(logging.FieldJobID, res.JobID),
				logging.Bool("cached", res.Cached),
			)
			return res, nil
		}
	}

	job, err := m.createJob(ctx, fp, req)
	if err != nil {
		return SubmitResult{}, err
	}
	m.launch(job)
	return SubmitResult{
		JobID:       job.ID,
		Fingerprint: fp,
		Stage:       job.Stage,
		ProgressPct: job.ProgressPct,
	}, nil
}

func validateSubmission(req SubmitRequest) error {
	if len(req.Source) == 0 {
		return services.Wrap(services.ErrInput, "", "submit", "source is empty", nil)
	}
	if !looksLikePDF(req.Source) {
		return services.Wrap(services.ErrInput, "", "submit", "source is not a PDF document", nil)
	}
	if err := req.Pages.Validate(); err != nil {
		return services.Wrap(services.ErrInput, "", "submit", "invalid page range", err)
	}
	return nil
}

func looksLikePDF(source []byte) bool {
	head := source
	if len(head) > pdfHeaderWindow {
		head = head[:pdfHeaderWindow]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// lookupExisting returns the cached entry for fp or the unfinished job
// already working on it. Callers hold the fingerprint lock.
func (m *Manager) lookupExisting(ctx context.Context, fp string) (SubmitResult, bool, error) {
	entry, err := m.store.Get(ctx, fp)
	switch {
	case err == nil:
		return SubmitResult{
			JobID:       entry.JobID,
			Fingerprint: fp,
			Stage:       stage.Done,
			ProgressPct: 100,
			Cached:      true,
		}, true, nil
	case !errors.Is(err, services.ErrNotFound):
		return SubmitResult{}, false, err
	}

	active, err := m.store.FindActiveByFingerprint(ctx, fp)
	if err != nil {
		return SubmitResult{}, false, err
	}
	if active == nil {
		return SubmitResult{}, false, nil
	}
	m.launch(active)
	return SubmitResult{
		JobID:       active.ID,
		Fingerprint: fp,
		Stage:       active.Stage,
		ProgressPct: active.ProgressPct,
		Joined:      true,
	}, true, nil
}

func (m *Manager) createJob(ctx context.Context, fp string, req SubmitRequest) (*store.Job, error) {
	id := m.newID()
	sourcePath, err := m.workspace.StoreSource(id, req.Source)
	if err != nil {
		return nil, fmt.Errorf("store source: %w", err)
	}
	if err := m.checkSelection(ctx, sourcePath, req.Pages); err != nil {
		_ = m.workspace.Remove(id)
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	doc := &manifest.Comic{
		ComicID:              id,
		Title:                title,
		Fingerprint:          fp,
		Speakers:             []manifest.Speaker{},
		Pages:                []manifest.Page{},
		SourceLanguage:       m.cfg.Pipeline.SourceLanguage,
		NormalizationEnabled: req.Normalize,
		CreatedAt:            time.Now().UTC(),
		Selection:            req.Pages,
	}
	job := &store.Job{
		ID:          id,
		Fingerprint: fp,
		Title:       title,
		SourcePath:  sourcePath,
		Pages:       req.Pages,
		Normalize:   req.Normalize,
		Forced:      req.Force,
		Plan:        stage.Plan(req.Normalize),
		Manifest:    doc,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		_ = m.workspace.Remove(id)
		return nil, err
	}

	logging.WithContext(services.WithJobID(ctx, id), m.logger).Info("job created",
		logging.String(logging.FieldEventType, "job_created"),
		logging.String("pages", req.Pages.String()),
		logging.Bool("normalize", req.Normalize),
		logging.Bool("forced", req.Force),
		logging.Int("source_bytes", len(req.Source)),
	)
	m.publish(ctx, job)
	return job, nil
}

// checkSelection rejects a page range that selects nothing from the source.
// When the page count cannot be read the check is left to pdf_to_images,
// which reports the tool's own error.
func (m *Manager) checkSelection(ctx context.Context, sourcePath string, pages fingerprint.PageRange) error {
	if m.pages == nil || pages.All() {
		return nil
	}
	total, err := m.pages.PageCount(ctx, sourcePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WithContext(ctx, m.logger).Debug("page count unavailable before job creation",
			logging.String(logging.FieldEventType, "page_count_skipped"),
			logging.Error(err),
		)
		return nil
	}
	if _, _, ok := pages.Clamp(total); !ok {
		return services.Wrap(services.ErrInput, "", "submit", "invalid page range",
			fmt.Errorf("range %s selects no pages of %d", pages, total))
	}
	return nil
}

// Reprocess starts a forced run for a job id or a fingerprint, reusing the
// stored source and options. The existing cache entry stays readable until
// the new run finishes.
func (m *Manager) Reprocess(ctx context.Context, ref string) (SubmitResult, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return SubmitResult{}, services.Wrap(services.ErrInput, "", "reprocess", "job id or fingerprint required", nil)
	}
	job, err := m.store.GetJob(ctx, ref)
	if err != nil {
		return SubmitResult{}, err
	}
	if job == nil && fingerprint.Valid(ref) {
		if job, err = m.store.LatestByFingerprint(ctx, ref); err != nil {
			return SubmitResult{}, err
		}
	}
	if job == nil {
		return SubmitResult{}, fmt.Errorf("%w: job or fingerprint %s", services.ErrNotFound, ref)
	}

	source, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrNotFound, "", "reprocess", "source no longer available", err)
	}
	return m.Submit(ctx, SubmitRequest{
		Source:    source,
		Pages:     job.Pages,
		Normalize: job.Normalize,
		Force:     true,
		Title:     job.Title,
	})
}

// Cancel stops a job's in-flight work and marks it failed. It waits for the
// job goroutine to exit.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.requireJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("%w: job %s already %s", services.ErrConflict, jobID, job.Stage)
	}

	m.mu.Lock()
	aj := m.active[jobID]
	if aj != nil {
		aj.cancelled = true
		aj.cancel()
	}
	m.mu.Unlock()

	if aj == nil {
		if err := m.store.SetFailed(ctx, jobID, cancelledMessage); err != nil {
			return err
		}
		job.Stage = stage.Failed
		job.Error = cancelledMessage
		m.publish(ctx, job)
		return nil
	}

	select {
	case <-aj.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume restarts a single unfinished job from its first uncommitted stage.
func (m *Manager) Resume(ctx context.Context, jobID string) error {
	job, err := m.requireJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("%w: job %s already %s", services.ErrConflict, jobID, job.Stage)
	}
	if !m.isRunning() {
		return fmt.Errorf("%w: workflow not running", services.ErrNotReady)
	}
	m.launch(job)
	return nil
}

// ResumeAll restarts every unfinished job and reports how many were started.
func (m *Manager) ResumeAll(ctx context.Context) (int, error) {
	jobs, err := m.store.ListResumable(ctx)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, job := range jobs {
		if m.launch(job) {
			started++
		}
	}
	return started, nil
}

func (m *Manager) requireJob(ctx context.Context, jobID string) (*store.Job, error) {
	job, err := m.store.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, jobID)
	}
	return job, nil
}
