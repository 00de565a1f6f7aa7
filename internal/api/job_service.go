package api

import (
	"context"
	"fmt"

	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// JobReader abstracts the read operations needed for job queries.
type JobReader interface {
	ListJobs(ctx context.Context, stages ...stage.Name) ([]*store.Job, error)
	GetStatus(ctx context.Context, jobID string) (*store.Job, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	reader JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(reader JobReader) *JobService {
	if reader == nil {
		return nil
	}
	return &JobService{reader: reader}
}

// List returns jobs filtered by stage.
func (s *JobService) List(ctx context.Context, stages ...stage.Name) ([]Job, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	jobs, err := s.reader.ListJobs(ctx, stages...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Describe fetches a single job.
func (s *JobService) Describe(ctx context.Context, jobID string) (*Job, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	job, err := s.reader.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// ParseStages validates stage filters supplied by clients.
func ParseStages(values []string) ([]stage.Name, error) {
	out := make([]stage.Name, 0, len(values))
	for _, value := range values {
		name, err := stage.ParseName(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", services.ErrInput, err)
		}
		out = append(out, name)
	}
	return out, nil
}
