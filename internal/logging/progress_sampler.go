package logging

// ProgressSampler thins per-item progress lines. A stage logs its first item,
// its last item, and each time completion crosses into a new step.
type ProgressSampler struct {
	steps int
	stage string
	step  int
}

// NewProgressSampler splits each stage into steps slices; steps <= 0 means 10.
func NewProgressSampler(steps int) *ProgressSampler {
	if steps <= 0 {
		steps = 10
	}
	return &ProgressSampler{steps: steps, step: -1}
}

// Observe records that done of total items in stage have finished and reports
// whether the event is worth a log line. Callers serialize calls.
func (s *ProgressSampler) Observe(stage string, done, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		return false
	}
	if stage != s.stage {
		s.stage = stage
		s.step = -1
	}
	if done > total {
		done = total
	}
	step := done * s.steps / total
	if step <= s.step {
		return false
	}
	s.step = step
	return true
}
