package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"panelcast/internal/logging"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

const cancelledMessage = "cancelled"

// handleStageFailure folds a stage error into the job's failed state. A
// shutdown is not a failure: the job keeps its committed stages and resumes
// on the next start.
func (m *Manager) handleStageFailure(ctx context.Context, aj *activeJob, job *store.Job, name stage.Name, stageErr error) {
	logger := logging.WithContext(services.WithStage(ctx, string(name)), m.logger)

	var message string
	if ctx.Err() != nil {
		m.mu.RLock()
		cancelled := aj != nil && aj.cancelled
		m.mu.RUnlock()
		if !cancelled {
			logger.Info("job interrupted by shutdown; will resume",
				logging.String(logging.FieldEventType, "job_interrupted"),
				logging.Int("committed", job.Committed),
				logging.Int(logging.FieldProgressPercent, job.ProgressPct),
			)
			return
		}
		message = cancelledMessage
	} else {
		message = classifyStageFailure(name, stageErr)
	}

	persistCtx := context.WithoutCancel(ctx)
	kind := services.KindOf(stageErr)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", string(kind)),
		logging.String("error_message", message),
		logging.Int(logging.FieldProgressPercent, job.ProgressPct),
		logging.Error(stageErr),
	}
	switch {
	case message == cancelledMessage:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "job was cancelled by request"))
	case kind == services.KindInvariant:
		attrs = append(attrs,
			logging.Alert("invariant_violation"),
			logging.String(logging.FieldErrorHint, "manifest structure was corrupted; inspect the stage implementation"),
		)
	default:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "check collaborator availability then reprocess"))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := m.store.SetFailed(persistCtx, job.ID, message); err != nil {
		logging.ErrorWithContext(logger, "failed to persist stage failure", "stage_failure_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check manifest database access"),
		)
	}
	now := time.Now().UTC()
	job.Stage = stage.Failed
	job.Error = message
	job.UpdatedAt = now
	job.FinishedAt = &now

	if message != cancelledMessage {
		m.setLastError(stageErr)
	}
	m.publish(persistCtx, job)
	m.notify(persistCtx, job, notificationsFailed(job, name, message))
}

func classifyStageFailure(name stage.Name, stageErr error) string {
	if stageErr == nil {
		return failureMessage(name, "failed without error detail")
	}
	if message := strings.TrimSpace(stageErr.Error()); message != "" {
		return message
	}
	return failureMessage(name, "failed")
}

func failureMessage(name stage.Name, defaultMsg string) string {
	if name != "" {
		return fmt.Sprintf("%s %s", name, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}
