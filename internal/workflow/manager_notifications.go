package workflow

import (
	"context"
	"time"

	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/notifications"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

const sinkTimeout = 5 * time.Second

type notice struct {
	event   notifications.Event
	payload notifications.Payload
}

func notificationsCompleted(job *store.Job, counts manifest.Counts) notice {
	return notice{
		event: notifications.EventJobCompleted,
		payload: notifications.Payload{
			"title":  job.Title,
			"jobID":  job.ID,
			"pages":  counts.Pages,
			"voiced": counts.VoicedBubbles,
		},
	}
}

func notificationsFailed(job *store.Job, name stage.Name, message string) notice {
	return notice{
		event: notifications.EventJobFailed,
		payload: notifications.Payload{
			"title": job.Title,
			"jobID": job.ID,
			"stage": string(name),
			"error": message,
		},
	}
}

func (m *Manager) notify(ctx context.Context, job *store.Job, n notice) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, n.event, n.payload); err != nil {
		logging.WarnWithContext(m.logger, "notification failed",
			"notification_failed",
			logging.String("event", string(n.event)),
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic configuration"),
			logging.String(logging.FieldImpact, "job state is unaffected"),
		)
	}
}

// publish hands a snapshot of job to every sink. Sinks get their own
// deadline so a slow mirror cannot stall the pipeline.
func (m *Manager) publish(ctx context.Context, job *store.Job) {
	if len(m.sinks) == 0 || job == nil {
		return
	}
	snapshot := *job
	snapshot.Plan = append([]stage.Name(nil), job.Plan...)
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, sink := range m.sinks {
		if err := sink.Publish(sinkCtx, snapshot); err != nil {
			logging.WarnWithContext(m.logger, "status sink publish failed",
				"status_sink_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldStage, string(job.Stage)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check redis/kafka connectivity"),
				logging.String(logging.FieldImpact, "pollers may see stale status until the next transition"),
			)
		}
	}
}
