package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"panelcast/internal/config"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// Type classifies a lifecycle event.
type Type string

const (
	TypeQueued    Type = "job.queued"
	TypeProgress  Type = "job.progress"
	TypeCompleted Type = "job.completed"
	TypeFailed    Type = "job.failed"
)

// Event is the message body written to the topic.
type Event struct {
	EventID     string     `json:"event_id"`
	Type        Type       `json:"type"`
	JobID       string     `json:"job_id"`
	Fingerprint string     `json:"fingerprint"`
	Stage       stage.Name `json:"stage"`
	Committed   int        `json:"committed"`
	Total       int        `json:"total"`
	ProgressPct int        `json:"progress_pct"`
	Forced      bool       `json:"forced,omitempty"`
	Error       string     `json:"error,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Publisher sends events through a synchronous producer.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig returns the producer settings used for lifecycle events.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	return cfg
}

// Connect dials the configured brokers.
func Connect(cfg config.Events) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return New(producer, cfg.Topic), nil
}

// New wraps an existing producer.
func New(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish sends one event for the job's current state. It satisfies
// workflow.StatusSink.
func (p *Publisher) Publish(ctx context.Context, job store.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(FromJob(job))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(job.ID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send event for job %s: %w", job.ID, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// FromJob builds the event describing the job's current state.
func FromJob(job store.Job) Event {
	occurred := job.UpdatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Event{
		EventID:     uuid.NewString(),
		Type:        typeOf(job.Stage),
		JobID:       job.ID,
		Fingerprint: job.Fingerprint,
		Stage:       job.Stage,
		Committed:   job.Committed,
		Total:       len(job.Plan),
		ProgressPct: job.ProgressPct,
		Forced:      job.Forced,
		Error:       job.Error,
		OccurredAt:  occurred.UTC(),
	}
}

func typeOf(name stage.Name) Type {
	switch name {
	case stage.Queued:
		return TypeQueued
	case stage.Done:
		return TypeCompleted
	case stage.Failed:
		return TypeFailed
	default:
		return TypeProgress
	}
}
