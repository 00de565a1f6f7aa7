package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"panelcast/internal/artifacts"
	"panelcast/internal/config"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/share"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// StatusSink observes every persisted job transition. Publish errors are
// logged and never fail the job.
type StatusSink interface {
	Publish(ctx context.Context, job store.Job) error
}

// PageCounter reports how many pages a stored source document has.
type PageCounter interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
}

// Manager coordinates job processing using the registered stages.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	stages    stage.Set
	workspace artifacts.Workspace
	resolver  *share.Resolver
	logger    *slog.Logger
	notifier  notifications.Service
	sinks     []StatusSink
	pages     PageCounter
	newID     func() string

	mu      sync.RWMutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	active  map[string]*activeJob
}

type activeJob struct {
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the ntfy notifier built from config.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithStatusSinks registers sinks that observe job transitions.
func WithStatusSinks(sinks ...StatusSink) ManagerOption {
	return func(m *Manager) {
		for _, s := range sinks {
			if s != nil {
				m.sinks = append(m.sinks, s)
			}
		}
	}
}

// WithPageCounter checks page selections against the source before a job is
// created, so a range past the last page is rejected as input.
func WithPageCounter(pc PageCounter) ManagerOption {
	return func(m *Manager) {
		if pc != nil {
			m.pages = pc
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a workflow manager. The store's lifecycle stays with
// the caller.
func NewManager(cfg *config.Config, st *store.Store, stages stage.Set, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workspace := artifacts.New(cfg.JobsDir())
	m := &Manager{
		cfg:       cfg,
		store:     st,
		stages:    stages,
		workspace: workspace,
		resolver:  share.NewResolver(st, workspace),
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:  notifications.NewService(cfg),
		newID:     uuid.NewString,
		active:    make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workspace exposes the artifact layout jobs write into.
func (m *Manager) Workspace() artifacts.Workspace {
	return m.workspace
}

// Resolver exposes share token resolution for the public playback routes.
func (m *Manager) Resolver() *share.Resolver {
	return m.resolver
}
