package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"panelcast/internal/config"
	"panelcast/internal/deps"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/services"
	"panelcast/internal/store"
	"panelcast/internal/workflow"
)

// Daemon coordinates the workflow manager and HTTP API and enforces
// single-instance execution per cache directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	notifier notifications.Service
	closers  []io.Closer
	logPath  string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	LogPath      string
	SocketPath   string
	APIAddress   string
	Dependencies []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClosers registers resources released by Close, such as sink clients.
func WithClosers(closers ...io.Closer) Option {
	return func(d *Daemon) {
		d.closers = append(d.closers, closers...)
	}
}

// WithLogPath records the daemon log file served to log tail requests.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// WithNotifier overrides the notification service used for test pushes.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the cache directory lock, then starts the workflow manager
// and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: another panelcast daemon owns %s", services.ErrConflict, d.cfg.Paths.CacheDir)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("panelcast daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// jobs keep their last committed stage.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report the cache directory as busy"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("panelcast daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Workflow exposes the manager for the IPC layer.
func (d *Daemon) Workflow() *workflow.Manager {
	return d.workflow
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		SocketPath:   d.cfg.SocketPath(),
		APIAddress:   d.api.address(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

// SubmitFile reads a PDF from the daemon's filesystem and submits it. The
// file must not exceed the configured upload limit.
func (d *Daemon) SubmitFile(ctx context.Context, path string, req workflow.SubmitRequest) (workflow.SubmitResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit", "source path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit", "resolve source path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit", "stat source file", err)
	}
	if info.IsDir() {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit", fmt.Sprintf("source path %q is a directory", abs), nil)
	}
	if limit := d.cfg.MaxUploadBytes(); info.Size() > limit {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit",
			fmt.Sprintf("source is %d bytes, limit is %d", info.Size(), limit), nil)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return workflow.SubmitResult{}, services.Wrap(services.ErrInput, "", "submit", "read source file", err)
	}
	req.Source = data
	if strings.TrimSpace(req.Title) == "" {
		req.Title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	return d.workflow.Submit(ctx, req)
}

// TestNotification sends a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the daemon log file, or "" when logging to stdout only.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// PlaybackBase returns the public base URL for share links, falling back to
// the API address.
func (d *Daemon) PlaybackBase() string {
	if base := strings.TrimSpace(d.cfg.Paths.PublicBaseURL); base != "" {
		return base
	}
	if addr := d.api.address(); addr != "" {
		return "http://" + addr
	}
	return "http://" + d.cfg.Paths.APIBind
}
