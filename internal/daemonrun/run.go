package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"panelcast/internal/config"
	"panelcast/internal/daemon"
	"panelcast/internal/deps"
	"panelcast/internal/events"
	"panelcast/internal/ipc"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/pipeline"
	"panelcast/internal/statuscache"
	"panelcast/internal/store"
	"panelcast/internal/workflow"
)

const (
	runLogPattern = "panelcastd-*.log"
	keepRunLogs   = 10
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the panelcast daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("panelcastd-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		File:        logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update panelcastd.log link: %v\n", err)
	}
	pruneRunLogs(logger, cfg.Paths.LogDir, logPath, keepRunLogs)
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open manifest store", "store_open_failed",
			logging.Error(err),
			logging.String("database_path", cfg.DatabasePath()),
		)
		return err
	}

	sinks, closers := connectSinks(signalCtx, cfg, logger)
	notifier := notifications.NewService(cfg)
	stageDeps := pipeline.DepsFromConfig(cfg, logger)
	stages := pipeline.NewStageSet(stageDeps)
	manager := workflow.NewManager(cfg, st, stages, logger,
		workflow.WithPageCounter(stageDeps.Renderer),
		workflow.WithNotifier(notifier),
		workflow.WithStatusSinks(sinks...),
	)

	d, err := daemon.New(cfg, st, logger, manager,
		daemon.WithNotifier(notifier),
		daemon.WithClosers(closers...),
		daemon.WithLogPath(logPath),
	)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, the cache directory lock and the API bind address"),
			logging.String(logging.FieldImpact, "submissions are rejected until the daemon starts"),
		)
	}

	<-signalCtx.Done()
	d.Stop()
	logger.Info("panelcast daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// connectSinks opens the optional status mirrors. A sink that cannot connect
// is logged and skipped so the pipeline still runs.
func connectSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]workflow.StatusSink, []io.Closer) {
	var (
		sinks   []workflow.StatusSink
		closers []io.Closer
	)
	if cfg.StatusCache.Enabled {
		cache, err := statuscache.Connect(ctx, cfg.StatusCache)
		if err != nil {
			logging.WarnWithContext(logger, "status cache unavailable", "status_cache_unavailable",
				logging.Error(err),
				logging.String("addr", cfg.StatusCache.Addr),
				logging.String(logging.FieldImpact, "job status is not mirrored to redis"),
			)
		} else {
			sinks = append(sinks, cache)
			closers = append(closers, cache)
		}
	}
	if cfg.Events.Enabled {
		publisher, err := events.Connect(cfg.Events)
		if err != nil {
			logging.WarnWithContext(logger, "event publisher unavailable", "events_unavailable",
				logging.Error(err),
				logging.String("brokers", strings.Join(cfg.Events.Brokers, ",")),
				logging.String(logging.FieldImpact, "job lifecycle events are not published"),
			)
		} else {
			sinks = append(sinks, publisher)
			closers = append(closers, publisher)
		}
	}
	return sinks, closers
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "panelcastd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// pruneRunLogs removes all but the newest keep run logs. Names sort by
// timestamp.
func pruneRunLogs(logger *slog.Logger, dir, current string, keep int) {
	matches, err := filepath.Glob(filepath.Join(dir, runLogPattern))
	if err != nil || len(matches) <= keep {
		return
	}
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-keep] {
		if path == current {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Debug("failed to prune run log", logging.String("path", path), logging.Error(err))
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("collaborator_base_url", cfg.Collaborators.BaseURL),
		logging.Bool("collaborator_key_present", strings.TrimSpace(cfg.Collaborators.APIKey) != ""),
		logging.Bool("status_cache_enabled", cfg.StatusCache.Enabled),
		logging.Bool("events_enabled", cfg.Events.Enabled),
		logging.Bool("notifications_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
