package daemonctl

import (
	"context"
	"errors"
	"os"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/deps"
	"panelcast/internal/ipc"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

const offlineQueryTimeout = 2 * time.Second

// BuildStatusSnapshot returns the daemon's own status when it answers. When
// it does not, the snapshot is assembled from the manifest database and the
// local binary checks, with Running left false.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil {
			return status, nil
		}
	}

	counts := make(map[string]int, len(stage.All()))
	for _, name := range stage.All() {
		counts[string(name)] = 0
	}
	status := &api.DaemonStatus{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		SocketPath:   cfg.SocketPath(),
		Workflow:     api.WorkflowStatus{ActiveJobs: []string{}, StageCounts: counts},
		Dependencies: ResolveDependencies(cfg),
	}
	// Opening the store would create an empty database; skip when absent.
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		return status, nil
	}
	st, err := store.Open(cfg)
	if err != nil {
		return status, nil
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(ctx, offlineQueryTimeout)
	defer cancel()
	if stats, err := st.Stats(ctx); err == nil {
		for name, n := range stats {
			counts[string(name)] = n
		}
	}
	if n, err := st.CacheSize(ctx); err == nil {
		status.Workflow.CacheEntries = n
	}
	return status, nil
}

// ResolveDependencies checks the external binaries cfg needs.
func ResolveDependencies(cfg *config.Config) []api.DependencyStatus {
	checks := deps.CheckBinaries(deps.Requirements(cfg))
	out := make([]api.DependencyStatus, 0, len(checks))
	for _, check := range checks {
		out = append(out, api.DependencyStatus{
			Name:        check.Name,
			Command:     check.Command,
			Description: check.Description,
			Optional:    check.Optional,
			Available:   check.Available,
			Detail:      check.Detail,
		})
	}
	return out
}
