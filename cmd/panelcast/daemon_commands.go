package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/daemonctl"
	"panelcast/internal/stage"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the panelcast daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), LogLevel: startLogLevel},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				fmt.Fprintln(stdout, result.Message)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the daemon log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the panelcast daemon and terminate the process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, stage and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			for _, line := range renderStatus(status, shouldColorize(stdout)) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(status *api.DaemonStatus, colorize bool) []string {
	r := &report{colorize: colorize}
	r.section("Daemon")
	if status.Running {
		r.item("panelcast", toneOK, "Running (pid "+strconv.Itoa(status.PID)+")")
	} else {
		r.item("panelcast", toneWarn, "Not running (run `panelcast start`)")
	}
	if status.APIAddress != "" {
		r.item("HTTP API", toneInfo, status.APIAddress)
	}
	r.item("Database", toneInfo, status.DatabasePath)
	if status.LogPath != "" {
		r.item("Log", toneInfo, status.LogPath)
	}
	if status.Workflow.LastError != "" {
		r.item("Last error", toneError, status.Workflow.LastError)
	}

	if len(status.Workflow.StageHealth) > 0 {
		r.section("Stages")
		for _, health := range status.Workflow.StageHealth {
			if health.Ready {
				r.item(health.Name, toneOK, "Ready")
				continue
			}
			r.item(health.Name, toneError, health.Detail)
		}
	}

	r.section("Dependencies")
	for _, dep := range status.Dependencies {
		if dep.Available {
			r.item(dep.Name, toneOK, "Ready (command: "+dep.Command+")")
			continue
		}
		t := toneError
		if dep.Optional {
			t = toneWarn
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		r.item(dep.Name, t, detail)
	}

	r.section("Jobs")
	if rows := stageCountRows(status.Workflow.StageCounts); len(rows) == 0 {
		r.text("No jobs yet")
	} else {
		r.text(renderTable([]column{{title: "Stage"}, {title: "Count", right: true}}, rows))
	}
	r.text(fmt.Sprintf("Cached manifests: %d", status.Workflow.CacheEntries))
	return r.lines
}

// stageCountRows lists non-zero counts in pipeline order, unknown names last.
func stageCountRows(counts map[string]int) [][]string {
	order := make(map[string]int)
	for i, name := range stage.All() {
		order[string(name)] = i
	}
	names := make([]string, 0, len(counts))
	for name, count := range counts {
		if count > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{stage.Name(name).Label(), strconv.Itoa(counts[name])})
	}
	return rows
}
