package daemonctl

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"panelcast/internal/ipc"
)

// LaunchOptions are forwarded to the detached `panelcast daemon` process.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// EnsureStarted connects to the daemon, launching it from executable first
// when nothing listens on socketPath, and asks it to start its workflow.
func EnsureStarted(socketPath, executable string, opts LaunchOptions, wait time.Duration) (StartResult, error) {
	launched := false
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := launch(executable, opts); err != nil {
			return StartResult{}, err
		}
		launched = true
		dialErr := poll(wait, func() (bool, error) {
			client, err = ipc.Dial(socketPath)
			return err == nil, err
		})
		if dialErr != nil {
			return StartResult{}, fmt.Errorf("daemon failed to start: %w", dialErr)
		}
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	result := StartResult{State: StartStateStarted, Launched: launched, Message: strings.TrimSpace(resp.Message)}
	if !resp.Started {
		result.State = StartStateRequested
		if result.Message == "" {
			result.Message = "Start request sent"
		}
	}
	return result, nil
}

// launch starts `executable daemon` in its own session so it outlives the CLI.
func launch(executable string, opts LaunchOptions) error {
	if strings.TrimSpace(executable) == "" {
		return fmt.Errorf("launch daemon: executable path is empty")
	}
	args := []string{"daemon"}
	if v := strings.TrimSpace(opts.ConfigPath); v != "" {
		args = append(args, "--config", v)
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		args = append(args, "--log-level", v)
	}
	proc := exec.Command(executable, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}
