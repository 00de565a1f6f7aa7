package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"panelcast/internal/config"
	"panelcast/internal/ipc"
)

type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate asks the daemon to stop over IPC and sends SIGTERM. If the
// socket still answers after grace, the process is killed via its pid file.
func StopAndTerminate(cfg *config.Config, grace time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	var result StopResult
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result.StopAcknowledged = resp.Stopped

	if result.PID > 0 && result.PID != os.Getpid() {
		if proc, err := os.FindProcess(result.PID); err == nil {
			_ = proc.Signal(syscall.SIGTERM)
		}
	}
	gone := poll(grace, func() (bool, error) {
		up, err := listening(socketPath)
		return !up && err == nil, err
	})
	if gone == nil {
		return result, nil
	}

	alive, livePID, err := ProcessInfo(socketPath)
	if err != nil || !alive {
		return result, nil
	}
	if livePID == 0 {
		livePID = result.PID
	}
	killed, err := ForceKillProcess(cfg.PIDPath(), livePID)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// ProcessInfo reports whether the daemon answers on socketPath and its PID.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ForceKillProcess SIGKILLs the pid recorded in pidPath, or fallbackPID when
// the file is missing, and removes the pid file. The kernel drops the
// daemon's flock with the process.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid, err := readPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("no daemon pid known (pid file %s)", pidPath)
	case pid == os.Getpid():
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pid, fmt.Errorf("remove pid file %s: %w", pidPath, err)
	}
	return pid, nil
}

// readPID returns 0 when the file is absent or does not hold a positive pid.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid < 0 {
		return 0, nil
	}
	return pid, nil
}
