package daemonctl

import (
	"errors"
	"os"
	"syscall"
	"time"

	"panelcast/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning reports that nothing answers on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// poll calls check until it reports done or timeout passes. The last error
// from check is returned on timeout.
func poll(timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var last error
	for {
		done, err := check()
		if done {
			return nil
		}
		if err != nil {
			last = err
		}
		if time.Now().After(deadline) {
			if last == nil {
				last = errors.New("timed out")
			}
			return last
		}
		time.Sleep(pollInterval)
	}
}

// unreachable reports whether a dial error means no daemon is listening, as
// opposed to a permissions or protocol problem.
func unreachable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// listening reports whether a daemon answers on socketPath.
func listening(socketPath string) (bool, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return false, nil
		}
		return false, err
	}
	_ = client.Close()
	return true, nil
}
