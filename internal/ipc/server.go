package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"panelcast/internal/daemon"
	"panelcast/internal/logging"
)

// serviceName prefixes every RPC method.
const serviceName = "Panelcast"

// Server serves the daemon's control API as JSON-RPC on a unix socket. Each
// connection gets its own codec goroutine; Close hangs up on all of them.
type Server struct {
	socket   string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	done  bool
	wg    sync.WaitGroup
}

// NewServer replaces any stale socket at path and registers the control
// service for d. Request handlers run under ctx.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	svcCtx, cancel := context.WithCancel(ctx)
	srv := rpc.NewServer()
	if err := srv.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: svcCtx}); err != nil {
		cancel()
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return &Server{
		socket:   path,
		logger:   logger,
		listener: listener,
		rpc:      srv,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc listening", logging.String("socket", s.socket))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "ipc accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "CLI commands may fail to reach the daemon"),
				logging.String(logging.FieldErrorHint, "check permissions on the socket directory"),
			)
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting, cancels in-flight handlers, disconnects clients and
// removes the socket file.
func (s *Server) Close() {
	s.mu.Lock()
	s.done = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()

	if err := os.Remove(s.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "ipc socket cleanup failed", "ipc_socket_cleanup_failed",
			logging.String("socket", s.socket),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale socket makes `panelcast status` report a dead daemon"),
			logging.String(logging.FieldErrorHint, "delete the socket file by hand"),
		)
	}
}
