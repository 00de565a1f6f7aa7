package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/fingerprint"
	"panelcast/internal/logging"
	"panelcast/internal/services"
	"panelcast/internal/share"
	"panelcast/internal/workflow"
)

type apiServer struct {
	bind     string
	token    string
	maxBytes int64
	logger   *slog.Logger
	daemon   *Daemon
	jobs     *api.JobService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		token:    cfg.Paths.APIToken,
		maxBytes: cfg.MaxUploadBytes(),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		jobs:     api.NewJobService(d.workflow),
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	private := http.NewServeMux()
	private.HandleFunc("POST /api/comics", s.handleSubmit)
	private.HandleFunc("GET /api/jobs", s.handleListJobs)
	private.HandleFunc("GET /api/jobs/{id}/status", s.handleJobStatus)
	private.HandleFunc("GET /api/jobs/{id}/manifest", s.handleJobManifest)
	private.HandleFunc("POST /api/jobs/{id}/play", s.handleMintShare)
	private.HandleFunc("POST /api/jobs/{id}/reprocess", s.handleReprocess)
	private.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	private.HandleFunc("POST /api/fingerprints/{fp}/reprocess", s.handleReprocessFingerprint)
	private.HandleFunc("GET /api/status", s.handleStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", authMiddleware(s.token, private))
	mux.HandleFunc("GET /play/{token}", s.handlePlayback)
	mux.HandleFunc("GET /play/{token}/assets/{path...}", s.handlePlaybackAsset)
	return requestIDMiddleware(s.accessLog(mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "HTTP clients cannot reach the daemon"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	_ = s.listener.Close()
	s.listener = nil
	s.server = nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubmitQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				Kind:  string(services.KindInput),
			})
			return
		}
		s.writeError(w, r, services.Wrap(services.ErrInput, "", "submit", "read upload", err))
		return
	}
	req.Source = body

	res, err := s.daemon.workflow.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, submitStatus(res), api.FromSubmitResult(res))
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	stages, err := api.ParseStages(nonEmpty(r.URL.Query()["stage"]))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jobs, err := s.jobs.List(r.Context(), stages...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleJobManifest(w http.ResponseWriter, r *http.Request) {
	doc, err := s.daemon.workflow.GetManifest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *apiServer) handleMintShare(w http.ResponseWriter, r *http.Request) {
	token, err := s.daemon.workflow.MintShareLink(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ShareLink{
		Token:       token,
		PlaybackURL: share.PlaybackURL(s.daemon.PlaybackBase(), token),
	})
}

func (s *apiServer) handleReprocess(w http.ResponseWriter, r *http.Request) {
	s.reprocess(w, r, r.PathValue("id"))
}

func (s *apiServer) handleReprocessFingerprint(w http.ResponseWriter, r *http.Request) {
	fp := strings.ToLower(strings.TrimSpace(r.PathValue("fp")))
	if !fingerprint.Valid(fp) {
		s.writeError(w, r, services.Wrap(services.ErrInput, "", "reprocess", "malformed fingerprint", nil))
		return
	}
	s.reprocess(w, r, fp)
}

func (s *apiServer) reprocess(w http.ResponseWriter, r *http.Request, ref string) {
	res, err := s.daemon.workflow.Reprocess(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromSubmitResult(res))
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.workflow.Cancel(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusDTO(s.daemon.Status(r.Context())))
}

func (s *apiServer) handlePlayback(w http.ResponseWriter, r *http.Request) {
	view, err := s.daemon.workflow.ResolveShareLink(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handlePlaybackAsset(w http.ResponseWriter, r *http.Request) {
	path, err := s.daemon.workflow.Resolver().AssetPath(r.Context(), r.PathValue("token"), r.PathValue("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

func parseSubmitQuery(r *http.Request) (workflow.SubmitRequest, error) {
	q := r.URL.Query()
	var req workflow.SubmitRequest
	var err error
	if req.Normalize, err = queryBool(q.Get("normalization")); err != nil {
		return req, services.Wrap(services.ErrInput, "", "submit", "normalization", err)
	}
	if req.Force, err = queryBool(q.Get("force_reprocess")); err != nil {
		return req, services.Wrap(services.ErrInput, "", "submit", "force_reprocess", err)
	}
	if req.Pages.Start, err = queryInt(q.Get("page_start")); err != nil {
		return req, services.Wrap(services.ErrInput, "", "submit", "page_start", err)
	}
	if req.Pages.End, err = queryInt(q.Get("page_end")); err != nil {
		return req, services.Wrap(services.ErrInput, "", "submit", "page_end", err)
	}
	req.Title = strings.TrimSpace(q.Get("title"))
	return req, nil
}

func queryBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func queryInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// submitStatus is 200 when the request was answered from the cache or
// joined a running job, 202 when a new job was started.
func submitStatus(res workflow.SubmitResult) int {
	if res.Cached || res.Joined {
		return http.StatusOK
	}
	return http.StatusAccepted
}

// StatusDTO renders a daemon status for the HTTP and socket surfaces.
func StatusDTO(status Status) api.DaemonStatus {
	depsOut := make([]api.DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		depsOut = append(depsOut, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		SocketPath:   status.SocketPath,
		APIAddress:   status.APIAddress,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: depsOut,
	}
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindNotReady, services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	s.writeJSON(w, status, api.FromError(err))
}
