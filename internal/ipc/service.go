package ipc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/daemon"
	"panelcast/internal/fingerprint"
	"panelcast/internal/logging"
	"panelcast/internal/logs"
	"panelcast/internal/services"
	"panelcast/internal/share"
	"panelcast/internal/workflow"
)

const (
	defaultFollowWait = time.Second
	// followSlack lets a follow request return its own timeout before the
	// context deadline cuts it off.
	followSlack = 500 * time.Millisecond
)

// service holds the RPC methods. net/rpc requires the exported
// (Req, *Resp) error shape; failures are returned through encodeError.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) jobs() *api.JobService { return api.NewJobService(s.daemon.Workflow()) }

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		*resp = StartResponse{Message: err.Error()}
		return nil
	}
	*resp = StartResponse{Started: true, Message: "daemon started"}
	s.logger.Info("workflow started over ipc", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("workflow stopped over ipc", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = daemon.StatusDTO(s.daemon.Status(s.ctx))
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	res, err := s.daemon.SubmitFile(s.ctx, req.Path, workflow.SubmitRequest{
		Pages:     fingerprint.PageRange{Start: req.PageStart, End: req.PageEnd},
		Normalize: req.Normalize,
		Force:     req.Force,
		Title:     req.Title,
	})
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromSubmitResult(res)
	s.logger.Info("comic submitted over ipc",
		logging.String(logging.FieldEventType, "submit"),
		logging.String(logging.FieldJobID, res.JobID),
		logging.Bool("cached", res.Cached),
	)
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	stages, err := api.ParseStages(req.Stages)
	if err != nil {
		return encodeError(err)
	}
	resp.Jobs, err = s.jobs().List(s.ctx, stages...)
	return encodeError(err)
}

func (s *service) JobStatus(req JobRequest, resp *JobResponse) error {
	job, err := s.jobs().Describe(s.ctx, req.JobID)
	if err != nil {
		return encodeError(err)
	}
	resp.Job = *job
	return nil
}

func (s *service) Manifest(req JobRequest, resp *ManifestResponse) error {
	var err error
	resp.Manifest, err = s.daemon.Workflow().GetManifest(s.ctx, req.JobID)
	return encodeError(err)
}

func (s *service) Reprocess(req ReprocessRequest, resp *SubmitResponse) error {
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		return encodeError(services.Wrap(services.ErrInput, "", "reprocess", "job id or fingerprint required", nil))
	}
	res, err := s.daemon.Workflow().Reprocess(s.ctx, ref)
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromSubmitResult(res)
	return nil
}

func (s *service) Share(req JobRequest, resp *ShareResponse) error {
	token, err := s.daemon.Workflow().MintShareLink(s.ctx, req.JobID)
	if err != nil {
		return encodeError(err)
	}
	*resp = ShareResponse{Token: token, PlaybackURL: share.PlaybackURL(s.daemon.PlaybackBase(), token)}
	return nil
}

func (s *service) Resolve(req ResolveRequest, resp *ResolveResponse) error {
	var err error
	resp.Manifest, err = s.daemon.Workflow().ResolveShareLink(s.ctx, req.Token)
	return encodeError(err)
}

func (s *service) Cancel(req JobRequest, resp *CancelResponse) error {
	if err := s.daemon.Workflow().Cancel(s.ctx, req.JobID); err != nil {
		return encodeError(err)
	}
	resp.Cancelled = true
	s.logger.Info("job cancelled over ipc",
		logging.String(logging.FieldEventType, "job_cancel"),
		logging.String(logging.FieldJobID, req.JobID),
	)
	return nil
}

// LogTail reads the daemon log. A follow request blocks for at most
// WaitMillis (one second when unset) waiting for new lines.
func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogPath()
	if path == "" {
		return nil
	}
	opts := logs.TailOptions{Offset: req.Offset, Limit: req.Limit, Follow: req.Follow, JobID: req.JobID}
	ctx := s.ctx
	if req.Follow {
		opts.Wait = time.Duration(req.WaitMillis) * time.Millisecond
		if opts.Wait <= 0 {
			opts.Wait = defaultFollowWait
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Wait+followSlack)
		defer cancel()
	}
	result, err := logs.Tail(ctx, path, opts)
	if err != nil && ctx.Err() == nil {
		return encodeError(err)
	}
	*resp = LogTailResponse{Lines: result.Lines, Offset: result.Offset}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	*resp = TestNotificationResponse{Sent: sent, Message: message}
	return encodeError(err)
}

// errors cross the socket as "kind|message"; decodeError rebuilds the marker
// so callers can still errors.Is against services sentinels.
const kindSeparator = "|"

func encodeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(string(services.KindOf(err)) + kindSeparator + err.Error())
}
