package ipc

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC connection to panelcastd over its unix socket. Errors
// returned by its methods carry the daemon-side kind (see services.KindOf).
type Client struct {
	rpc *rpc.Client
}

func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the connection; closing twice is harmless.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	if err := c.rpc.Close(); err != nil && !errors.Is(err, rpc.ErrShutdown) {
		return err
	}
	return nil
}

// invoke calls method with req and decodes the reply into a fresh Resp.
func invoke[Resp any](c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.rpc.Call(serviceName+"."+method, req, resp); err != nil {
		return nil, decodeError(err)
	}
	return resp, nil
}

func (c *Client) Start() (*StartResponse, error) {
	return invoke[StartResponse](c, "Start", StartRequest{})
}

func (c *Client) Stop() (*StopResponse, error) {
	return invoke[StopResponse](c, "Stop", StopRequest{})
}

func (c *Client) Status() (*StatusResponse, error) {
	return invoke[StatusResponse](c, "Status", StatusRequest{})
}

// Submit asks the daemon to read and process a PDF on its own filesystem.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	return invoke[SubmitResponse](c, "Submit", req)
}

// JobList returns jobs, restricted to stages when any are given.
func (c *Client) JobList(stages []string) (*JobListResponse, error) {
	return invoke[JobListResponse](c, "JobList", JobListRequest{Stages: stages})
}

func (c *Client) JobStatus(jobID string) (*Job, error) {
	resp, err := invoke[JobResponse](c, "JobStatus", JobRequest{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (c *Client) Manifest(jobID string) (*ManifestResponse, error) {
	return invoke[ManifestResponse](c, "Manifest", JobRequest{JobID: jobID})
}

// Reprocess forces a rebuild; ref is a job id or a fingerprint.
func (c *Client) Reprocess(ref string) (*SubmitResponse, error) {
	return invoke[SubmitResponse](c, "Reprocess", ReprocessRequest{Ref: ref})
}

func (c *Client) Share(jobID string) (*ShareResponse, error) {
	return invoke[ShareResponse](c, "Share", JobRequest{JobID: jobID})
}

func (c *Client) Resolve(token string) (*ResolveResponse, error) {
	return invoke[ResolveResponse](c, "Resolve", ResolveRequest{Token: token})
}

func (c *Client) Cancel(jobID string) (*CancelResponse, error) {
	return invoke[CancelResponse](c, "Cancel", JobRequest{JobID: jobID})
}

func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return invoke[LogTailResponse](c, "LogTail", req)
}

func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return invoke[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
