package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/fingerprint"
	"panelcast/internal/ipc"
	"panelcast/internal/services"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		pages     string
		normalize bool
		force     bool
		title     string
		wait      bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <file.pdf>",
		Short: "Submit a comic PDF for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selection, err := fingerprint.ParsePageRange(pages)
			if err != nil {
				return fmt.Errorf("%w: %w", services.ErrInput, err)
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Path:      path,
					PageStart: selection.Start,
					PageEnd:   selection.End,
					Normalize: normalize,
					Force:     force,
					Title:     title,
				})
				if err != nil {
					return err
				}
				if !wait || resp.Cached {
					return printSubmit(cmd, ctx, resp)
				}
				job, err := waitForJob(cmd, client, resp.JobID, timeout)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				printJob(cmd, job)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pages, "pages", "", "Page range to process, e.g. 3-10 or 5-")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Letterbox panels to the target aspect ratio")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even when a cached manifest exists")
	cmd.Flags().StringVar(&title, "title", "", "Title recorded in the manifest (defaults to the file name)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum time to wait with --wait")
	return cmd
}

func printSubmit(cmd *cobra.Command, ctx *commandContext, resp *api.SubmitResponse) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	switch {
	case resp.Cached:
		fmt.Fprintf(out, "Cached manifest available (job %s)\n", resp.JobID)
	case resp.Joined:
		fmt.Fprintf(out, "Joined running job %s (%d%%)\n", resp.JobID, resp.ProgressPct)
	default:
		fmt.Fprintf(out, "Queued job %s\n", resp.JobID)
	}
	fmt.Fprintf(out, "Fingerprint: %s\n", resp.Fingerprint)
	return nil
}

// waitForJob polls until the job reaches done or failed. Progress lines are
// printed when the stage or percentage changes.
func waitForJob(cmd *cobra.Command, client *ipc.Client, jobID string, timeout time.Duration) (*api.Job, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := ""
	for {
		job, err := client.JobStatus(jobID)
		if err != nil {
			return nil, err
		}
		if marker := fmt.Sprintf("%s %d", job.Stage, job.ProgressPct); marker != last {
			last = marker
			fmt.Fprintf(cmd.ErrOrStderr(), "%3d%%  %s\n", job.ProgressPct, job.StageLabel)
		}
		switch job.Stage {
		case "done":
			return job, nil
		case "failed":
			return job, fmt.Errorf("job %s failed: %s", job.JobID, job.Error)
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("%w: job %s still %s after %s", services.ErrTimeout, jobID, job.Stage, timeout)
		}
		select {
		case <-cmd.Context().Done():
			return job, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
