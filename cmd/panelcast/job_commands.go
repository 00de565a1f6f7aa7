package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/ipc"
	"panelcast/internal/logging"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var stages []string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, optionally filtered by stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(stages)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(resp.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Filter by stage (repeatable, e.g. --stage failed)")
	return cmd
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.JobID),
			titleOrDash(job.Title),
			job.StageLabel,
			strconv.Itoa(job.ProgressPct) + "%",
			job.Pages,
			logging.ShortFingerprint(job.Fingerprint),
			job.UpdatedAt,
		})
	}
	return renderTable([]column{
		{title: "Job"},
		{title: "Title"},
		{title: "Stage"},
		{title: "Progress", right: true},
		{title: "Pages"},
		{title: "Fingerprint"},
		{title: "Updated"},
	}, rows)
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show a job's stage, progress and counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				job, err := client.JobStatus(args[0])
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
}

func printJob(cmd *cobra.Command, job *api.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:          %s\n", job.JobID)
	fmt.Fprintf(out, "Title:        %s\n", titleOrDash(job.Title))
	fmt.Fprintf(out, "Stage:        %s (%d%%)\n", job.StageLabel, job.ProgressPct)
	fmt.Fprintf(out, "Plan:         %s\n", strings.Join(job.Plan, " > "))
	fmt.Fprintf(out, "Pages:        %s\n", job.Pages)
	fmt.Fprintf(out, "Normalize:    %s\n", yesNo(job.Normalize))
	fmt.Fprintf(out, "Forced:       %s\n", yesNo(job.Forced))
	fmt.Fprintf(out, "Fingerprint:  %s\n", job.Fingerprint)
	if job.Counts != nil {
		fmt.Fprintf(out, "Counts:       %d pages, %d panels, %d bubbles (%d voiced), %d panels with sfx, %d normalized\n",
			job.Counts.Pages, job.Counts.Panels, job.Counts.Bubbles, job.Counts.VoicedBubbles, job.Counts.PanelsWithSFX, job.Counts.NormalizedPanels)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:        %s\n", job.Error)
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "Finished:     %s\n", job.FinishedAt)
	}
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <job-id>",
		Short: "Print the finished manifest as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Manifest(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, resp.Manifest)
			})
		},
	}
}

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <job-id|fingerprint>",
		Short: "Rebuild a manifest from its stored source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reprocess(args[0])
				if err != nil {
					return err
				}
				return printSubmit(cmd, ctx, resp)
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Cancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func newShareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "share <job-id>",
		Short: "Mint a public playback link for a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Share(args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.PlaybackURL)
				return nil
			})
		},
	}
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <token>",
		Short: "Print the public manifest behind a share token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resolve(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, resp.Manifest)
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func titleOrDash(title string) string {
	if strings.TrimSpace(title) == "" {
		return "-"
	}
	return title
}
