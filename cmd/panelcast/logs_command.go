package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"panelcast/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines <= 0 {
				lines = 50
			}
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{
					Offset: -1,
					Limit:  lines,
					JobID:  strings.TrimSpace(jobID),
				})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				offset := resp.Offset
				for follow {
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
					resp, err = client.LogTail(ipc.LogTailRequest{
						Offset:     offset,
						Follow:     true,
						WaitMillis: 1000,
						JobID:      strings.TrimSpace(jobID),
					})
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					offset = resp.Offset
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job id")
	return cmd
}
