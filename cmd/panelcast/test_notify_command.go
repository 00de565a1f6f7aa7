package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"panelcast/internal/ipc"
)

// newTestNotifyCommand asks the daemon to push a test ntfy message so an
// operator can check the topic before a long render.
func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				r := report{colorize: shouldColorize(cmd.OutOrStdout())}
				if resp.Sent {
					r.item("ntfy", toneOK, resp.Message)
				} else {
					r.item("ntfy", toneWarn, resp.Message)
				}
				for _, line := range r.lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}
