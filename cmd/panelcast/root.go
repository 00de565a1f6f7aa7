package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	root := &cobra.Command{
		Use:           "panelcast",
		Short:         "Turn comic PDFs into narrated motion-comic manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if isOffline(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	ctx.bindFlags(root)

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newDaemonRunCommand(ctx),
		newSubmitCommand(ctx),
		newJobsCommand(ctx),
		newJobStatusCommand(ctx),
		newManifestCommand(ctx),
		newReprocessCommand(ctx),
		newCancelCommand(ctx),
		newShareCommand(ctx),
		newResolveCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
