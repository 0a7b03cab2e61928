package main

import (
	"github.com/spf13/cobra"

	"dashvault/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the dashvault daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var opts daemonrun.Options
			if logLevel != nil {
				opts.LogLevel = *logLevel
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
}
