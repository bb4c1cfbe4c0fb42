package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/daemon"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(runCtx context.Context, d *daemon.Daemon) error {
				sent, message, err := d.TestNotification(runCtx)
				if message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), message)
				}
				if err != nil {
					return err
				}
				if !sent && message == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}
}
