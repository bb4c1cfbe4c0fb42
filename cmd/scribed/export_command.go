package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/coordinator"
	"scribe/internal/daemon"
	"scribe/internal/export"
	"scribe/internal/task"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var userID int64
	var format string
	var noTimestamps bool
	var noSpeakers bool

	cmd := &cobra.Command{
		Use:   "export <task-id>",
		Short: "Request a transcript export for a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := task.ParseExportFormat(format)
			if !ok {
				return fmt.Errorf("unknown export format %q (txt, srt, vtt, json, docx)", format)
			}

			options := map[string]any{}
			if noTimestamps {
				options[export.OptionIncludeTimestamps] = false
			}
			if noSpeakers {
				options[export.OptionIncludeSpeakers] = false
			}

			return ctx.withDaemon(cmd.Context(), func(runCtx context.Context, d *daemon.Daemon) error {
				created, err := d.RequestExport(runCtx, coordinator.ExportRequest{
					TaskID:  args[0],
					UserID:  userID,
					Format:  parsed,
					Options: options,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s export %s for task %s\n",
					created.Format, created.ID, created.TaskID)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 1, "User requesting the export")
	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Export format (txt, srt, vtt, json, docx)")
	cmd.Flags().BoolVar(&noTimestamps, "no-timestamps", false, "Omit timestamps from the rendered transcript")
	cmd.Flags().BoolVar(&noSpeakers, "no-speakers", false, "Omit speaker labels from the rendered transcript")
	return cmd
}
