package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/daemon"
	"scribe/internal/task"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List submitted tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(runCtx context.Context, d *daemon.Daemon) error {
				files, err := d.ListTasks(runCtx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				status := d.Status()
				fmt.Fprintf(out, "Database: %s\n", status.DBPath)
				if len(files) == 0 {
					fmt.Fprintln(out, "No tasks submitted")
					return nil
				}

				rows := make([][]string, 0, len(files))
				for _, audio := range files {
					if userID != 0 && audio.UserID != userID {
						continue
					}
					rows = append(rows, []string{
						audio.ID,
						audio.OriginalFilename,
						string(audio.Format),
						humanize.Bytes(uint64(audio.SizeBytes)),
						audioState(audio),
						humanize.Time(audio.UpdatedAt.Local()),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"TASK", "FILE", "FORMAT", "SIZE", "STATE", "UPDATED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "Only show tasks for this user (0 for all)")
	return cmd
}

func audioState(audio *task.AudioFile) string {
	switch {
	case !audio.IsValid && audio.ErrorMessage != "":
		return "rejected"
	case audio.ProcessedPath != "":
		return "ready"
	default:
		return "processing"
	}
}
