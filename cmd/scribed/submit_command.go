package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/daemon"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var userID int64
	var language string
	var speakers int

	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Submit an audio file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(runCtx context.Context, d *daemon.Daemon) error {
				submitted, err := d.Submit(runCtx, userID, args[0], language, speakers)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s as task %s\n",
					filepath.Base(args[0]), submitted.ID)
				if submitted.DiarizationRequested() {
					fmt.Fprintln(cmd.OutOrStdout(), "Transcription and diarization queued")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Transcription queued (diarization disabled)")
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 1, "User the task belongs to")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language code (empty for autodetect)")
	cmd.Flags().IntVar(&speakers, "speakers", 0, "Expected speaker count (0 for autodetect)")
	return cmd
}
