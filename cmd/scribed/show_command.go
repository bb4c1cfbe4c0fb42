package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/daemon"
	"scribe/internal/task"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the pipeline state of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(runCtx context.Context, d *daemon.Daemon) error {
				aggregate, err := d.Task(runCtx, args[0])
				if err != nil {
					return err
				}
				renderTask(cmd.OutOrStdout(), d, aggregate)
				return nil
			})
		},
	}
}

func renderTask(out io.Writer, d *daemon.Daemon, aggregate *task.Task) {
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Task %s\n", aggregate.ID)
	if aggregate.Audio != nil {
		fmt.Fprintf(out, "%sFile: %s (%s)\n", statusIndent,
			aggregate.Audio.OriginalFilename, aggregate.Audio.Format)
	}
	if aggregate.Cancelled {
		fmt.Fprintln(out, renderStatusLine("task", statusWarn, "cancelled", colorize))
	}

	fmt.Fprintln(out, audioLine(aggregate.Audio, colorize))
	fmt.Fprintln(out, stageLine("transcription", transcriptionSummary(aggregate.Transcription), colorize))
	if aggregate.DiarizationRequested() {
		fmt.Fprintln(out, stageLine("diarization", diarizationSummary(aggregate.Diarization), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("diarization", statusInfo, "not requested", colorize))
	}

	if progress, ok := d.Progress(aggregate.ID); ok {
		fmt.Fprintln(out, renderStatusLine("progress", statusInfo,
			fmt.Sprintf("%s %.0f%% %s", progress.Stage, progress.Percent, progress.Message), colorize))
	}

	if aggregate.Audio != nil && aggregate.Audio.ProcessedPath != "" {
		fmt.Fprintln(out, renderStatusLine("transcript", statusOK, aggregate.Audio.ProcessedPath, colorize))
	}

	for _, export := range aggregate.Exports {
		fmt.Fprintln(out, exportLine(export, colorize))
	}
}

type stageSummary struct {
	status  task.Status
	message string
}

func stageLine(label string, summary stageSummary, colorize bool) string {
	text := string(summary.status)
	if summary.message != "" {
		text = fmt.Sprintf("%s (%s)", text, summary.message)
	}
	return renderStatusLine(label, stageKind(summary.status), text, colorize)
}

func audioLine(audio *task.AudioFile, colorize bool) string {
	switch {
	case audio == nil:
		return renderStatusLine("audio", statusError, "missing", colorize)
	case !audio.IsValid && audio.ErrorMessage != "":
		return renderStatusLine("audio", statusError, audio.ErrorMessage, colorize)
	default:
		return renderStatusLine("audio", statusOK, "valid", colorize)
	}
}

func transcriptionSummary(tr *task.Transcription) stageSummary {
	if tr == nil {
		return stageSummary{status: task.StatusSkipped, message: "never started"}
	}
	summary := stageSummary{status: tr.Status}
	switch {
	case tr.Status == task.StatusFailed:
		summary.message = tr.ErrorMessage
	case tr.Status == task.StatusCompleted && tr.Language != "":
		summary.message = fmt.Sprintf("%d segments, language %s", len(tr.Segments), tr.Language)
	case tr.Attempt > 0:
		summary.message = fmt.Sprintf("attempt %d", tr.Attempt)
	}
	return summary
}

func diarizationSummary(d *task.Diarization) stageSummary {
	if d == nil {
		return stageSummary{status: task.StatusSkipped}
	}
	summary := stageSummary{status: d.Status}
	switch {
	case d.Status == task.StatusFailed:
		summary.message = d.ErrorMessage
	case d.Status == task.StatusCompleted:
		summary.message = fmt.Sprintf("%d speakers", d.NumSpeakers)
	case d.Attempt > 0:
		summary.message = fmt.Sprintf("attempt %d", d.Attempt)
	}
	return summary
}

func exportLine(export *task.Export, colorize bool) string {
	label := "export " + strings.ToUpper(string(export.Format))
	text := string(export.Status)
	switch {
	case export.Status == task.StatusCompleted && export.FileURL != "":
		text = export.FileURL
	case export.Status == task.StatusCompleted:
		text = export.FilePath
	case export.Status == task.StatusFailed:
		text = export.ErrorMessage
	}
	return renderStatusLine(label, stageKind(export.Status), text, colorize)
}
