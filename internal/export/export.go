// Package export renders merged transcripts into the supported artifact
// formats: plain text, SubRip, WebVTT, JSON, and Word documents.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"scribe/internal/merge"
	"scribe/internal/services"
	"scribe/internal/task"
)

// Option keys understood by the renderers.
const (
	OptionIncludeTimestamps = "include_timestamps"
	OptionIncludeSpeakers   = "include_speakers"
)

// Options controls transcript rendering. Both toggles default to on.
type Options struct {
	IncludeTimestamps bool
	IncludeSpeakers   bool
}

// OptionsFromMap decodes the option map carried on an export request.
func OptionsFromMap(raw map[string]any) Options {
	opts := Options{IncludeTimestamps: true, IncludeSpeakers: true}
	if raw == nil {
		return opts
	}
	if v, ok := raw[OptionIncludeTimestamps].(bool); ok {
		opts.IncludeTimestamps = v
	}
	if v, ok := raw[OptionIncludeSpeakers].(bool); ok {
		opts.IncludeSpeakers = v
	}
	return opts
}

// Render produces the artifact bytes for one transcript in the given format.
func Render(format task.ExportFormat, transcript merge.Transcript, opts Options) ([]byte, error) {
	switch format {
	case task.ExportTXT:
		return renderTXT(transcript, opts), nil
	case task.ExportSRT:
		return renderSRT(transcript, opts), nil
	case task.ExportVTT:
		return renderVTT(transcript, opts), nil
	case task.ExportJSON:
		return renderJSON(transcript)
	case task.ExportDOCX:
		return renderDOCX(transcript, opts)
	default:
		return nil, services.Wrap(services.ErrValidation, "export", "render", fmt.Sprintf("unknown format %q", format), nil)
	}
}

// Extension returns the file extension for a format, without the dot.
func Extension(format task.ExportFormat) string {
	return string(format)
}

// languageName resolves a BCP 47 or ISO 639 code to an English display name.
// Unknown codes fall back to the raw code.
func languageName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}

func speakerLabel(id *int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("Speaker %d", *id+1)
}

func clockTime(seconds float64, decimalSep string) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, decimalSep, ms)
}

func renderTXT(transcript merge.Transcript, opts Options) []byte {
	var b strings.Builder
	if name := languageName(transcript.Language); name != "" {
		fmt.Fprintf(&b, "Language: %s\n", name)
	}
	if transcript.NumSpeakers > 0 {
		fmt.Fprintf(&b, "Speakers: %d\n", transcript.NumSpeakers)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	for _, seg := range transcript.Segments {
		line := transcriptLine(seg, opts)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func transcriptLine(seg merge.Segment, opts Options) string {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return ""
	}
	var parts []string
	if opts.IncludeTimestamps {
		parts = append(parts, "["+clockTime(seg.StartTime, ".")[:8]+"]")
	}
	if opts.IncludeSpeakers {
		if label := speakerLabel(seg.SpeakerID); label != "" {
			parts = append(parts, label+":")
		}
	}
	parts = append(parts, text)
	return strings.Join(parts, " ")
}

func renderSRT(transcript merge.Transcript, opts Options) []byte {
	var b strings.Builder
	for i, seg := range transcript.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", clockTime(seg.StartTime, ","), clockTime(seg.EndTime, ","))
		b.WriteString(cueText(seg, opts))
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func renderVTT(transcript merge.Transcript, opts Options) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range transcript.Segments {
		fmt.Fprintf(&b, "%s --> %s\n", clockTime(seg.StartTime, "."), clockTime(seg.EndTime, "."))
		b.WriteString(cueText(seg, opts))
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func cueText(seg merge.Segment, opts Options) string {
	text := strings.TrimSpace(seg.Text)
	if opts.IncludeSpeakers {
		if label := speakerLabel(seg.SpeakerID); label != "" {
			return label + ": " + text
		}
	}
	return text
}

func renderJSON(transcript merge.Transcript) ([]byte, error) {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return append(data, '\n'), nil
}
