package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"scribe/internal/merge"
	"scribe/internal/services"
	"scribe/internal/task"
)

func speaker(id int) *int { return &id }

func sampleTranscript() merge.Transcript {
	return merge.Transcript{
		Language:    "en",
		NumSpeakers: 2,
		Segments: []merge.Segment{
			{StartTime: 0, EndTime: 2.5, Text: "Hello there.", SpeakerID: speaker(0)},
			{StartTime: 2.5, EndTime: 5, Text: "Hi, how are you?", SpeakerID: speaker(1)},
		},
	}
}

func TestRenderTXT(t *testing.T) {
	out, err := Render(task.ExportTXT, sampleTranscript(), OptionsFromMap(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)

	if !strings.Contains(text, "Language: English") {
		t.Fatalf("missing language header:\n%s", text)
	}
	if !strings.Contains(text, "Speakers: 2") {
		t.Fatalf("missing speaker count:\n%s", text)
	}
	if !strings.Contains(text, "[00:00:00] Speaker 1: Hello there.") {
		t.Fatalf("missing first line:\n%s", text)
	}
	if !strings.Contains(text, "[00:00:02] Speaker 2: Hi, how are you?") {
		t.Fatalf("missing second line:\n%s", text)
	}
}

func TestRenderTXTWithoutTimestampsOrSpeakers(t *testing.T) {
	opts := OptionsFromMap(map[string]any{
		OptionIncludeTimestamps: false,
		OptionIncludeSpeakers:   false,
	})
	out, err := Render(task.ExportTXT, sampleTranscript(), opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)

	if strings.Contains(text, "[00:") {
		t.Fatalf("timestamps leaked into output:\n%s", text)
	}
	if strings.Contains(text, "Speaker 1:") {
		t.Fatalf("speaker labels leaked into output:\n%s", text)
	}
	if !strings.Contains(text, "Hello there.") {
		t.Fatalf("missing transcript text:\n%s", text)
	}
}

func TestRenderSRT(t *testing.T) {
	out, err := Render(task.ExportSRT, sampleTranscript(), OptionsFromMap(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)

	if !strings.HasPrefix(text, "1\n00:00:00,000 --> 00:00:02,500\n") {
		t.Fatalf("bad first cue:\n%s", text)
	}
	if !strings.Contains(text, "2\n00:00:02,500 --> 00:00:05,000\nSpeaker 2: Hi, how are you?") {
		t.Fatalf("bad second cue:\n%s", text)
	}
}

func TestRenderVTT(t *testing.T) {
	out, err := Render(task.ExportVTT, sampleTranscript(), OptionsFromMap(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)

	if !strings.HasPrefix(text, "WEBVTT\n\n") {
		t.Fatalf("missing WEBVTT header:\n%s", text)
	}
	if !strings.Contains(text, "00:00:00.000 --> 00:00:02.500\nSpeaker 1: Hello there.") {
		t.Fatalf("bad cue:\n%s", text)
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	out, err := Render(task.ExportJSON, sampleTranscript(), OptionsFromMap(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var decoded merge.Transcript
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Language != "en" || len(decoded.Segments) != 2 {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
	if decoded.Segments[0].SpeakerID == nil || *decoded.Segments[0].SpeakerID != 0 {
		t.Fatalf("speaker lost: %+v", decoded.Segments[0])
	}
}

func TestRenderDOCXIsValidArchive(t *testing.T) {
	out, err := Render(task.ExportDOCX, sampleTranscript(), OptionsFromMap(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("not a zip archive: %v", err)
	}

	var document string
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open document part: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read document part: %v", err)
		}
		document = string(data)
	}
	if document == "" {
		t.Fatal("word/document.xml missing from archive")
	}
	if !strings.Contains(document, "Hello there.") {
		t.Fatalf("transcript text missing:\n%s", document)
	}
	if !strings.Contains(document, "Language: English") {
		t.Fatalf("language header missing:\n%s", document)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(task.ExportFormat("pdf"), sampleTranscript(), OptionsFromMap(nil))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLanguageNameFallsBackToCode(t *testing.T) {
	if got := languageName("zz-unknown"); got != "zz-unknown" {
		t.Fatalf("expected raw code fallback, got %q", got)
	}
	if got := languageName("de"); got != "German" {
		t.Fatalf("expected German, got %q", got)
	}
}
