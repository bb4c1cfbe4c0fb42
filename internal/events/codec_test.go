package events_test

import (
	"testing"

	"scribe/internal/events"
	"scribe/internal/task"
)

func TestEncodeDecodeCommand(t *testing.T) {
	cmd := &events.TranscriptionRequested{
		TaskID:             "t1",
		AudioFileID:        "t1",
		UserID:             42,
		AudioPath:          "/work/t1.wav",
		Model:              task.ModelWhisperTurbo,
		AutoDetectLanguage: true,
		Attempt:            2,
	}

	raw, err := events.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := events.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	got, ok := decoded.(*events.TranscriptionRequested)
	if !ok {
		t.Fatalf("decoded type %T, want *TranscriptionRequested", decoded)
	}
	if got.TaskID != "t1" || got.Attempt != 2 || got.Model != task.ModelWhisperTurbo {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeCompletionWithSegments(t *testing.T) {
	done := &events.TranscriptionCompleted{
		TaskID:  "t2",
		Attempt: 0,
		Success: true,
		Segments: []task.Segment{
			{StartTime: 0, EndTime: 5, Text: "hi", Confidence: 0.9},
		},
	}
	raw, err := events.Encode(done)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := events.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := decoded.(*events.TranscriptionCompleted)
	if len(got.Segments) != 1 || got.Segments[0].Text != "hi" {
		t.Fatalf("segments lost in round trip: %+v", got)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	if _, err := events.Decode([]byte(`{"event_type":"MysteryEvent","data":{}}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	if _, err := events.Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
