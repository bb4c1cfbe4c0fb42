package merge

import (
	"math/rand"
	"testing"

	"scribe/internal/task"
)

func TestMergeAssignsCoveringSpeaker(t *testing.T) {
	transcription := []task.Segment{{StartTime: 0, EndTime: 5, Text: "hi", Confidence: 0.9}}
	speakers := []task.SpeakerSegment{{SpeakerID: 0, StartTime: 0, EndTime: 6, Confidence: 0.8}}

	merged := Merge(transcription, speakers)
	if len(merged) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(merged))
	}
	if merged[0].SpeakerID == nil || *merged[0].SpeakerID != 0 {
		t.Fatalf("expected speaker 0, got %v", merged[0].SpeakerID)
	}
	if merged[0].StartTime != 0 || merged[0].EndTime != 5 || merged[0].Text != "hi" {
		t.Fatalf("timing or text changed: %+v", merged[0])
	}
}

func TestMergeEmptyDiarizationLeavesSpeakersUnset(t *testing.T) {
	transcription := []task.Segment{
		{StartTime: 0, EndTime: 2, Text: "one"},
		{StartTime: 2, EndTime: 4, Text: "two"},
	}

	for _, speakers := range [][]task.SpeakerSegment{nil, {}} {
		merged := Merge(transcription, speakers)
		if len(merged) != 2 {
			t.Fatalf("expected 2 segments, got %d", len(merged))
		}
		for _, seg := range merged {
			if seg.SpeakerID != nil {
				t.Fatalf("expected unset speaker, got %d", *seg.SpeakerID)
			}
		}
	}
}

func TestMergePicksGreatestOverlap(t *testing.T) {
	transcription := []task.Segment{{StartTime: 0, EndTime: 10, Text: "long"}}
	speakers := []task.SpeakerSegment{
		{SpeakerID: 1, StartTime: 0, EndTime: 3},
		{SpeakerID: 2, StartTime: 3, EndTime: 10},
	}

	merged := Merge(transcription, speakers)
	if merged[0].SpeakerID == nil || *merged[0].SpeakerID != 2 {
		t.Fatalf("expected speaker 2 (7s overlap beats 3s), got %v", merged[0].SpeakerID)
	}
}

func TestMergeTieBreaksTowardEarlierStart(t *testing.T) {
	transcription := []task.Segment{{StartTime: 2, EndTime: 8, Text: "tie"}}
	speakers := []task.SpeakerSegment{
		{SpeakerID: 5, StartTime: 5, EndTime: 8},
		{SpeakerID: 3, StartTime: 2, EndTime: 5},
	}

	merged := Merge(transcription, speakers)
	if merged[0].SpeakerID == nil || *merged[0].SpeakerID != 3 {
		t.Fatalf("expected earlier-start speaker 3, got %v", merged[0].SpeakerID)
	}
}

func TestMergeNoOverlapLeavesUnset(t *testing.T) {
	transcription := []task.Segment{{StartTime: 0, EndTime: 1, Text: "gap"}}
	speakers := []task.SpeakerSegment{{SpeakerID: 9, StartTime: 5, EndTime: 6}}

	merged := Merge(transcription, speakers)
	if merged[0].SpeakerID != nil {
		t.Fatalf("expected unset speaker, got %d", *merged[0].SpeakerID)
	}
}

func TestMergeTouchingIntervalsDoNotOverlap(t *testing.T) {
	// [0,2) and a speaker starting exactly at 2 share no time.
	transcription := []task.Segment{{StartTime: 0, EndTime: 2, Text: "edge"}}
	speakers := []task.SpeakerSegment{{SpeakerID: 1, StartTime: 2, EndTime: 4}}

	merged := Merge(transcription, speakers)
	if merged[0].SpeakerID != nil {
		t.Fatalf("expected unset speaker for touching intervals, got %d", *merged[0].SpeakerID)
	}
}

func TestMergePreservesTimingAndOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var transcription []task.Segment
	cursor := 0.0
	for i := 0; i < 50; i++ {
		length := rng.Float64()*4 + 0.1
		transcription = append(transcription, task.Segment{
			StartTime: cursor,
			EndTime:   cursor + length,
			Text:      "seg",
		})
		cursor += length
	}
	var speakers []task.SpeakerSegment
	for s := 0.0; s < cursor; s += 7 {
		speakers = append(speakers, task.SpeakerSegment{
			SpeakerID: int(s) % 3,
			StartTime: s,
			EndTime:   s + 7,
		})
	}

	merged := Merge(transcription, speakers)
	if len(merged) != len(transcription) {
		t.Fatalf("segment count changed: %d vs %d", len(merged), len(transcription))
	}
	for i, seg := range merged {
		if seg.StartTime != transcription[i].StartTime || seg.EndTime != transcription[i].EndTime {
			t.Fatalf("timing changed at %d: %+v vs %+v", i, seg, transcription[i])
		}
		if seg.SpeakerID == nil {
			t.Fatalf("expected full speaker coverage, segment %d unset", i)
		}
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	transcription := []task.Segment{
		{StartTime: 0, EndTime: 3, Text: "a"},
		{StartTime: 3, EndTime: 6, Text: "b"},
	}
	speakers := []task.SpeakerSegment{
		{SpeakerID: 0, StartTime: 0, EndTime: 4},
		{SpeakerID: 1, StartTime: 4, EndTime: 6},
	}

	first := Merge(transcription, speakers)
	second := Merge(transcription, speakers)
	for i := range first {
		a, b := first[i], second[i]
		if a.Text != b.Text || (a.SpeakerID == nil) != (b.SpeakerID == nil) {
			t.Fatalf("non-deterministic output at %d", i)
		}
		if a.SpeakerID != nil && *a.SpeakerID != *b.SpeakerID {
			t.Fatalf("speaker differs at %d", i)
		}
	}
}
