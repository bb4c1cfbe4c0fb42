// Package merge combines transcription segments with diarization speaker
// segments into a speaker-labeled transcript. Merge is pure: same inputs,
// same output, no side effects.
package merge

import "scribe/internal/task"

// Segment is one speaker-labeled transcript line. SpeakerID is nil when no
// diarization segment overlapped the transcription segment.
type Segment struct {
	StartTime  float64  `json:"start_time"`
	EndTime    float64  `json:"end_time"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	SpeakerID  *int     `json:"speaker_id,omitempty"`
}

// Transcript is the merged, speaker-labeled document stored once a task
// settles. It is the input to every export rendering.
type Transcript struct {
	Language    string    `json:"language,omitempty"`
	NumSpeakers int       `json:"num_speakers,omitempty"`
	Segments    []Segment `json:"segments"`
}

// Merge assigns each transcription segment the speaker whose diarization
// interval overlaps it the most. Ties break toward the speaker segment with
// the earlier start time. Output preserves the transcription's count, order,
// and timing exactly.
func Merge(transcription []task.Segment, speakers []task.SpeakerSegment) []Segment {
	merged := make([]Segment, 0, len(transcription))
	for _, seg := range transcription {
		out := Segment{
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		}
		if speaker, ok := bestSpeaker(seg, speakers); ok {
			id := speaker
			out.SpeakerID = &id
		}
		merged = append(merged, out)
	}
	return merged
}

func bestSpeaker(seg task.Segment, speakers []task.SpeakerSegment) (int, bool) {
	var (
		bestID      int
		bestOverlap float64
		bestStart   float64
		found       bool
	)
	for _, sp := range speakers {
		o := overlap(seg.StartTime, seg.EndTime, sp.StartTime, sp.EndTime)
		if o <= 0 {
			continue
		}
		if !found || o > bestOverlap || (o == bestOverlap && sp.StartTime < bestStart) {
			bestID = sp.SpeakerID
			bestOverlap = o
			bestStart = sp.StartTime
			found = true
		}
	}
	return bestID, found
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	return end - start
}
