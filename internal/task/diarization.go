package task

import "time"

// SpeakerSegment is one timed interval attributed to a single speaker.
type SpeakerSegment struct {
	SpeakerID  int     `json:"speaker_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Diarization is the speaker diarization stage result for one audio file.
type Diarization struct {
	ID           string
	AudioFileID  string
	UserID       int64
	Status       Status
	NumSpeakers  int
	Segments     []SpeakerSegment
	ErrorMessage string
	Attempt      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Revision     int64
}

// MarkInProgress moves the result out of pending.
func (d *Diarization) MarkInProgress() error {
	next, err := d.Status.transition(StatusInProgress)
	if err != nil {
		return err
	}
	d.Status = next
	return nil
}

// MarkCompleted records the speaker segments.
func (d *Diarization) MarkCompleted(numSpeakers int, segments []SpeakerSegment) error {
	next, err := d.Status.transition(StatusCompleted)
	if err != nil {
		return err
	}
	d.Status = next
	d.NumSpeakers = numSpeakers
	d.Segments = segments
	d.ErrorMessage = ""
	return nil
}

// MarkFailed records a terminal failure reason.
func (d *Diarization) MarkFailed(reason string) error {
	next, err := d.Status.transition(StatusFailed)
	if err != nil {
		return err
	}
	d.Status = next
	d.ErrorMessage = reason
	return nil
}

// MarkSkipped parks a non-terminal result when diarization is disabled or the
// task is cancelled.
func (d *Diarization) MarkSkipped() error {
	next, err := d.Status.transition(StatusSkipped)
	if err != nil {
		return err
	}
	d.Status = next
	return nil
}
