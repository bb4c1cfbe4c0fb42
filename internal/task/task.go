package task

// Task is the synthesized aggregate for one submitted audio file. It is
// assembled from repository snapshots; only the coordinator mutates it.
type Task struct {
	ID            string
	Audio         *AudioFile
	Transcription *Transcription
	Diarization   *Diarization
	Exports       []*Export
	Cancelled     bool
}

// DiarizationRequested reports whether a diarization stage was started for
// this task. Diarization is skipped entirely when disabled for the user.
func (t *Task) DiarizationRequested() bool {
	return t.Diarization != nil
}

// StagesSettled reports whether both sub-results have reached a terminal
// state. An absent diarization counts as settled. The coordinator evaluates
// this under the per-task lock so the two completion handlers cannot both
// observe "the other stage just settled".
func (t *Task) StagesSettled() bool {
	if t.Transcription == nil || !t.Transcription.Status.Terminal() {
		return false
	}
	if t.Diarization != nil && !t.Diarization.Status.Terminal() {
		return false
	}
	return true
}

// Settled reports whether the task will not transition further: the audio
// was rejected, the task was cancelled, or all requested stages are terminal.
func (t *Task) Settled() bool {
	if t.Audio != nil && !t.Audio.IsValid && t.Audio.ErrorMessage != "" {
		return true
	}
	if t.Cancelled {
		return true
	}
	return t.StagesSettled()
}

// Mergeable reports whether the merge engine should run: transcription
// succeeded and every requested stage is terminal. Diarization failure does
// not block the transcription-only path.
func (t *Task) Mergeable() bool {
	if !t.StagesSettled() {
		return false
	}
	return t.Transcription.Status == StatusCompleted
}

// Failed reports whether the critical path failed: invalid audio or a
// permanently failed transcription.
func (t *Task) Failed() bool {
	if t.Audio != nil && !t.Audio.IsValid && t.Audio.ErrorMessage != "" {
		return true
	}
	return t.Transcription != nil && t.Transcription.Status == StatusFailed
}
