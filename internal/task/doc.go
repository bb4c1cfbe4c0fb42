// Package task defines the domain entities of the transcription pipeline and
// their lifecycle state machines.
//
// Every result entity (transcription, diarization, export) moves through
// pending → in_progress → {completed | failed}; cancellation can park a
// non-terminal stage in skipped. Terminal states reject further transitions
// with services.ErrStale, which is what makes event handlers safe against
// duplicate and late deliveries. The Task aggregate groups one audio file
// with its sub-results and answers settlement questions; it never persists
// itself; repositories store snapshots, the coordinator owns transitions.
package task
