package events

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of every bus message.
type envelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Encode serializes an event into its wire envelope.
func Encode(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("encode: nil event")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Name(), err)
	}
	return json.Marshal(envelope{EventType: event.Name(), Data: data})
}

// Decode parses a wire envelope into its concrete event kind. Unknown kinds
// are an error; the event set is closed.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var event Event
	switch env.EventType {
	case NameTranscriptionRequested:
		event = &TranscriptionRequested{}
	case NameDiarizationRequested:
		event = &DiarizationRequested{}
	case NameExportRequested:
		event = &ExportRequested{}
	case NameAudioRejected:
		event = &AudioRejected{}
	case NameTranscriptionCompleted:
		event = &TranscriptionCompleted{}
	case NameDiarizationCompleted:
		event = &DiarizationCompleted{}
	case NameStageProgress:
		event = &StageProgress{}
	case NameTaskReady:
		event = &TaskReady{}
	case NameTaskFailed:
		event = &TaskFailed{}
	case NameExportCompleted:
		event = &ExportCompleted{}
	default:
		return nil, fmt.Errorf("decode: unknown event type %q", env.EventType)
	}

	if err := json.Unmarshal(env.Data, event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return event, nil
}
