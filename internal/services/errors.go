package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks terminal input errors (bad format, oversize upload). Never retried.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks worker timeouts and transport failures. Retried up to the configured ceiling.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks unrecoverable worker failures. Never retried.
	ErrPermanent = errors.New("permanent failure")
	// ErrStale marks duplicate or out-of-order events observed after a terminal transition.
	// Logged and ignored, never surfaced to users.
	ErrStale = errors.New("stale transition")
	// ErrPrecondition marks requests whose dependencies have not settled yet.
	// Surfaced synchronously to the caller.
	ErrPrecondition = errors.New("precondition not met")
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a stage error should re-enter the retry path.
// Unclassified errors are treated as transient so flaky transports get the
// benefit of the retry ceiling.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPermanent), errors.Is(err, ErrStale), errors.Is(err, ErrPrecondition):
		return false
	default:
		return true
	}
}

// UserMessage extracts a human-readable message stripped of marker prefixes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrValidation, ErrTransient, ErrPermanent, ErrStale, ErrPrecondition, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
