package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput         = errors.New("invalid input")
	ErrStageFailure  = errors.New("stage failure")
	ErrNotFound      = errors.New("not found")
	ErrNotReady      = errors.New("not ready")
	ErrConflict      = errors.New("concurrency conflict")
	ErrTimeout       = errors.New("timeout")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrInvariant     = errors.New("invariant violation")
)

// Kind names the error classes callers branch on.
type Kind string

const (
	KindInput     Kind = "input"
	KindNotFound  Kind = "not_found"
	KindNotReady  Kind = "not_ready"
	KindConflict  Kind = "conflict"
	KindStage     Kind = "stage_failure"
	KindInvariant Kind = "invariant"
	KindInternal  Kind = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStageFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err by the first marker it carries.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	case errors.Is(err, ErrStageFailure), errors.Is(err, ErrTimeout), errors.Is(err, ErrExternalTool):
		return KindStage
	default:
		return KindInternal
	}
}

// FromKind rebuilds a marker-tagged error from a kind and message, used when
// errors cross the IPC boundary as plain strings.
func FromKind(kind Kind, message string) error {
	var marker error
	switch kind {
	case KindInput:
		marker = ErrInput
	case KindNotFound:
		marker = ErrNotFound
	case KindNotReady:
		marker = ErrNotReady
	case KindConflict:
		marker = ErrConflict
	case KindStage:
		marker = ErrStageFailure
	case KindInvariant:
		marker = ErrInvariant
	default:
		return errors.New(message)
	}
	prefix := marker.Error() + ": "
	return fmt.Errorf("%w: %s", marker, strings.TrimPrefix(message, prefix))
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
