package pipeline

import (
	"errors"
	"fmt"

	"github.com/podcraft/speech-gateway/internal/audio"
	"github.com/podcraft/speech-gateway/internal/backend"
	"github.com/podcraft/speech-gateway/internal/limits"
	"github.com/podcraft/speech-gateway/internal/quality"
)

// Class buckets a request failure for status mapping and logging.
type Class int

const (
	// ClassInput is a client fault: bad parameters, empty upload,
	// unsupported language, audio the tools reject.
	ClassInput Class = iota + 1
	// ClassInfrastructure is a service fault callers may retry later:
	// missing binaries, absent weights, failed model loads.
	ClassInfrastructure
	// ClassOutput means a model loaded fine but produced structurally
	// invalid results.
	ClassOutput
	// ClassQueueTimeout means the request waited too long for a gate slot.
	ClassQueueTimeout
	// ClassInternal is the last-resort bucket; clients only see a generic
	// message.
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassInfrastructure:
		return "infrastructure"
	case ClassOutput:
		return "output"
	case ClassQueueTimeout:
		return "queue_timeout"
	default:
		return "internal"
	}
}

// Error is a classified pipeline failure. Message is safe to return to
// clients; the wrapped cause carries full detail for logs only.
type Error struct {
	Class   Class
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// ClientMessage is what the HTTP layer may expose. Internal errors never
// leak detail.
func (e *Error) ClientMessage() string {
	if e.Class == ClassInternal {
		return "internal server error"
	}
	return e.Message
}

func badInput(format string, args ...any) *Error {
	return &Error{Class: ClassInput, Message: fmt.Sprintf(format, args...)}
}

func wrap(class Class, err error, message string) *Error {
	return &Error{Class: class, Message: message, cause: err}
}

// classify folds an arbitrary pipeline error into the taxonomy. Already
// classified errors pass through; known sentinels from the audio, backend,
// limits, and quality packages map to their class; everything else is
// internal.
func classify(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, audio.ErrEmptyUpload):
		return wrap(ClassInput, err, "uploaded file is empty")
	case errors.Is(err, audio.ErrBadInput):
		return wrap(ClassInput, err, "audio could not be processed")
	case errors.Is(err, quality.ErrBadSettings):
		return wrap(ClassInput, err, err.Error())
	case errors.Is(err, audio.ErrInfrastructure):
		return wrap(ClassInfrastructure, err, "audio tooling unavailable")
	case errors.Is(err, backend.ErrWeightsMissing):
		return wrap(ClassInfrastructure, err, "model is not available")
	case errors.Is(err, backend.ErrRunnerMissing):
		return wrap(ClassInfrastructure, err, "model runner unavailable")
	case errors.Is(err, backend.ErrRunnerOutput):
		return wrap(ClassOutput, err, "model produced invalid output")
	case errors.Is(err, quality.ErrScorerOutput):
		return wrap(ClassOutput, err, "quality scorer produced invalid output")
	case errors.Is(err, limits.ErrQueueTimeout):
		return wrap(ClassQueueTimeout, err, "service is at capacity, try again later")
	default:
		return wrap(ClassInternal, err, "internal server error")
	}
}
