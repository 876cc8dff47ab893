package session

import (
	"errors"
	"fmt"
)

// Kind classifies why a session ended badly. Every kind is terminal.
type Kind string

const (
	KindExtractionFailure       Kind = "extraction_failure"
	KindConfigurationFailure    Kind = "configuration_failure"
	KindDetectionFailure        Kind = "detection_failure"
	KindTranslationSetupFailure Kind = "translation_setup_failure"
	KindStreamingCanceled       Kind = "streaming_canceled"
)

// Cause tells who ended a canceled session. The recognizer canceling is a
// provider cause; a user cancel, a replacing session or shutdown are local.
type Cause string

const (
	CauseLocal    Cause = "local"
	CauseProvider Cause = "provider"
)

type Error struct {
	Kind   Kind
	Cause  Cause
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) && se != nil {
		return se.Kind, true
	}
	return "", false
}
