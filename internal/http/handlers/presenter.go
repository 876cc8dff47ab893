package handlers

import (
	"net/http"

	"github.com/yungbote/audiolens-backend/internal/session"
)

// SessionErrorView is the user-facing description of a failed or canceled
// session.
type SessionErrorView struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Cause   string `json:"cause,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"status"`
}

type SessionView struct {
	session.Snapshot
	Error *SessionErrorView `json:"error,omitempty"`
}

var sessionErrorMessages = map[session.Kind]struct {
	message string
	status  int
}{
	session.KindExtractionFailure:       {"No audio track found.", http.StatusUnprocessableEntity},
	session.KindConfigurationFailure:    {"Invalid speech configuration.", http.StatusInternalServerError},
	session.KindDetectionFailure:        {"Language detection failed.", http.StatusUnprocessableEntity},
	session.KindTranslationSetupFailure: {"Translation setup failed.", http.StatusBadGateway},
	session.KindStreamingCanceled:       {"Translation canceled.", http.StatusBadGateway},
}

// PresentSessionError maps an error kind to a message and status. It returns
// nil for an empty kind. Only a cancellation raised by the recognizer is a
// gateway error; one the service asked for itself is reported as a conflict.
func PresentSessionError(kind session.Kind, cause session.Cause, detail string) *SessionErrorView {
	if kind == "" {
		return nil
	}
	m, ok := sessionErrorMessages[kind]
	if !ok {
		m.message, m.status = "Session failed.", http.StatusInternalServerError
	}
	if kind == session.KindStreamingCanceled && cause == session.CauseLocal {
		m.message, m.status = "Translation stopped.", http.StatusConflict
	}
	return &SessionErrorView{Message: m.message, Code: string(kind), Cause: string(cause), Detail: detail, Status: m.status}
}

func PresentSession(snap session.Snapshot) SessionView {
	return SessionView{Snapshot: snap, Error: PresentSessionError(snap.ErrorKind, snap.ErrorCause, snap.ErrorDetail)}
}
