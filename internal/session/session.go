package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/domain"
)

// Snapshot is a point-in-time copy of a session's externally visible state.
type Snapshot struct {
	ID             uuid.UUID           `json:"id"`
	Source         string              `json:"source"`
	SourceLanguage string              `json:"source_language,omitempty"`
	TargetLanguage string              `json:"target_language"`
	State          domain.SessionState `json:"state"`
	ErrorKind      Kind                `json:"error_kind,omitempty"`
	ErrorDetail    string              `json:"error_detail,omitempty"`
	ErrorCause     Cause               `json:"error_cause,omitempty"`
	SegmentCount   int                 `json:"segment_count"`
	CreatedAt      time.Time           `json:"created_at"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	EndedAt        *time.Time          `json:"ended_at,omitempty"`
}

// Session is one video's translation run. It owns the caption buffer that the
// playback driver queries.
type Session struct {
	ID             uuid.UUID
	Source         string
	TargetLanguage string

	buffer *captions.Buffer

	mu             sync.RWMutex
	state          domain.SessionState
	sourceLanguage string
	err            *Error
	createdAt      time.Time
	startedAt      time.Time
	endedAt        time.Time
	cancelReason   string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	notify func(Snapshot)
}

func newSession(parent context.Context, source, target string, padding float64, notify func(Snapshot)) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:             uuid.New(),
		Source:         source,
		TargetLanguage: target,
		buffer:         captions.NewBuffer(padding),
		state:          domain.SessionIdle,
		createdAt:      time.Now().UTC(),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		notify:         notify,
	}
}

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err is the terminal error, nil unless the session failed or was canceled.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

func (s *Session) SourceLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceLanguage
}

func (s *Session) Buffer() *captions.Buffer { return s.buffer }

// Lookup returns the caption active at t seconds.
func (s *Session) Lookup(t float64) (domain.Caption, bool) {
	if s == nil {
		return domain.NoCaption, false
	}
	return s.buffer.Lookup(t)
}

func (s *Session) Segments() []domain.CaptionSegment { return s.buffer.Segments() }

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.ID,
		Source:         s.Source,
		SourceLanguage: s.sourceLanguage,
		TargetLanguage: s.TargetLanguage,
		State:          s.state,
		SegmentCount:   s.buffer.Len(),
		CreatedAt:      s.createdAt,
	}
	if s.err != nil {
		snap.ErrorKind = s.err.Kind
		snap.ErrorDetail = s.err.Detail
		snap.ErrorCause = s.err.Cause
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.endedAt.IsZero() {
		t := s.endedAt
		snap.EndedAt = &t
	}
	return snap
}

// Cancel stops the session. The first reason wins. It is a no-op once the
// session is terminal.
func (s *Session) Cancel(reason string) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.cancelReason == "" {
		s.cancelReason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) canceledReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelReason
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is terminal or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition moves the session to next when the state machine allows it.
// Terminal transitions freeze the buffer and release waiters.
func (s *Session) transition(next domain.SessionState, err *Error) bool {
	s.mu.Lock()
	if !s.state.CanTransitionTo(next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	now := time.Now().UTC()
	switch {
	case next == domain.SessionStreaming:
		s.startedAt = now
	case next.Terminal():
		s.endedAt = now
		s.err = err
		s.buffer.Freeze()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if next.Terminal() {
		s.cancel()
	}
	if s.notify != nil {
		s.notify(snap)
	}
	if next.Terminal() {
		close(s.done)
	}
	return true
}

func (s *Session) setSourceLanguage(lang string) {
	s.mu.Lock()
	s.sourceLanguage = lang
	s.mu.Unlock()
}
