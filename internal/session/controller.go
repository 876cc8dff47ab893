package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

var ErrSourceRequired = errors.New("video source required")

type Options struct {
	TargetLanguage string
	// SourceLanguage skips detection when set.
	SourceLanguage string
	Candidates     []string
	Padding        float64
}

// SelectRequest starts a session. Empty language fields fall back to the
// controller's options.
type SelectRequest struct {
	Source         string
	SourceLanguage string
	TargetLanguage string
}

// Archiver persists sessions that reached a terminal state.
type Archiver interface {
	Archive(ctx context.Context, snap Snapshot, segments []domain.CaptionSegment) error
}

// Controller owns the single current session.
type Controller struct {
	log  *logger.Logger
	deps Deps
	opts Options

	mu        sync.Mutex
	current   *Session
	archiver  Archiver
	observers []func(Snapshot)
	wg        sync.WaitGroup
}

func NewController(log *logger.Logger, deps Deps, opts Options) *Controller {
	if opts.Padding < 0 {
		opts.Padding = captions.DefaultPadding
	}
	return &Controller{log: log.With("service", "SessionController"), deps: deps, opts: opts}
}

func (c *Controller) SetArchiver(a Archiver) {
	c.mu.Lock()
	c.archiver = a
	c.mu.Unlock()
}

// OnStateChange registers fn for every session state transition.
func (c *Controller) OnStateChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Select replaces the current session with a new one for req.Source and starts
// its pipeline in the background. The previous session is canceled and
// discarded.
func (c *Controller) Select(ctx context.Context, req SelectRequest) (*Session, error) {
	ctx = ctxutil.Default(ctx)
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, ErrSourceRequired
	}
	opts := c.opts
	if req.SourceLanguage != "" {
		opts.SourceLanguage = req.SourceLanguage
	}
	if req.TargetLanguage != "" {
		opts.TargetLanguage = req.TargetLanguage
	}

	s := newSession(context.WithoutCancel(ctx), source, opts.TargetLanguage, opts.Padding, nil)
	s.notify = func(snap Snapshot) { c.notify(s, snap) }

	c.mu.Lock()
	prev := c.current
	c.current = s
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel("replaced")
		c.log.Info("Session replaced", "previous_session_id", prev.ID.String(), "session_id", s.ID.String())
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(s, opts)
	}()
	return s, nil
}

func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Lookup returns the caption of the current session at t seconds, or the
// sentinel caption when there is no session.
func (c *Controller) Lookup(t float64) (domain.Caption, bool) {
	return c.Current().Lookup(t)
}

// Cancel cancels the current session. It reports whether one was running.
func (c *Controller) Cancel(reason string) bool {
	s := c.Current()
	if s == nil || s.State().Terminal() {
		return false
	}
	s.Cancel(reason)
	return true
}

// Close cancels the current session and waits for background work.
func (c *Controller) Close(ctx context.Context) error {
	c.Cancel("shutdown")
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) notify(s *Session, snap Snapshot) {
	c.mu.Lock()
	observers := append([]func(Snapshot){}, c.observers...)
	archiver := c.archiver
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	if !snap.State.Terminal() || archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archiver.Archive(ctx, snap, s.Segments()); err != nil {
		c.log.Warn("Session archive failed", "session_id", snap.ID.String(), "error", err)
	}
}
