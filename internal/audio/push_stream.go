package audio

import (
	"errors"
	"sync"
)

var (
	ErrStreamClosed  = errors.New("audio stream closed")
	ErrStreamAborted = errors.New("audio stream aborted by reader")
)

// PushStream is the write side of a live audio input. Each Write becomes one
// chunk for the reader; Close marks the end of audio.
type PushStream struct {
	mu     sync.Mutex
	chunks chan []byte
	closed bool

	abort     chan struct{}
	abortOnce sync.Once
}

func NewPushStream(depth int) *PushStream {
	if depth <= 0 {
		depth = 16
	}
	return &PushStream{
		chunks: make(chan []byte, depth),
		abort:  make(chan struct{}),
	}
}

// Write blocks while the reader is behind. It fails once the stream is closed or
// the reader has aborted.
func (p *PushStream) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrStreamClosed
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case p.chunks <- cp:
		return len(b), nil
	case <-p.abort:
		return 0, ErrStreamAborted
	}
}

// Close is idempotent.
func (p *PushStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.chunks)
	}
	return nil
}

// Chunks is closed after Close once every written chunk has been received.
func (p *PushStream) Chunks() <-chan []byte { return p.chunks }

// Abort is called by the reader when it stops consuming; blocked writers return.
func (p *PushStream) Abort() {
	p.abortOnce.Do(func() { close(p.abort) })
}
