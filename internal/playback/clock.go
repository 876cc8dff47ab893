package playback

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultRewind is how far Rewind moves back when no step is given.
const DefaultRewind = 10 * time.Second

// State is the externally visible playback position.
type State struct {
	Position float64 `json:"position"`
	Playing  bool    `json:"playing"`
}

// Clock tracks the playback position in seconds from the start of the video.
type Clock struct {
	clk clock.Clock

	mu      sync.Mutex
	playing bool
	base    float64
	anchor  time.Time
}

func NewClock(clk clock.Clock) *Clock {
	if clk == nil {
		clk = clock.New()
	}
	return &Clock{clk: clk}
}

func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.clk.Now().Sub(c.anchor).Seconds()
}

func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Position: c.positionLocked(), Playing: c.playing}
}

func (c *Clock) Play() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		c.anchor = c.clk.Now()
		c.playing = true
	}
	return State{Position: c.positionLocked(), Playing: true}
}

func (c *Clock) Pause() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.base = c.positionLocked()
		c.playing = false
	}
	return State{Position: c.base}
}

// Seek moves to sec, clamped at 0, keeping the play/pause state.
func (c *Clock) Seek(sec float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(sec)
	return State{Position: c.base, Playing: c.playing}
}

// Rewind moves back by d (DefaultRewind when d <= 0), clamped at 0.
func (c *Clock) Rewind(d time.Duration) State {
	if d <= 0 {
		d = DefaultRewind
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(c.positionLocked() - d.Seconds())
	return State{Position: c.base, Playing: c.playing}
}

func (c *Clock) seekLocked(sec float64) {
	if sec < 0 {
		sec = 0
	}
	c.base = sec
	c.anchor = c.clk.Now()
}

// Reset returns to position 0, paused.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = 0
	c.playing = false
}
