package playback

import (
	"math"
	"testing"
	"time"

	"github.com/facebookgo/clock"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestClockPlayPause(t *testing.T) {
	mock := clock.NewMock()
	c := NewClock(mock)

	if c.Position() != 0 || c.Playing() {
		t.Fatalf("initial state: %+v", c.State())
	}
	mock.Add(3 * time.Second)
	if c.Position() != 0 {
		t.Fatalf("paused clock advanced: %v", c.Position())
	}

	c.Play()
	mock.Add(1500 * time.Millisecond)
	if !near(c.Position(), 1.5) {
		t.Fatalf("position after play: want=1.5 got=%v", c.Position())
	}
	st := c.Pause()
	mock.Add(time.Second)
	if !near(st.Position, 1.5) || !near(c.Position(), 1.5) || st.Playing {
		t.Fatalf("pause: %+v pos=%v", st, c.Position())
	}
	c.Play()
	c.Play()
	mock.Add(time.Second)
	if !near(c.Position(), 2.5) {
		t.Fatalf("double play: want=2.5 got=%v", c.Position())
	}
}

func TestClockSeekRewindReset(t *testing.T) {
	mock := clock.NewMock()
	c := NewClock(mock)

	c.Seek(42)
	if c.Position() != 42 {
		t.Fatalf("seek: %v", c.Position())
	}
	c.Play()
	mock.Add(2 * time.Second)
	if st := c.Rewind(0); !near(st.Position, 34) || !st.Playing {
		t.Fatalf("rewind default: %+v", st)
	}
	if st := c.Rewind(time.Minute); st.Position != 0 {
		t.Fatalf("rewind clamps at 0: %+v", st)
	}
	if st := c.Seek(-5); st.Position != 0 {
		t.Fatalf("seek clamps at 0: %+v", st)
	}
	mock.Add(time.Second)
	c.Reset()
	if c.Position() != 0 || c.Playing() {
		t.Fatalf("reset: %+v", c.State())
	}
}
