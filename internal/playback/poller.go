package playback

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

const DefaultCadence = 500 * time.Millisecond

// CaptionSource answers which caption is active at t seconds.
type CaptionSource interface {
	Lookup(t float64) (domain.Caption, bool)
}

type Update struct {
	Position float64        `json:"position"`
	Caption  domain.Caption `json:"caption"`
	Active   bool           `json:"active"`
}

// Poller samples the caption at the playback position on a fixed cadence and
// reports changes.
type Poller struct {
	log      *logger.Logger
	clk      clock.Clock
	cadence  time.Duration
	position *Clock
	source   CaptionSource
	onChange func(Update)

	mu        sync.Mutex
	last      Update
	published bool
}

func NewPoller(log *logger.Logger, clk clock.Clock, cadence time.Duration, position *Clock, source CaptionSource, onChange func(Update)) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Poller{
		log:      log.With("service", "PlaybackPoller"),
		clk:      clk,
		cadence:  cadence,
		position: position,
		source:   source,
		onChange: onChange,
	}
}

func (p *Poller) Cadence() time.Duration { return p.cadence }

// Run ticks until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	t := p.clk.Ticker(p.cadence)
	defer t.Stop()
	p.log.Debug("Playback poller started", "cadence", p.cadence.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Tick()
		}
	}
}

// Tick performs one lookup and calls onChange when the caption differs from
// the last published one.
func (p *Poller) Tick() (Update, bool) {
	pos := p.position.Position()
	caption, active := p.source.Lookup(pos)
	u := Update{Position: pos, Caption: caption, Active: active}

	p.mu.Lock()
	changed := !p.published || p.last.Caption != u.Caption || p.last.Active != u.Active
	p.last = u
	p.published = true
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(u)
	}
	return u, changed
}

// Last returns the most recent sample.
func (p *Poller) Last() (Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.published
}

// Reset forgets the last published caption so the next tick publishes again.
func (p *Poller) Reset() {
	p.mu.Lock()
	p.published = false
	p.last = Update{}
	p.mu.Unlock()
}
