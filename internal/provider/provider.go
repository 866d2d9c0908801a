// ABOUTME: Live solar time provider combining the locator stream with a minute timer
// ABOUTME: Recomputes SolarTimeData on every position and every wall-clock minute

// Package provider turns locator positions into a subscribable stream of
// solar time snapshots.
package provider

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
)

// SolarTimeProviderID identifies the solar time provider.
const SolarTimeProviderID = "solar-time"

// SituationProvider is a named, subscribable source of situation data.
type SituationProvider[T any] interface {
	ID() string
	Name() string
	// Subscribe delivers the current value immediately and every update
	// after it. The returned function is idempotent.
	Subscribe(fn func(T)) (unsubscribe func())
	CurrentData() T
}

// Option configures a SolarTimeProvider.
type Option func(*SolarTimeProvider)

// WithClock sets the time source for computation and the minute timer.
func WithClock(c clock.Clock) Option {
	return func(p *SolarTimeProvider) { p.clock = c }
}

// WithLogger sets the provider's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *SolarTimeProvider) { p.log = l }
}

// WithZone sets the civil time zone; the default is time.Local.
func WithZone(zone func() *time.Location) Option {
	return func(p *SolarTimeProvider) { p.zone = zone }
}

// SolarTimeProvider publishes SolarTimeData for the locator's position.
type SolarTimeProvider struct {
	locator geo.Locator
	clock   clock.Clock
	log     *log.Logger
	zone    func() *time.Location

	mu           sync.Mutex
	subs         []subscriber
	nextID       int
	position     *models.GeoPosition
	data         *solar.SolarTimeData
	version      int
	gen          int
	active       bool
	unsubLocator func()
	timer        clock.Timer
}

type subscriber struct {
	id int
	fn func(solar.SolarTimeData)
}

var _ SituationProvider[solar.SolarTimeData] = (*SolarTimeProvider)(nil)

// NewSolarTimeProvider creates a provider over locator, usually a
// *geo.Composite.
func NewSolarTimeProvider(locator geo.Locator, opts ...Option) *SolarTimeProvider {
	p := &SolarTimeProvider{locator: locator}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.zone == nil {
		p.zone = func() *time.Location { return time.Local }
	}
	p.log = logger.Or(p.log).With("provider", SolarTimeProviderID)
	return p
}

func (p *SolarTimeProvider) ID() string   { return SolarTimeProviderID }
func (p *SolarTimeProvider) Name() string { return "True solar time" }

// Locator returns the locator the provider follows.
func (p *SolarTimeProvider) Locator() geo.Locator { return p.locator }

// CurrentData returns the cached value while subscribed, otherwise a fresh
// computation. It never blocks on the locator.
func (p *SolarTimeProvider) CurrentData() solar.SolarTimeData {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active && p.data != nil {
		return *p.data
	}
	return p.computeLocked()
}

func (p *SolarTimeProvider) Subscribe(fn func(solar.SolarTimeData)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	seen := p.version
	first := !p.active
	var gen int
	if first {
		p.active = true
		p.gen++
		gen = p.gen
		p.scheduleLocked(gen)
	}
	p.mu.Unlock()

	if first {
		unsub := p.locator.Subscribe(func(pos models.GeoPosition) { p.onPosition(gen, pos) })
		p.mu.Lock()
		if p.gen == gen {
			p.unsubLocator = unsub
			unsub = nil
		}
		p.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}

	p.mu.Lock()
	delivered := p.version != seen
	var data solar.SolarTimeData
	if !delivered {
		if p.data == nil {
			d := p.computeLocked()
			p.data = &d
		}
		data = *p.data
	}
	p.mu.Unlock()

	if !delivered {
		fn(data)
	}

	var once sync.Once
	return func() { once.Do(func() { p.unsubscribe(id) }) }
}

func (p *SolarTimeProvider) unsubscribe(id int) {
	p.mu.Lock()
	for i, s := range p.subs {
		if s.id == id {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			break
		}
	}
	var unsub func()
	if len(p.subs) == 0 && p.active {
		p.active = false
		p.gen++
		unsub = p.unsubLocator
		p.unsubLocator = nil
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		p.data = nil
	}
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (p *SolarTimeProvider) onPosition(gen int, pos models.GeoPosition) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.position = &pos
	p.mu.Unlock()

	p.log.Debug("position update", "source", pos.Source, "precision", pos.Precision)
	p.refresh(gen)
}

// scheduleLocked arms the timer for the next wall-clock minute boundary.
func (p *SolarTimeProvider) scheduleLocked(gen int) {
	now := p.clock.Now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	p.timer = p.clock.AfterFunc(next.Sub(now), func() { p.tick(gen) })
}

func (p *SolarTimeProvider) tick(gen int) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.scheduleLocked(gen)
	p.mu.Unlock()

	p.refresh(gen)
}

// refresh recomputes and delivers to every subscriber in registration order.
func (p *SolarTimeProvider) refresh(gen int) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	data := p.computeLocked()
	p.data = &data
	p.version++
	fns := make([]func(solar.SolarTimeData), len(p.subs))
	for i, s := range p.subs {
		fns[i] = s.fn
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

// computeLocked uses the latest pushed position, then the locator's cache,
// then the zone offset estimate.
func (p *SolarTimeProvider) computeLocked() solar.SolarTimeData {
	now := p.clock.Now().In(p.zone())

	var pos models.GeoPosition
	switch {
	case p.position != nil:
		pos = *p.position
	default:
		if last, ok := p.locator.LastKnown(); ok {
			pos = last
		} else {
			pos = geo.TimezoneEstimate(now)
		}
	}
	return solar.Compute(now, pos)
}
