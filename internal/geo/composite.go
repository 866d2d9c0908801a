// ABOUTME: Composite locator that always follows the best available source
// ABOUTME: Re-selects on a 500ms poll and on underlying status changes

package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/models"
)

const (
	// CompositeLocatorID identifies the composite locator.
	CompositeLocatorID = "composite"

	reevaluateInterval = 500 * time.Millisecond
)

// Composite presents several locators as one. While it has position
// subscribers exactly one underlying locator, the active one, is
// subscribed to and its positions are forwarded.
type Composite struct {
	locators []Locator
	top      Locator
	fallback Locator
	clock    clock.Clock
	log      *log.Logger

	mu           sync.Mutex
	active       Locator
	activeUnsub  func()
	gen          int
	last         *models.GeoPosition
	positions    listeners[models.GeoPosition]
	statuses     listeners[models.LocatorStatus]
	lastStatus   models.LocatorStatus
	hasStatus    bool
	statusUnsubs []func()
	stopPoll     func()
	closed       bool
}

var _ Locator = (*Composite)(nil)

// NewComposite wraps locators. Registration order breaks precision ties.
func NewComposite(locators []Locator, opts ...Option) (*Composite, error) {
	if len(locators) == 0 {
		return nil, errors.New("composite locator needs at least one locator")
	}
	o := buildOptions(opts)

	c := &Composite{
		locators: append([]Locator(nil), locators...),
		top:      locators[0],
		fallback: locators[0],
		clock:    o.clock,
		log:      o.log.With("locator", CompositeLocatorID),
	}
	for _, l := range locators[1:] {
		if l.MaxPrecision().Rank() > c.top.MaxPrecision().Rank() {
			c.top = l
		}
		if l.MaxPrecision().Rank() < c.fallback.MaxPrecision().Rank() {
			c.fallback = l
		}
	}
	return c, nil
}

func (c *Composite) ID() string   { return CompositeLocatorID }
func (c *Composite) Name() string { return "Best available" }

func (c *Composite) MaxPrecision() models.Precision {
	return c.top.MaxPrecision()
}

// Locators returns the wrapped locators in registration order.
func (c *Composite) Locators() []Locator {
	return append([]Locator(nil), c.locators...)
}

// Active returns the locator currently forwarding positions, or nil when
// the composite has no position subscribers.
func (c *Composite) Active() Locator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Best applies the selection rule: the granted, available locator with the
// highest max precision, else the lowest-precision locator.
func (c *Composite) Best() Locator {
	var best Locator
	for _, l := range c.locators {
		st := l.Status()
		if st.PermissionState != models.PermissionGranted || !st.IsAvailable {
			continue
		}
		if best == nil || l.MaxPrecision().Rank() > best.MaxPrecision().Rank() {
			best = l
		}
	}
	if best == nil {
		return c.fallback
	}
	return best
}

func (c *Composite) LastKnown() (models.GeoPosition, bool) {
	c.mu.Lock()
	last, active := c.last, c.active
	c.mu.Unlock()

	if last != nil {
		return *last, true
	}
	if active == nil {
		active = c.Best()
	}
	return active.LastKnown()
}

// Status takes permission and availability from the highest-precision
// locator and current precision from the one actually in use.
func (c *Composite) Status() models.LocatorStatus {
	st := c.top.Status()

	active := c.Active()
	if active == nil {
		active = c.Best()
	}
	st.CurrentPrecision = active.Status().CurrentPrecision
	return st
}

// RequestPermission asks the highest-precision locator and re-selects.
// Platform failures are logged and surface only as the returned state.
func (c *Composite) RequestPermission(ctx context.Context) (models.PermissionState, error) {
	state, err := c.top.RequestPermission(ctx)
	if err != nil {
		c.log.Warn("permission request failed", "target", c.top.ID(), "err", err)
	}
	c.reevaluate()
	return state, nil
}

// CurrentPosition asks the best locator, falling back to the
// lowest-precision one when that fails.
func (c *Composite) CurrentPosition(ctx context.Context) (models.GeoPosition, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return models.GeoPosition{}, ErrClosed
	}

	best := c.Best()
	pos, err := best.CurrentPosition(ctx)
	if err != nil && best != c.fallback {
		c.log.Warn("position fetch failed, using fallback", "source", best.ID(), "err", err)
		pos, err = c.fallback.CurrentPosition(ctx)
	}
	if err != nil {
		return models.GeoPosition{}, fmt.Errorf("current position: %w", err)
	}
	return pos, nil
}

func (c *Composite) Subscribe(fn func(models.GeoPosition)) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return noop
	}
	id, first := c.positions.add(fn)
	if first {
		c.stopPoll = clock.Every(c.clock, reevaluateInterval, c.reevaluate)
	}
	var cached *models.GeoPosition
	if !first && c.last != nil {
		p := *c.last
		cached = &p
	}
	c.mu.Unlock()

	if first {
		c.reevaluate()
	} else if cached != nil {
		fn(*cached)
	}

	return sync.OnceFunc(func() { c.unsubscribe(id) })
}

func (c *Composite) unsubscribe(id int) {
	c.mu.Lock()
	removed, empty := c.positions.remove(id)
	var stopPoll, unsub func()
	if removed && empty {
		stopPoll, unsub = c.stopPoll, c.activeUnsub
		c.stopPoll, c.activeUnsub = nil, nil
		c.active = nil
		c.last = nil
		c.gen++
	}
	c.mu.Unlock()

	if stopPoll != nil {
		stopPoll()
	}
	if unsub != nil {
		unsub()
	}
	c.notifyStatus()
}

// OnStatusChange registers fn. The first status listener also attaches to
// every underlying locator's status events.
func (c *Composite) OnStatusChange(fn func(models.LocatorStatus)) func() {
	st := c.Status()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return noop
	}
	id, first := c.statuses.add(fn)
	if first {
		c.lastStatus = st
		c.hasStatus = true
	}
	c.mu.Unlock()

	if first {
		unsubs := make([]func(), 0, len(c.locators))
		for _, l := range c.locators {
			unsubs = append(unsubs, l.OnStatusChange(c.onUnderlyingStatus))
		}
		c.mu.Lock()
		if c.hasStatus && !c.closed {
			c.statusUnsubs = unsubs
			unsubs = nil
		}
		c.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
	}

	return sync.OnceFunc(func() {
		c.mu.Lock()
		removed, empty := c.statuses.remove(id)
		var unsubs []func()
		if removed && empty {
			c.hasStatus = false
			unsubs = c.statusUnsubs
			c.statusUnsubs = nil
		}
		c.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
	})
}

// Close detaches from and closes every underlying locator.
func (c *Composite) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stopPoll, unsub, statusUnsubs := c.stopPoll, c.activeUnsub, c.statusUnsubs
	c.stopPoll, c.activeUnsub, c.statusUnsubs = nil, nil, nil
	c.active = nil
	c.last = nil
	c.gen++
	c.positions.clear()
	c.statuses.clear()
	c.hasStatus = false
	c.mu.Unlock()

	if stopPoll != nil {
		stopPoll()
	}
	if unsub != nil {
		unsub()
	}
	for _, u := range statusUnsubs {
		u()
	}

	var errs []error
	for _, l := range c.locators {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) onUnderlyingStatus(models.LocatorStatus) {
	c.reevaluate()
}

// reevaluate switches the forwarded subscription when the best locator
// changed. The previous locator is released before the next is attached.
func (c *Composite) reevaluate() {
	best := c.Best()

	c.mu.Lock()
	if c.closed || c.positions.len() == 0 || best == c.active {
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.notifyStatus()
		}
		return
	}
	prevID := ""
	if c.active != nil {
		prevID = c.active.ID()
	}
	prev := c.activeUnsub
	c.active = best
	c.activeUnsub = nil
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if prevID != "" {
		c.log.Info("switching location source", "from", prevID, "to", best.ID())
	}
	if prev != nil {
		prev()
	}

	unsub := best.Subscribe(func(p models.GeoPosition) { c.forward(gen, p) })

	c.mu.Lock()
	if gen == c.gen && !c.closed {
		c.activeUnsub = unsub
		unsub = nil
	}
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}

	c.notifyStatus()
}

func (c *Composite) forward(gen int, p models.GeoPosition) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.last = &p
	fns := c.positions.snapshot()
	c.mu.Unlock()

	emit(fns, p)
	c.notifyStatus()
}

func (c *Composite) notifyStatus() {
	c.mu.Lock()
	has := c.hasStatus
	c.mu.Unlock()
	if !has {
		return
	}

	st := c.Status()

	c.mu.Lock()
	if !c.hasStatus || st == c.lastStatus {
		c.mu.Unlock()
		return
	}
	c.lastStatus = st
	fns := c.statuses.snapshot()
	c.mu.Unlock()

	emit(fns, st)
}
