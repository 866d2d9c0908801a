// ABOUTME: Shared machinery for permission-free locators that re-estimate on a timer
// ABOUTME: Backs the timezone and GeoIP locators

package geo

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/models"
)

// estimateLocator implements Locator for sources that need no permission
// and produce a fresh estimate on demand. While anyone listens it
// re-estimates every interval and emits only when the estimate moved.
type estimateLocator struct {
	id           string
	name         string
	maxPrecision models.Precision
	interval     time.Duration
	estimate     func(now time.Time) (models.GeoPosition, error)
	status       func(last *models.GeoPosition, failed bool) models.LocatorStatus

	clock clock.Clock
	log   *log.Logger

	mu          sync.Mutex
	last        *models.GeoPosition
	failed      bool
	positions   listeners[models.GeoPosition]
	statuses    listeners[models.LocatorStatus]
	lastStatus  models.LocatorStatus
	hasStatus   bool
	stopRecheck func()
	closed      bool
}

func (e *estimateLocator) ID() string                     { return e.id }
func (e *estimateLocator) Name() string                   { return e.name }
func (e *estimateLocator) MaxPrecision() models.Precision { return e.maxPrecision }

func (e *estimateLocator) LastKnown() (models.GeoPosition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return models.GeoPosition{}, false
	}
	return *e.last, true
}

func (e *estimateLocator) Status() models.LocatorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status(e.last, e.failed)
}

// RequestPermission reports granted; these sources never prompt.
func (e *estimateLocator) RequestPermission(context.Context) (models.PermissionState, error) {
	return models.PermissionGranted, nil
}

func (e *estimateLocator) CurrentPosition(ctx context.Context) (models.GeoPosition, error) {
	if err := ctx.Err(); err != nil {
		return models.GeoPosition{}, err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return models.GeoPosition{}, ErrClosed
	}
	return e.refresh()
}

func (e *estimateLocator) Subscribe(fn func(models.GeoPosition)) func() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return noop
	}
	id, _ := e.positions.add(fn)
	e.startRecheckLocked()
	var cached *models.GeoPosition
	if e.last != nil {
		p := *e.last
		cached = &p
	}
	e.mu.Unlock()

	if cached != nil {
		fn(*cached)
	} else {
		e.recheck()
	}

	return sync.OnceFunc(func() { e.unsubscribe(id) })
}

func (e *estimateLocator) unsubscribe(id int) {
	e.mu.Lock()
	var stop func()
	if removed, _ := e.positions.remove(id); removed {
		stop = e.idleRecheckLocked()
	}
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// OnStatusChange registers fn. Status listeners keep the recheck running
// too, so a source that starts failing is reported without a subscriber.
func (e *estimateLocator) OnStatusChange(fn func(models.LocatorStatus)) func() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return noop
	}
	id, first := e.statuses.add(fn)
	if first {
		e.lastStatus = e.status(e.last, e.failed)
		e.hasStatus = true
	}
	e.startRecheckLocked()
	e.mu.Unlock()

	return sync.OnceFunc(func() {
		e.mu.Lock()
		var stop func()
		if removed, empty := e.statuses.remove(id); removed {
			if empty {
				e.hasStatus = false
			}
			stop = e.idleRecheckLocked()
		}
		e.mu.Unlock()

		if stop != nil {
			stop()
		}
	})
}

func (e *estimateLocator) startRecheckLocked() {
	if e.stopRecheck == nil {
		e.stopRecheck = clock.Every(e.clock, e.interval, e.recheck)
	}
}

// idleRecheckLocked detaches the recheck once nobody is listening and
// returns its stop function, or nil while listeners remain.
func (e *estimateLocator) idleRecheckLocked() func() {
	if e.positions.len() > 0 || e.statuses.len() > 0 {
		return nil
	}
	stop := e.stopRecheck
	e.stopRecheck = nil
	return stop
}

func (e *estimateLocator) Close() error {
	e.mu.Lock()
	e.closed = true
	stop := e.stopRecheck
	e.stopRecheck = nil
	e.positions.clear()
	e.statuses.clear()
	e.hasStatus = false
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

// recheck refreshes the estimate; failures are logged, not returned.
func (e *estimateLocator) recheck() {
	if _, err := e.refresh(); err != nil {
		e.log.Warn("location estimate failed", "locator", e.id, "err", err)
	}
}

// refresh re-estimates, caches the result, and notifies listeners when the
// estimate moved or the status changed.
func (e *estimateLocator) refresh() (models.GeoPosition, error) {
	pos, err := e.estimate(e.clock.Now())

	e.mu.Lock()
	if err != nil {
		e.failed = true
	} else {
		e.failed = false
	}

	var fns []func(models.GeoPosition)
	if err == nil {
		moved := e.last == nil || e.last.Latitude != pos.Latitude || e.last.Longitude != pos.Longitude
		e.last = &pos
		if moved && !e.closed {
			fns = e.positions.snapshot()
		}
	}
	statusFns, st, changed := e.statusChangeLocked()
	e.mu.Unlock()

	emit(fns, pos)
	if changed {
		emit(statusFns, st)
	}

	if err != nil {
		return models.GeoPosition{}, err
	}
	return pos, nil
}

func (e *estimateLocator) statusChangeLocked() ([]func(models.LocatorStatus), models.LocatorStatus, bool) {
	if !e.hasStatus {
		return nil, models.LocatorStatus{}, false
	}
	st := e.status(e.last, e.failed)
	if st == e.lastStatus {
		return nil, st, false
	}
	e.lastStatus = st
	return e.statuses.snapshot(), st, true
}
