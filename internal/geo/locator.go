// ABOUTME: Locator capability shared by every location source
// ABOUTME: Defines the interface, construction options, and ordered listener sets

// Package geo provides interchangeable location sources with permission
// and precision semantics, and a composite that always follows the best one.
package geo

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/models"
)

// ErrPermissionDenied is returned by CurrentPosition when the locator's
// permission is not granted.
var ErrPermissionDenied = errors.New("location permission not granted")

// ErrUnavailable is returned when a source has nothing to report.
var ErrUnavailable = errors.New("location source unavailable")

// ErrClosed is returned by operations on a closed locator.
var ErrClosed = errors.New("locator closed")

// Locator is a source of position estimates.
//
// Subscribe and OnStatusChange return idempotent unsubscribe functions.
// Subscribe delivers the cached position immediately when there is one.
// Underlying watches and timers start with the first listener and stop
// with the last. Callbacks are never invoked while the locator holds its
// internal lock, so they may call back into the locator.
type Locator interface {
	ID() string
	Name() string
	MaxPrecision() models.Precision

	// LastKnown returns the most recent cached position, if any.
	LastKnown() (models.GeoPosition, bool)
	Status() models.LocatorStatus
	RequestPermission(ctx context.Context) (models.PermissionState, error)
	// CurrentPosition performs a one-shot fetch.
	CurrentPosition(ctx context.Context) (models.GeoPosition, error)

	Subscribe(fn func(models.GeoPosition)) (unsubscribe func())
	OnStatusChange(fn func(models.LocatorStatus)) (unsubscribe func())

	// Close releases watches and timers and drops all listeners.
	// A closed locator must not be reused.
	Close() error
}

// Option configures a locator.
type Option func(*options)

type options struct {
	clock clock.Clock
	log   *log.Logger
}

// WithClock sets the time source used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	o.log = logger.Or(o.log)
	return o
}

// listeners is an ordered callback set. It is not synchronized: owners
// guard it with their own mutex so activation decisions stay atomic with
// membership changes.
type listeners[T any] struct {
	nextID  int
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id int
	fn func(T)
}

// add registers fn and reports whether it is the only listener.
func (l *listeners[T]) add(fn func(T)) (id int, first bool) {
	l.nextID++
	l.entries = append(l.entries, listenerEntry[T]{id: l.nextID, fn: fn})
	return l.nextID, len(l.entries) == 1
}

// remove drops id and reports whether it was present and the set is now empty.
func (l *listeners[T]) remove(id int) (removed, empty bool) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true, len(l.entries) == 0
		}
	}
	return false, len(l.entries) == 0
}

func (l *listeners[T]) len() int {
	return len(l.entries)
}

// snapshot returns the callbacks in registration order.
func (l *listeners[T]) snapshot() []func(T) {
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

func (l *listeners[T]) clear() {
	l.entries = nil
}

func emit[T any](fns []func(T), v T) {
	for _, fn := range fns {
		fn(v)
	}
}

func noop() {}
