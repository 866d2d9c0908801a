// ABOUTME: Test doubles for locators and GPS platforms
// ABOUTME: Lets tests drive permission, fixes, and status by hand

package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harper/shichen/internal/models"
)

var testStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// settle bounds how long tests wait for timer callbacks, which the fake
// clock runs on their own goroutines.
const settle = time.Second

// recorder collects values delivered from any goroutine.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// fakeLocator is a Locator whose status and positions are set by the test.
type fakeLocator struct {
	id  string
	max models.Precision

	mu          sync.Mutex
	status      models.LocatorStatus
	last        *models.GeoPosition
	positions   listeners[models.GeoPosition]
	statuses    listeners[models.LocatorStatus]
	subscribes  int
	permissions int
	permErr     error
	grantOnAsk  bool
	fetchErr    error
	closed      bool
}

func newFakeLocator(id string, max models.Precision, granted bool) *fakeLocator {
	st := models.LocatorStatus{
		PermissionState:  models.PermissionUndetermined,
		CurrentPrecision: models.PrecisionLow,
	}
	if granted {
		st.PermissionState = models.PermissionGranted
		st.IsAvailable = true
		st.CurrentPrecision = max
	}
	return &fakeLocator{id: id, max: max, status: st}
}

func (f *fakeLocator) ID() string                     { return f.id }
func (f *fakeLocator) Name() string                   { return f.id }
func (f *fakeLocator) MaxPrecision() models.Precision { return f.max }

func (f *fakeLocator) LastKnown() (models.GeoPosition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return models.GeoPosition{}, false
	}
	return *f.last, true
}

func (f *fakeLocator) Status() models.LocatorStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeLocator) RequestPermission(context.Context) (models.PermissionState, error) {
	f.mu.Lock()
	f.permissions++
	err := f.permErr
	grant := f.grantOnAsk
	f.mu.Unlock()
	if err != nil {
		return models.PermissionDenied, err
	}
	if grant {
		f.setGranted(true)
	}
	return f.Status().PermissionState, nil
}

func (f *fakeLocator) CurrentPosition(context.Context) (models.GeoPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return models.GeoPosition{}, f.fetchErr
	}
	if f.last == nil {
		return models.GeoPosition{}, ErrUnavailable
	}
	return *f.last, nil
}

func (f *fakeLocator) Subscribe(fn func(models.GeoPosition)) func() {
	f.mu.Lock()
	id, _ := f.positions.add(fn)
	f.subscribes++
	cached := f.last
	f.mu.Unlock()
	if cached != nil {
		fn(*cached)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.positions.remove(id)
			f.mu.Unlock()
		})
	}
}

func (f *fakeLocator) OnStatusChange(fn func(models.LocatorStatus)) func() {
	f.mu.Lock()
	id, _ := f.statuses.add(fn)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.statuses.remove(id)
		f.mu.Unlock()
	}
}

func (f *fakeLocator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.positions.clear()
	f.statuses.clear()
	return nil
}

// emit caches and delivers a position at the given longitude.
func (f *fakeLocator) emit(lng float64) models.GeoPosition {
	pos := models.GeoPosition{
		Longitude: lng,
		Latitude:  10,
		Precision: f.max,
		Timestamp: testStart,
		Source:    f.id,
	}
	f.mu.Lock()
	f.last = &pos
	fns := f.positions.snapshot()
	f.mu.Unlock()
	emit(fns, pos)
	return pos
}

func (f *fakeLocator) setGranted(granted bool) {
	f.mu.Lock()
	if granted {
		f.status = models.LocatorStatus{
			PermissionState:  models.PermissionGranted,
			IsAvailable:      true,
			CurrentPrecision: f.max,
		}
	} else {
		f.status = models.LocatorStatus{
			PermissionState:  models.PermissionDenied,
			CurrentPrecision: models.PrecisionLow,
		}
	}
	st := f.status
	fns := f.statuses.snapshot()
	f.mu.Unlock()
	emit(fns, st)
}

func (f *fakeLocator) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions.len()
}

// fakePlatform is a GPSPlatform driven by the test.
type fakePlatform struct {
	mu         sync.Mutex
	permission models.PermissionState
	requestErr error
	grantOnAsk bool
	fix        Fix
	fixErr     error
	watchErr   error
	onFix      func(Fix)
	watches    int
	stops      int
}

func newFakePlatform(permission models.PermissionState) *fakePlatform {
	return &fakePlatform{permission: permission}
}

func (p *fakePlatform) Permission(context.Context) (models.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission, nil
}

func (p *fakePlatform) RequestPermission(context.Context) (models.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return models.PermissionUndetermined, p.requestErr
	}
	if p.grantOnAsk {
		p.permission = models.PermissionGranted
	}
	return p.permission, nil
}

func (p *fakePlatform) CurrentFix(context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fix, p.fixErr
}

func (p *fakePlatform) Watch(onFix func(Fix), _ func(error)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return nil, p.watchErr
	}
	p.watches++
	p.onFix = onFix
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.stops++
		p.onFix = nil
	}, nil
}

// send delivers a fix to the running watch, if any.
func (p *fakePlatform) send(f Fix) bool {
	p.mu.Lock()
	fn := p.onFix
	p.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(f)
	return true
}

func (p *fakePlatform) setPermission(state models.PermissionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permission = state
}

func (p *fakePlatform) counts() (watches, stops int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watches, p.stops
}

var errPlatform = errors.New("hardware unavailable")
