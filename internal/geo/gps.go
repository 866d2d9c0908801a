// ABOUTME: High-precision locator wrapping a platform GPS receiver
// ABOUTME: Handles permission, freshness, accuracy-based precision, and watch throttling

package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/models"
)

const (
	// GPSLocatorID identifies the GPS locator.
	GPSLocatorID = "gps"

	// highAccuracyMeters is the accuracy below which a fix counts as high precision.
	highAccuracyMeters = 100.0
	// freshWindow is how long a fix stays trusted after the watch stops.
	freshWindow = 120 * time.Second
	// watchMinInterval and watchMinDistance throttle forwarded watch fixes.
	watchMinInterval = 60 * time.Second
	watchMinDistance = 100.0
	// statusPollInterval drives permission re-checks while status listeners exist.
	statusPollInterval = 5 * time.Second
	platformTimeout    = 10 * time.Second

	earthRadiusMeters = 6371000.0
)

// Fix is a raw reading from a GPS platform.
type Fix struct {
	Latitude  float64
	Longitude float64
	// Accuracy is the horizontal accuracy in meters, nil when unknown.
	Accuracy  *float64
	Timestamp time.Time
}

// GPSPlatform is the OS or device location API a GPSLocator wraps.
type GPSPlatform interface {
	// Permission reports the current permission without prompting.
	Permission(ctx context.Context) (models.PermissionState, error)
	// RequestPermission prompts if needed and returns the outcome.
	RequestPermission(ctx context.Context) (models.PermissionState, error)
	CurrentFix(ctx context.Context) (Fix, error)
	// Watch starts continuous updates. It must not call onFix or onErr
	// before returning. stop must be safe to call once.
	Watch(onFix func(Fix), onErr func(error)) (stop func(), err error)
}

// GPSLocator is a Locator over a GPSPlatform.
type GPSLocator struct {
	platform GPSPlatform
	clock    clock.Clock
	log      *log.Logger

	mu              sync.Mutex
	permission      models.PermissionState
	last            *models.GeoPosition
	lastForwardedAt time.Time
	freshUntil      time.Time
	watching        bool
	watchGen        int
	stopWatch       func()
	positions       listeners[models.GeoPosition]
	statuses        listeners[models.LocatorStatus]
	lastStatus      models.LocatorStatus
	hasStatus       bool
	stopStatusPoll  func()
	closed          bool
}

var _ Locator = (*GPSLocator)(nil)

// NewGPSLocator creates a GPS locator. Permission starts undetermined;
// call CheckPermission or RequestPermission to resolve it.
func NewGPSLocator(platform GPSPlatform, opts ...Option) *GPSLocator {
	o := buildOptions(opts)
	return &GPSLocator{
		platform:   platform,
		clock:      o.clock,
		log:        o.log.With("locator", GPSLocatorID),
		permission: models.PermissionUndetermined,
	}
}

func (g *GPSLocator) ID() string                     { return GPSLocatorID }
func (g *GPSLocator) Name() string                   { return "GPS" }
func (g *GPSLocator) MaxPrecision() models.Precision { return models.PrecisionHigh }

func (g *GPSLocator) LastKnown() (models.GeoPosition, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return models.GeoPosition{}, false
	}
	return *g.last, true
}

// Status reports low precision whenever the cached fix is stale or absent,
// even though the locator can reach high precision.
func (g *GPSLocator) Status() models.LocatorStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *GPSLocator) statusLocked() models.LocatorStatus {
	st := models.LocatorStatus{
		PermissionState:  g.permission,
		IsAvailable:      g.permission == models.PermissionGranted,
		CurrentPrecision: models.PrecisionLow,
	}
	if g.last != nil && (g.watching || !g.clock.Now().After(g.freshUntil)) {
		st.CurrentPrecision = g.last.Precision
	}
	return st
}

// CheckPermission queries the platform without prompting.
func (g *GPSLocator) CheckPermission(ctx context.Context) models.PermissionState {
	state, err := g.platform.Permission(ctx)
	if err != nil {
		g.log.Warn("gps permission query failed", "err", err)
		state = models.PermissionDenied
	}
	g.applyPermission(state)
	return state
}

// RequestPermission prompts through the platform. A platform failure
// leaves the locator denied and is returned.
func (g *GPSLocator) RequestPermission(ctx context.Context) (models.PermissionState, error) {
	state, err := g.platform.RequestPermission(ctx)
	if err != nil {
		g.log.Warn("gps permission request failed", "err", err)
		g.applyPermission(models.PermissionDenied)
		return models.PermissionDenied, fmt.Errorf("request gps permission: %w", err)
	}
	g.applyPermission(state)
	return state, nil
}

// applyPermission records state and starts or stops the watch to match.
func (g *GPSLocator) applyPermission(state models.PermissionState) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.permission = state
	var stop func()
	if state == models.PermissionGranted {
		if g.positions.len() > 0 {
			g.startWatchLocked()
		}
	} else {
		stop = g.stopWatchLocked()
	}
	g.mu.Unlock()

	if stop != nil {
		stop()
	}
	g.notifyStatus()
}

func (g *GPSLocator) CurrentPosition(ctx context.Context) (models.GeoPosition, error) {
	g.mu.Lock()
	closed, permission := g.closed, g.permission
	g.mu.Unlock()

	if closed {
		return models.GeoPosition{}, ErrClosed
	}
	if permission != models.PermissionGranted {
		return models.GeoPosition{}, ErrPermissionDenied
	}

	fix, err := g.platform.CurrentFix(ctx)
	if err != nil {
		g.log.Warn("gps fix failed", "err", err)
		return models.GeoPosition{}, fmt.Errorf("gps fix: %w", err)
	}

	pos := g.positionFromFix(fix)
	g.mu.Lock()
	g.last = &pos
	if until := g.clock.Now().Add(freshWindow); until.After(g.freshUntil) {
		g.freshUntil = until
	}
	g.mu.Unlock()

	g.notifyStatus()
	return pos, nil
}

func (g *GPSLocator) Subscribe(fn func(models.GeoPosition)) func() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return noop
	}
	id, first := g.positions.add(fn)
	if first && g.permission == models.PermissionGranted {
		g.startWatchLocked()
	}
	var cached *models.GeoPosition
	if g.last != nil {
		p := *g.last
		cached = &p
	}
	g.mu.Unlock()

	if cached != nil {
		fn(*cached)
	}
	g.notifyStatus()

	return sync.OnceFunc(func() { g.unsubscribe(id) })
}

func (g *GPSLocator) unsubscribe(id int) {
	g.mu.Lock()
	removed, empty := g.positions.remove(id)
	var stop func()
	if removed && empty {
		stop = g.stopWatchLocked()
	}
	g.mu.Unlock()

	if stop != nil {
		stop()
	}
	g.notifyStatus()
}

// OnStatusChange registers fn and, for the first listener, starts a
// periodic permission and freshness check.
func (g *GPSLocator) OnStatusChange(fn func(models.LocatorStatus)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return noop
	}
	id, first := g.statuses.add(fn)
	if first {
		g.lastStatus = g.statusLocked()
		g.hasStatus = true
		g.stopStatusPoll = clock.Every(g.clock, statusPollInterval, g.pollStatus)
	}

	return sync.OnceFunc(func() {
		g.mu.Lock()
		removed, empty := g.statuses.remove(id)
		var stop func()
		if removed && empty {
			g.hasStatus = false
			stop = g.stopStatusPoll
			g.stopStatusPoll = nil
		}
		g.mu.Unlock()
		if stop != nil {
			stop()
		}
	})
}

func (g *GPSLocator) pollStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), platformTimeout)
	defer cancel()
	g.CheckPermission(ctx)
}

func (g *GPSLocator) Close() error {
	g.mu.Lock()
	g.closed = true
	stopWatch := g.stopWatchLocked()
	stopPoll := g.stopStatusPoll
	g.stopStatusPoll = nil
	g.positions.clear()
	g.statuses.clear()
	g.hasStatus = false
	g.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if stopPoll != nil {
		stopPoll()
	}
	return nil
}

// startWatchLocked starts the platform watch. A failure to start is logged
// and leaves the locator able to retry on the next activation.
func (g *GPSLocator) startWatchLocked() {
	if g.watching {
		return
	}
	g.watchGen++
	gen := g.watchGen
	stop, err := g.platform.Watch(
		func(f Fix) { g.handleFix(gen, f) },
		func(err error) { g.handleWatchError(gen, err) },
	)
	if err != nil {
		g.log.Warn("gps watch failed to start", "err", err)
		return
	}
	g.watching = true
	g.stopWatch = stop
	g.lastForwardedAt = time.Time{}
}

// stopWatchLocked marks the watch stopped and returns the platform stop
// function, to be called after the lock is released.
func (g *GPSLocator) stopWatchLocked() func() {
	if !g.watching {
		return nil
	}
	g.watching = false
	g.watchGen++
	g.freshUntil = g.clock.Now().Add(freshWindow)
	stop := g.stopWatch
	g.stopWatch = nil
	return stop
}

func (g *GPSLocator) handleFix(gen int, fix Fix) {
	pos := g.positionFromFix(fix)

	g.mu.Lock()
	if gen != g.watchGen || !g.watching || !g.acceptLocked(pos) {
		g.mu.Unlock()
		return
	}
	g.last = &pos
	g.lastForwardedAt = g.clock.Now()
	fns := g.positions.snapshot()
	g.mu.Unlock()

	emit(fns, pos)
	g.notifyStatus()
}

func (g *GPSLocator) handleWatchError(gen int, err error) {
	g.mu.Lock()
	current := gen == g.watchGen
	g.mu.Unlock()
	if current {
		g.log.Warn("gps watch error", "err", err)
	}
}

// acceptLocked applies the watch throttle: the first fix of a watch always
// passes, later ones need both the minimum interval and minimum distance.
func (g *GPSLocator) acceptLocked(pos models.GeoPosition) bool {
	if g.last == nil || g.lastForwardedAt.IsZero() {
		return true
	}
	if g.clock.Now().Sub(g.lastForwardedAt) < watchMinInterval {
		return false
	}
	return DistanceMeters(*g.last, pos) >= watchMinDistance
}

func (g *GPSLocator) positionFromFix(fix Fix) models.GeoPosition {
	ts := fix.Timestamp
	if ts.IsZero() {
		ts = g.clock.Now()
	}
	return models.GeoPosition{
		Longitude:      fix.Longitude,
		Latitude:       fix.Latitude,
		Precision:      PrecisionForAccuracy(fix.Accuracy),
		Timestamp:      ts,
		AccuracyMeters: fix.Accuracy,
		Source:         GPSLocatorID,
	}
}

func (g *GPSLocator) notifyStatus() {
	g.mu.Lock()
	if !g.hasStatus {
		g.mu.Unlock()
		return
	}
	st := g.statusLocked()
	if st == g.lastStatus {
		g.mu.Unlock()
		return
	}
	g.lastStatus = st
	fns := g.statuses.snapshot()
	g.mu.Unlock()

	emit(fns, st)
}

// PrecisionForAccuracy classifies a horizontal accuracy: under 100 m is
// high, anything else or unknown is medium.
func PrecisionForAccuracy(accuracy *float64) models.Precision {
	if accuracy != nil && *accuracy >= 0 && *accuracy < highAccuracyMeters {
		return models.PrecisionHigh
	}
	return models.PrecisionMedium
}

// DistanceMeters is the great-circle distance between two positions.
func DistanceMeters(a, b models.GeoPosition) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}
