// ABOUTME: Tests for the GPS locator
// ABOUTME: Covers permission flow, accuracy precision, freshness, throttling, and status polling

package geo

import (
	"context"
	"testing"
	"time"

	"github.com/harper/shichen/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGPS(t *testing.T, permission models.PermissionState) (*GPSLocator, *fakePlatform, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(testStart)
	p := newFakePlatform(permission)
	g := NewGPSLocator(p, WithClock(clk))
	t.Cleanup(func() { _ = g.Close() })
	return g, p, clk
}

func fixAt(lat, lng, accuracy float64) Fix {
	return Fix{Latitude: lat, Longitude: lng, Accuracy: models.Float64Ptr(accuracy)}
}

func TestPrecisionForAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		accuracy *float64
		want     models.Precision
	}{
		{"unknown", nil, models.PrecisionMedium},
		{"tight", models.Float64Ptr(8), models.PrecisionHigh},
		{"just under", models.Float64Ptr(99.9), models.PrecisionHigh},
		{"boundary", models.Float64Ptr(100), models.PrecisionMedium},
		{"coarse", models.Float64Ptr(1500), models.PrecisionMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrecisionForAccuracy(tt.accuracy))
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	a := models.GeoPosition{Latitude: 10, Longitude: 20}
	b := models.GeoPosition{Latitude: 10.001, Longitude: 20}
	assert.InDelta(t, 111.2, DistanceMeters(a, b), 0.5)
	assert.InDelta(t, 0, DistanceMeters(a, a), 1e-9)
}

func TestGPS_Identity(t *testing.T) {
	g, _, _ := newTestGPS(t, models.PermissionUndetermined)
	assert.Equal(t, GPSLocatorID, g.ID())
	assert.Equal(t, models.PrecisionHigh, g.MaxPrecision())

	st := g.Status()
	assert.Equal(t, models.PermissionUndetermined, st.PermissionState)
	assert.False(t, st.IsAvailable)
	assert.Equal(t, models.PrecisionLow, st.CurrentPrecision)
}

func TestGPS_CurrentPositionRequiresPermission(t *testing.T) {
	g, _, _ := newTestGPS(t, models.PermissionDenied)
	g.CheckPermission(context.Background())

	_, err := g.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGPS_RequestPermission(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionUndetermined)
	p.grantOnAsk = true

	state, err := g.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PermissionGranted, state)

	st := g.Status()
	assert.True(t, st.IsAvailable)
	assert.Equal(t, models.PrecisionLow, st.CurrentPrecision, "no fix yet")
}

func TestGPS_RequestPermissionFailureDenies(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionUndetermined)
	p.requestErr = errPlatform

	state, err := g.RequestPermission(context.Background())
	assert.ErrorIs(t, err, errPlatform)
	assert.Equal(t, models.PermissionDenied, state)
	assert.Equal(t, models.PermissionDenied, g.Status().PermissionState)
}

func TestGPS_OneShotFix(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())
	p.fix = fixAt(31.23, 121.47, 12)

	pos, err := g.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PrecisionHigh, pos.Precision)
	assert.Equal(t, testStart, pos.Timestamp, "missing platform timestamp uses the clock")
	assert.Equal(t, models.PrecisionHigh, g.Status().CurrentPrecision)

	clk.Advance(freshWindow + time.Second)
	assert.Equal(t, models.PrecisionLow, g.Status().CurrentPrecision, "stale fix reports low")

	last, ok := g.LastKnown()
	require.True(t, ok)
	assert.InDelta(t, 121.47, last.Longitude, 1e-9)
}

func TestGPS_OneShotPlatformError(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())
	p.fixErr = errPlatform

	_, err := g.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, errPlatform)
}

func TestGPS_WatchStartsWithFirstSubscriber(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionUndetermined)

	unsub1 := g.Subscribe(func(models.GeoPosition) {})
	watches, _ := p.counts()
	assert.Equal(t, 0, watches, "no watch without permission")

	p.grantOnAsk = true
	_, err := g.RequestPermission(context.Background())
	require.NoError(t, err)
	watches, _ = p.counts()
	assert.Equal(t, 1, watches, "granting starts the pending watch")

	unsub2 := g.Subscribe(func(models.GeoPosition) {})
	watches, _ = p.counts()
	assert.Equal(t, 1, watches)

	unsub1()
	_, stops := p.counts()
	assert.Equal(t, 0, stops)
	unsub2()
	unsub2()
	_, stops = p.counts()
	assert.Equal(t, 1, stops)
}

func TestGPS_WatchFailureIsRetried(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())
	p.watchErr = errPlatform

	unsub := g.Subscribe(func(models.GeoPosition) {})
	watches, _ := p.counts()
	assert.Equal(t, 0, watches)
	unsub()

	p.watchErr = nil
	unsub = g.Subscribe(func(models.GeoPosition) {})
	defer unsub()
	watches, _ = p.counts()
	assert.Equal(t, 1, watches)
}

func TestGPS_WatchThrottle(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())

	var got []models.GeoPosition
	unsub := g.Subscribe(func(pos models.GeoPosition) { got = append(got, pos) })
	defer unsub()

	require.True(t, p.send(fixAt(10, 20, 15)))
	require.Len(t, got, 1, "first fix of a watch always passes")

	clk.Advance(10 * time.Second)
	p.send(fixAt(10.01, 20, 15))
	assert.Len(t, got, 1, "too soon")

	clk.Advance(60 * time.Second)
	p.send(fixAt(10.0004, 20, 15))
	assert.Len(t, got, 1, "too close")

	p.send(fixAt(10.002, 20, 150))
	require.Len(t, got, 2)
	assert.Equal(t, models.PrecisionMedium, got[1].Precision)
	assert.Equal(t, models.PrecisionMedium, g.Status().CurrentPrecision)
}

func TestGPS_FreshnessWindowAfterWatchStops(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())

	unsub := g.Subscribe(func(models.GeoPosition) {})
	p.send(fixAt(10, 20, 5))
	clk.Advance(10 * time.Minute)
	assert.Equal(t, models.PrecisionHigh, g.Status().CurrentPrecision, "fresh while watching")

	unsub()
	clk.Advance(freshWindow - time.Second)
	assert.Equal(t, models.PrecisionHigh, g.Status().CurrentPrecision)
	clk.Advance(2 * time.Second)
	assert.Equal(t, models.PrecisionLow, g.Status().CurrentPrecision)
}

func TestGPS_SubscribeDeliversCachedAndNewSessionForwards(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())

	unsub := g.Subscribe(func(models.GeoPosition) {})
	p.send(fixAt(10, 20, 5))
	unsub()

	clk.Advance(5 * time.Second)
	var got []models.GeoPosition
	unsub = g.Subscribe(func(pos models.GeoPosition) { got = append(got, pos) })
	defer unsub()
	require.Len(t, got, 1, "cached position delivered immediately")

	p.send(fixAt(10.0001, 20, 5))
	assert.Len(t, got, 2, "first fix of the new watch is not throttled")
}

func TestGPS_IgnoresFixesFromStoppedWatch(t *testing.T) {
	g, p, _ := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())

	unsub := g.Subscribe(func(models.GeoPosition) {})
	p.mu.Lock()
	oldFix := p.onFix
	p.mu.Unlock()
	unsub()

	oldFix(fixAt(1, 2, 5))
	_, ok := g.LastKnown()
	assert.False(t, ok)
}

func TestGPS_StatusPollDetectsRevocation(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())
	unsub := g.Subscribe(func(models.GeoPosition) {})
	defer unsub()
	p.send(fixAt(10, 20, 5))

	var events recorder[models.LocatorStatus]
	unsubStatus := g.OnStatusChange(events.add)
	quiet := func(n int, msg string) {
		t.Helper()
		assert.Never(t, func() bool { return events.len() != n }, 50*time.Millisecond, 5*time.Millisecond, msg)
	}

	clk.Advance(statusPollInterval)
	quiet(0, "unchanged status is not emitted")

	p.setPermission(models.PermissionDenied)
	clk.Advance(statusPollInterval)
	require.Eventually(t, func() bool { return events.len() == 1 }, settle, time.Millisecond)
	ev := events.all()[0]
	assert.Equal(t, models.PermissionDenied, ev.PermissionState)
	assert.False(t, ev.IsAvailable)
	require.Eventually(t, func() bool { _, stops := p.counts(); return stops == 1 }, settle, time.Millisecond,
		"revocation stops the watch")

	clk.Advance(3 * statusPollInterval)
	quiet(1, "denied status is reported once")

	unsubStatus()
	p.setPermission(models.PermissionGranted)
	clk.Advance(3 * statusPollInterval)
	quiet(1, "no events after unsubscribe")
}

func TestGPS_Close(t *testing.T) {
	g, p, clk := newTestGPS(t, models.PermissionGranted)
	g.CheckPermission(context.Background())
	g.Subscribe(func(models.GeoPosition) {})
	var events recorder[models.LocatorStatus]
	g.OnStatusChange(events.add)

	require.NoError(t, g.Close())
	_, stops := p.counts()
	assert.Equal(t, 1, stops)

	p.setPermission(models.PermissionDenied)
	clk.Advance(3 * statusPollInterval)
	assert.Never(t, func() bool { return events.len() > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"status poll stops on close")
	assert.False(t, p.send(fixAt(1, 1, 1)))

	_, err := g.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
