// ABOUTME: Low-precision locator estimating longitude from the system time zone
// ABOUTME: Always available, never prompts, re-checks the zone every minute

package geo

import (
	"time"

	"github.com/harper/shichen/internal/models"
)

const (
	// TimezoneLocatorID identifies the timezone locator.
	TimezoneLocatorID = "timezone"

	timezoneRecheckInterval = 60 * time.Second
)

// TimezoneLocator estimates position from the local zone's current UTC
// offset, on the equator. It is the always-available fallback.
type TimezoneLocator struct {
	*estimateLocator
}

var _ Locator = (*TimezoneLocator)(nil)

// NewTimezoneLocator creates a timezone locator. zone returns the location
// to estimate from; nil means time.Local.
func NewTimezoneLocator(zone func() *time.Location, opts ...Option) *TimezoneLocator {
	if zone == nil {
		zone = func() *time.Location { return time.Local }
	}
	o := buildOptions(opts)

	return &TimezoneLocator{&estimateLocator{
		id:           TimezoneLocatorID,
		name:         "Time zone estimate",
		maxPrecision: models.PrecisionLow,
		interval:     timezoneRecheckInterval,
		clock:        o.clock,
		log:          o.log,
		estimate: func(now time.Time) (models.GeoPosition, error) {
			return TimezoneEstimate(now.In(zone())), nil
		},
		status: func(*models.GeoPosition, bool) models.LocatorStatus {
			return models.LocatorStatus{
				PermissionState:  models.PermissionGranted,
				IsAvailable:      true,
				CurrentPrecision: models.PrecisionLow,
			}
		},
	}}
}

// TimezoneEstimate is the position implied by t's zone alone: 15 degrees
// of longitude per hour of the offset in effect at t, daylight saving
// included.
func TimezoneEstimate(t time.Time) models.GeoPosition {
	_, offset := t.Zone()
	return models.GeoPosition{
		Longitude: float64(offset) / 3600 * 15,
		Latitude:  0,
		Precision: models.PrecisionLow,
		Timestamp: t,
		Source:    TimezoneLocatorID,
	}
}
