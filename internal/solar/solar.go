// ABOUTME: Mean solar time correction from civil time and longitude
// ABOUTME: Neutralizes daylight saving by anchoring to the zone's standard offset

// Package solar converts civil time into true local (mean) solar time and
// maps solar time onto the twelve earthly-branch double hours.
package solar

import (
	"math"
	"time"
)

const (
	// degreesPerHour is the Earth's rotation: 360 degrees in 24 hours.
	degreesPerHour = 15.0
	// minutesPerDegree is the time the sun takes to cross one degree of longitude.
	minutesPerDegree = 4.0
)

// StandardOffset returns the non-DST UTC offset of t's location for t's year,
// taken as the smaller of the January 2 and July 2 offsets.
func StandardOffset(t time.Time) time.Duration {
	loc := t.Location()
	year := t.Year()

	_, winter := time.Date(year, time.January, 2, 12, 0, 0, 0, loc).Zone()
	_, summer := time.Date(year, time.July, 2, 12, 0, 0, 0, loc).Zone()

	return time.Duration(min(winter, summer)) * time.Second
}

// CentralMeridian returns the reference longitude of t's standard time zone,
// e.g. +15 for CET and -75 for US Eastern.
func CentralMeridian(t time.Time) float64 {
	return StandardOffset(t).Minutes() / 60 * degreesPerHour
}

// CalculateTrueSolarTime returns the mean solar time for a civil instant at
// the given longitude, and the correction in minutes that was applied.
//
// The correction is (longitude - central meridian) * 4 minutes and depends
// only on the zone's standard offset, so it does not jump at DST
// transitions. It is added to civil as-is. No clamping is applied: places
// far from their zone's meridian get offsets of several hours.
//
// A NaN or infinite longitude yields a NaN or infinite offset, and solar is
// returned equal to civil.
func CalculateTrueSolarTime(civil time.Time, longitude float64) (solarTime time.Time, offsetMinutes float64) {
	offsetMinutes = (longitude - CentralMeridian(civil)) * minutesPerDegree
	if math.IsNaN(offsetMinutes) || math.IsInf(offsetMinutes, 0) {
		return civil, offsetMinutes
	}
	return civil.Add(time.Duration(offsetMinutes * float64(time.Minute))), offsetMinutes
}
