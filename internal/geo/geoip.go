// ABOUTME: Medium-precision locator backed by a MaxMind GeoIP2 City database
// ABOUTME: Looks up a configured public address and re-checks every ten minutes

package geo

import (
	"fmt"
	"net"
	"time"

	"github.com/harper/shichen/internal/models"
	"github.com/oschwald/geoip2-golang"
)

const (
	// GeoIPLocatorID identifies the GeoIP locator.
	GeoIPLocatorID = "geoip"

	geoIPRecheckInterval = 10 * time.Minute
)

// CityReader is the subset of *geoip2.Reader the locator needs.
type CityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeoIPLocator estimates position from the city record of an IP address.
type GeoIPLocator struct {
	*estimateLocator
}

var _ Locator = (*GeoIPLocator)(nil)

// NewGeoIPLocator creates a locator reading addr from db. With a nil db or
// addr the locator reports itself unavailable.
func NewGeoIPLocator(db CityReader, addr net.IP, opts ...Option) *GeoIPLocator {
	o := buildOptions(opts)
	configured := db != nil && addr != nil

	return &GeoIPLocator{&estimateLocator{
		id:           GeoIPLocatorID,
		name:         "IP geolocation",
		maxPrecision: models.PrecisionMedium,
		interval:     geoIPRecheckInterval,
		clock:        o.clock,
		log:          o.log,
		estimate: func(now time.Time) (models.GeoPosition, error) {
			if !configured {
				return models.GeoPosition{}, ErrUnavailable
			}
			return lookupCity(db, addr, now)
		},
		status: func(last *models.GeoPosition, failed bool) models.LocatorStatus {
			st := models.LocatorStatus{
				PermissionState:  models.PermissionGranted,
				IsAvailable:      configured && !failed,
				CurrentPrecision: models.PrecisionLow,
			}
			if st.IsAvailable && last != nil {
				st.CurrentPrecision = models.PrecisionMedium
			}
			return st
		},
	}}
}

// OpenGeoIPLocator opens the database at path and wraps it in a locator.
// The returned close function releases the database.
func OpenGeoIPLocator(path string, addr net.IP, opts ...Option) (*GeoIPLocator, func() error, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open geoip database: %w", err)
	}
	return NewGeoIPLocator(reader, addr, opts...), reader.Close, nil
}

func lookupCity(db CityReader, addr net.IP, now time.Time) (models.GeoPosition, error) {
	city, err := db.City(addr)
	if err != nil {
		return models.GeoPosition{}, fmt.Errorf("geoip lookup %s: %w", addr, err)
	}
	loc := city.Location
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return models.GeoPosition{}, fmt.Errorf("no location for %s: %w", addr, ErrUnavailable)
	}

	pos := models.GeoPosition{
		Longitude: loc.Longitude,
		Latitude:  loc.Latitude,
		Precision: models.PrecisionMedium,
		Timestamp: now,
		Source:    GeoIPLocatorID,
	}
	if loc.AccuracyRadius > 0 {
		pos.AccuracyMeters = models.Float64Ptr(float64(loc.AccuracyRadius) * 1000)
	}
	return pos, nil
}
