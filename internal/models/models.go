// ABOUTME: Core value types for positions, precision tiers, and locator status
// ABOUTME: Provides validation helpers and the persisted position record

package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Precision is the quality tier of a position estimate.
type Precision string

const (
	PrecisionLow    Precision = "low"
	PrecisionMedium Precision = "medium"
	PrecisionHigh   Precision = "high"
)

// Rank orders precision tiers: high=3, medium=2, low=1, unknown=0.
func (p Precision) Rank() int {
	switch p {
	case PrecisionHigh:
		return 3
	case PrecisionMedium:
		return 2
	case PrecisionLow:
		return 1
	default:
		return 0
	}
}

// ParsePrecision converts a stored precision name back to a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch p := Precision(s); p {
	case PrecisionLow, PrecisionMedium, PrecisionHigh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown precision %q", s)
	}
}

// PermissionState mirrors the OS location permission model.
type PermissionState string

const (
	PermissionUndetermined PermissionState = "undetermined"
	PermissionGranted      PermissionState = "granted"
	PermissionDenied       PermissionState = "denied"
	PermissionRestricted   PermissionState = "restricted"
)

// ValidateCoordinates checks if latitude and longitude are within valid ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates cannot be NaN")
	}
	if math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates cannot be infinite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// GeoPosition is an immutable position estimate produced by a locator.
// Newer estimates replace it; it is never mutated.
type GeoPosition struct {
	Longitude      float64   `json:"longitude"`
	Latitude       float64   `json:"latitude"`
	Precision      Precision `json:"precision"`
	Timestamp      time.Time `json:"timestamp"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	Source         string    `json:"source,omitempty"`
}

// Validate reports whether the position's coordinates are usable.
func (p GeoPosition) Validate() error {
	return ValidateCoordinates(p.Latitude, p.Longitude)
}

// LocatorStatus is the derived state of a locator at one moment.
// It is comparable with == for change detection.
type LocatorStatus struct {
	PermissionState  PermissionState `json:"permission_state"`
	IsAvailable      bool            `json:"is_available"`
	CurrentPrecision Precision       `json:"current_precision"`
}

// PositionRecord is a GeoPosition persisted to the history store.
type PositionRecord struct {
	ID             uuid.UUID `json:"id"`
	Source         string    `json:"source"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Precision      Precision `json:"precision"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPositionRecord creates a record with a generated UUID for pos.
// RecordedAt is the position's own timestamp, falling back to now.
func NewPositionRecord(pos GeoPosition) *PositionRecord {
	now := time.Now()
	recordedAt := pos.Timestamp
	if recordedAt.IsZero() {
		recordedAt = now
	}
	return &PositionRecord{
		ID:             uuid.New(),
		Source:         pos.Source,
		Latitude:       pos.Latitude,
		Longitude:      pos.Longitude,
		Precision:      pos.Precision,
		AccuracyMeters: pos.AccuracyMeters,
		RecordedAt:     recordedAt,
		CreatedAt:      now,
	}
}

// GeoPosition converts the record back to a position value.
func (r *PositionRecord) GeoPosition() GeoPosition {
	return GeoPosition{
		Longitude:      r.Longitude,
		Latitude:       r.Latitude,
		Precision:      r.Precision,
		Timestamp:      r.RecordedAt,
		AccuracyMeters: r.AccuracyMeters,
		Source:         r.Source,
	}
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
