// ABOUTME: GeoJSON generation for recorded position history
// ABOUTME: Emits point features annotated with solar time and track lines per source

package geojson

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
)

// FeatureCollection represents a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature represents a GeoJSON Feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry represents a GeoJSON Geometry.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// PointCoordinates represents [longitude, latitude] for a Point.
type PointCoordinates [2]float64

// LineCoordinates represents [[lng, lat], [lng, lat], ...] for a LineString.
type LineCoordinates []PointCoordinates

// ToPointsFeatureCollection converts positions to a FeatureCollection of
// Points. Each feature carries the solar time and double hour at the moment
// it was recorded, evaluated in loc.
func ToPointsFeatureCollection(positions []*models.PositionRecord, loc *time.Location) *FeatureCollection {
	if loc == nil {
		loc = time.Local
	}
	features := make([]Feature, 0, len(positions))

	for _, pos := range positions {
		civil := pos.RecordedAt.In(loc)
		data := solar.Compute(civil, pos.GeoPosition())

		props := map[string]any{
			"id":                   pos.ID.String(),
			"source":               pos.Source,
			"precision":            string(pos.Precision),
			"recorded_at":          civil.Format(time.RFC3339),
			"solar_time":           data.SolarTime.Format("15:04:05"),
			"solar_offset_minutes": data.SolarOffsetMinutes,
			"branch":               string(data.Shichen.Branch),
			"hexagram":             data.Shichen.HexagramNumber,
		}
		if pos.AccuracyMeters != nil {
			props["accuracy_meters"] = *pos.AccuracyMeters
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: PointCoordinates{pos.Longitude, pos.Latitude},
			},
			Properties: props,
		})
	}

	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// ToLineFeatureCollection converts positions to a FeatureCollection of LineStrings.
// Positions are grouped by source and sorted chronologically.
func ToLineFeatureCollection(positions []*models.PositionRecord) *FeatureCollection {
	bySource := make(map[string][]*models.PositionRecord)
	var order []string
	for _, pos := range positions {
		if _, ok := bySource[pos.Source]; !ok {
			order = append(order, pos.Source)
		}
		bySource[pos.Source] = append(bySource[pos.Source], pos)
	}
	sort.Strings(order)

	features := make([]Feature, 0, len(bySource))

	for _, source := range order {
		track := bySource[source]
		if len(track) < 2 {
			// Need at least 2 points for a line
			continue
		}
		sort.SliceStable(track, func(i, j int) bool {
			return track[i].RecordedAt.Before(track[j].RecordedAt)
		})

		coords := make(LineCoordinates, len(track))
		for i, pos := range track {
			coords[i] = PointCoordinates{pos.Longitude, pos.Latitude}
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: coords,
			},
			Properties: map[string]any{
				"source":      source,
				"point_count": len(track),
				"started_at":  track[0].RecordedAt.Format(time.RFC3339),
				"ended_at":    track[len(track)-1].RecordedAt.Format(time.RFC3339),
			},
		})
	}

	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// ToJSON serializes a FeatureCollection to JSON.
func (fc *FeatureCollection) ToJSON() ([]byte, error) {
	return json.Marshal(fc)
}

// ToJSONIndent serializes a FeatureCollection to indented JSON.
func (fc *FeatureCollection) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(fc, "", "  ")
}
