// ABOUTME: Assembles the combined civil/solar/shichen snapshot for a position
// ABOUTME: Adds sunrise and sunset events and the per-day double-hour table

package solar

import (
	"math"
	"time"

	"github.com/harper/shichen/internal/models"
	"github.com/nathan-osman/go-sunrise"
)

// SolarTimeData is one recomputation of civil time, solar time and the
// current double hour. It is replaced wholesale on every update.
type SolarTimeData struct {
	CivilTime          time.Time        `json:"civil_time"`
	SolarTime          time.Time        `json:"solar_time"`
	SolarOffsetMinutes float64          `json:"solar_offset_minutes"`
	Precision          models.Precision `json:"precision"`
	Shichen            ShichenData      `json:"shichen"`
	Longitude          float64          `json:"longitude"`
	Latitude           float64          `json:"latitude"`
	Source             string           `json:"source,omitempty"`

	Hour        int `json:"hour"`
	Minute      int `json:"minute"`
	SolarHour   int `json:"solar_hour"`
	SolarMinute int `json:"solar_minute"`

	// Flat mirrors of Shichen kept for older consumers.
	EarthlyBranch      Branch  `json:"earthly_branch"`
	EarthlyBranchIndex int     `json:"earthly_branch_index"`
	BranchProgress     float64 `json:"branch_progress"`

	Sun *SunEvents `json:"sun,omitempty"`
}

// SunEvents are the civil times of sunrise, sunset and apparent solar noon.
type SunEvents struct {
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	SolarNoon time.Time `json:"solar_noon"`
}

// Compute builds the SolarTimeData for civil at pos. Sun events are only
// attached for medium or better positions, since a low-precision estimate
// carries no meaningful latitude.
func Compute(civil time.Time, pos models.GeoPosition) SolarTimeData {
	solarTime, offset := CalculateTrueSolarTime(civil, pos.Longitude)
	sh := ShichenFromSolarTime(solarTime)

	data := SolarTimeData{
		CivilTime:          civil,
		SolarTime:          solarTime,
		SolarOffsetMinutes: offset,
		Precision:          pos.Precision,
		Shichen:            sh,
		Longitude:          pos.Longitude,
		Latitude:           pos.Latitude,
		Source:             pos.Source,
		Hour:               civil.Hour(),
		Minute:             civil.Minute(),
		SolarHour:          solarTime.Hour(),
		SolarMinute:        solarTime.Minute(),
		EarthlyBranch:      sh.Branch,
		EarthlyBranchIndex: sh.Index,
		BranchProgress:     sh.Progress,
	}

	if pos.Precision.Rank() >= models.PrecisionMedium.Rank() {
		data.Sun = SunEventsFor(civil, pos.Latitude, pos.Longitude)
	}
	return data
}

// SunEventsFor returns sunrise, sunset and solar noon on civil's calendar
// date, in civil's location. It returns nil during polar day or night.
func SunEventsFor(civil time.Time, lat, lng float64) *SunEvents {
	if models.ValidateCoordinates(lat, lng) != nil {
		return nil
	}
	rise, set := sunrise.SunriseSunset(lat, lng, civil.Year(), civil.Month(), civil.Day())
	if rise.IsZero() || set.IsZero() {
		return nil
	}
	loc := civil.Location()
	return &SunEvents{
		Sunrise:   rise.In(loc),
		Sunset:    set.In(loc),
		SolarNoon: rise.Add(set.Sub(rise) / 2).In(loc),
	}
}

// HourWindow is the civil time span one double hour occupies on a date.
type HourWindow struct {
	BranchInfo
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayTable lists the twelve double hours of date's calendar day at
// longitude, as civil clock windows in date's location. Zi begins on the
// evening of the previous day.
func DayTable(date time.Time, longitude float64) []HourWindow {
	y, m, d := date.Date()
	loc := date.Location()

	_, offset := CalculateTrueSolarTime(time.Date(y, m, d, 12, 0, 0, 0, loc), longitude)
	offsetSeconds := 0
	if !math.IsNaN(offset) && !math.IsInf(offset, 0) {
		offsetSeconds = int(math.Round(offset * 60))
	}

	windows := make([]HourWindow, BranchCount)
	for i := range windows {
		startMinute := i*BranchMinutes - ziShiftMinutes
		start := time.Date(y, m, d, 0, 0, startMinute*60-offsetSeconds, 0, loc)
		end := time.Date(y, m, d, 0, 0, (startMinute+BranchMinutes)*60-offsetSeconds, 0, loc)
		windows[i] = HourWindow{BranchInfo: BranchAt(i), Start: start, End: end}
	}
	return windows
}
