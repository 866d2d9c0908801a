// ABOUTME: Terminal UI formatting utilities
// ABOUTME: Renders solar time, double hours, locator status, and recorded positions

package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
)

var faint = color.New(color.Faint)

// FormatOffset renders a solar offset in minutes as a signed duration,
// e.g. "+5m53s" or "-1h20m00s".
func FormatOffset(minutes float64) string {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return "n/a"
	}
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	total := int(math.Round(minutes * 60))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%s%dh%02dm%02ds", sign, h, m, s)
	}
	return fmt.Sprintf("%s%dm%02ds", sign, m, s)
}

// FormatBranch renders a double hour as "午 wu (horse)".
func FormatBranch(info solar.BranchInfo) string {
	return fmt.Sprintf("%s %s %s",
		color.New(color.FgRed, color.Bold).Sprint(info.Hanzi),
		color.YellowString(string(info.Branch)),
		faint.Sprintf("(%s)", info.Animal))
}

// FormatSolarTime renders a full SolarTimeData snapshot for `shichen now`.
func FormatSolarTime(data solar.SolarTimeData) string {
	info := solar.BranchAt(data.Shichen.Index)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", color.CyanString("civil"), data.CivilTime.Format("15:04:05 MST"))
	fmt.Fprintf(&sb, "%s  %s %s\n", color.CyanString("solar"),
		color.New(color.Bold).Sprint(data.SolarTime.Format("15:04:05")),
		faint.Sprint(FormatOffset(data.SolarOffsetMinutes)))
	fmt.Fprintf(&sb, "%s  %s  %s\n", color.CyanString("hour "), FormatBranch(info),
		faint.Sprintf("%.0f%% · %.0f min left · hexagram %d",
			data.Shichen.Progress*100, data.Shichen.MinutesToNext, data.Shichen.HexagramNumber))
	fmt.Fprintf(&sb, "%s  %s\n", color.CyanString("where"), formatWhere(data))
	if data.Sun != nil {
		fmt.Fprintf(&sb, "%s  %s  %s  %s\n", color.CyanString("sun  "),
			"↑ "+data.Sun.Sunrise.Format("15:04"),
			"☀ "+data.Sun.SolarNoon.Format("15:04"),
			"↓ "+data.Sun.Sunset.Format("15:04"))
	}
	return sb.String()
}

func formatWhere(data solar.SolarTimeData) string {
	coords := fmt.Sprintf("(%.4f, %.4f)", data.Latitude, data.Longitude)
	if data.Precision == models.PrecisionLow {
		coords = fmt.Sprintf("longitude %.2f", data.Longitude)
	}
	return fmt.Sprintf("%s %s", coords, faint.Sprintf("[%s via %s]", FormatPrecision(data.Precision), sourceOr(data.Source)))
}

func sourceOr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// FormatPrecision colours a precision tier.
func FormatPrecision(p models.Precision) string {
	switch p {
	case models.PrecisionHigh:
		return color.GreenString(string(p))
	case models.PrecisionMedium:
		return color.YellowString(string(p))
	case models.PrecisionLow:
		return color.RedString(string(p))
	default:
		return faint.Sprint("unknown")
	}
}

// FormatDayTable renders the civil clock windows of the twelve double
// hours, marking the one containing now.
func FormatDayTable(windows []solar.HourWindow, now time.Time) string {
	var sb strings.Builder
	for _, w := range windows {
		line := fmt.Sprintf("%s–%s  %s  %s",
			w.Start.Format("15:04"), w.End.Format("15:04"),
			FormatBranch(w.BranchInfo),
			faint.Sprintf("%s · hexagram %d", w.Element, w.Hexagram))
		if !now.Before(w.Start) && now.Before(w.End) {
			line = color.New(color.Bold).Sprint("▶ ") + line
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatStatus renders one locator's status line.
func FormatStatus(name string, st models.LocatorStatus) string {
	avail := color.GreenString("available")
	if !st.IsAvailable {
		avail = color.RedString("unavailable")
	}
	return fmt.Sprintf("%-16s %s  %s  %s",
		name, formatPermission(st.PermissionState), avail, FormatPrecision(st.CurrentPrecision))
}

func formatPermission(p models.PermissionState) string {
	switch p {
	case models.PermissionGranted:
		return color.GreenString(string(p))
	case models.PermissionDenied, models.PermissionRestricted:
		return color.RedString(string(p))
	default:
		return color.YellowString(string(p))
	}
}

// FormatPosition formats a recorded position for terminal display.
func FormatPosition(pos *models.PositionRecord) string {
	if pos == nil {
		return faint.Sprint("(no position)")
	}
	coords := fmt.Sprintf("(%.4f, %.4f)", pos.Latitude, pos.Longitude)
	relTime := FormatRelativeTime(pos.RecordedAt)

	return fmt.Sprintf("%s %s - %s",
		color.CyanString(coords),
		faint.Sprintf("[%s %s]", sourceOr(pos.Source), pos.Precision),
		faint.Sprint(relTime))
}

// FormatPositionForTimeline formats a recorded position for the history
// listing, with the double hour it fell in.
func FormatPositionForTimeline(pos *models.PositionRecord, loc *time.Location) string {
	if pos == nil {
		return faint.Sprint("  (no position)")
	}
	civil := pos.RecordedAt.In(loc)
	data := solar.Compute(civil, pos.GeoPosition())
	info := solar.BranchAt(data.Shichen.Index)

	return fmt.Sprintf("  %s  %s %s  %s %s",
		civil.Format("Jan 2, 15:04"),
		color.CyanString(fmt.Sprintf("(%.4f, %.4f)", pos.Latitude, pos.Longitude)),
		faint.Sprint(sourceOr(pos.Source)),
		info.Hanzi,
		faint.Sprintf("solar %s", data.SolarTime.Format("15:04")))
}

// FormatRelativeTime formats a time as relative to now.
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	// Handle future times (clock skew, bad data)
	if diff < 0 {
		return color.YellowString("in the future")
	}

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(diff.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
