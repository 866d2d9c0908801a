// ABOUTME: MCP tool definitions and handlers
// ABOUTME: Computes solar time and double-hour tables for AI agents

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const maxHistoryHours = 24 * 365

func (s *Server) registerTools() {
	s.registerSolarTimeTool()
	s.registerDayTableTool()
	if s.provider != nil {
		s.registerCurrentSolarTimeTool()
	}
	if s.repo != nil {
		s.registerRecentPositionsTool()
	}
}

// SolarTimeInput defines input for the solar_time tool.
type SolarTimeInput struct {
	Longitude float64  `json:"longitude"`
	Latitude  *float64 `json:"latitude,omitempty"`
	At        *string  `json:"at,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
}

// SolarTimeOutput is the agent-facing view of a SolarTimeData.
type SolarTimeOutput struct {
	CivilTime          string  `json:"civil_time"`
	SolarTime          string  `json:"solar_time"`
	SolarOffsetMinutes float64 `json:"solar_offset_minutes"`
	Branch             string  `json:"branch"`
	Hanzi              string  `json:"hanzi"`
	Animal             string  `json:"animal"`
	Hexagram           int     `json:"hexagram"`
	Progress           float64 `json:"progress"`
	MinutesToNext      float64 `json:"minutes_to_next"`
	Precision          string  `json:"precision"`
	Source             string  `json:"source,omitempty"`
	Longitude          float64 `json:"longitude"`
	Latitude           float64 `json:"latitude"`
	Sunrise            string  `json:"sunrise,omitempty"`
	Sunset             string  `json:"sunset,omitempty"`
}

func toOutput(d solar.SolarTimeData) SolarTimeOutput {
	info := solar.BranchAt(d.Shichen.Index)
	out := SolarTimeOutput{
		CivilTime:          d.CivilTime.Format(time.RFC3339),
		SolarTime:          d.SolarTime.Format("15:04:05"),
		SolarOffsetMinutes: d.SolarOffsetMinutes,
		Branch:             string(info.Branch),
		Hanzi:              info.Hanzi,
		Animal:             info.Animal,
		Hexagram:           d.Shichen.HexagramNumber,
		Progress:           d.Shichen.Progress,
		MinutesToNext:      d.Shichen.MinutesToNext,
		Precision:          string(d.Precision),
		Source:             d.Source,
		Longitude:          d.Longitude,
		Latitude:           d.Latitude,
	}
	if d.Sun != nil {
		out.Sunrise = d.Sun.Sunrise.Format("15:04")
		out.Sunset = d.Sun.Sunset.Format("15:04")
	}
	return out
}

func textResult(v any) *mcp.CallToolResult {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ") //nolint:errchkjson // output is always serializable
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}
}

func (s *Server) registerSolarTimeTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "solar_time",
		Description: "Compute true local solar time and the Chinese double hour (shichen) for a longitude, at now or a given time.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"longitude": map[string]any{
					"type":        "number",
					"description": "Longitude in degrees (-180 to 180), east positive",
				},
				"latitude": map[string]any{
					"type":        "number",
					"description": "Optional latitude (-90 to 90); enables sunrise and sunset",
				},
				"at": map[string]any{
					"type":        "string",
					"description": "Optional civil time in RFC3339 format; defaults to now",
				},
				"timezone": map[string]any{
					"type":        "string",
					"description": "Optional IANA time zone, e.g. 'Asia/Shanghai'",
				},
			},
			"required": []string{"longitude"},
		},
	}, s.handleSolarTime)
}

func (s *Server) handleSolarTime(_ context.Context, _ *mcp.CallToolRequest, input SolarTimeInput) (*mcp.CallToolResult, SolarTimeOutput, error) {
	pos := models.GeoPosition{Longitude: input.Longitude, Precision: models.PrecisionLow, Source: "agent"}
	if input.Latitude != nil {
		pos.Latitude = *input.Latitude
		pos.Precision = models.PrecisionHigh
	}
	if err := pos.Validate(); err != nil {
		return nil, SolarTimeOutput{}, err
	}

	loc := s.zone()
	if input.Timezone != nil && *input.Timezone != "" {
		l, err := time.LoadLocation(*input.Timezone)
		if err != nil {
			return nil, SolarTimeOutput{}, fmt.Errorf("unknown timezone %q", *input.Timezone)
		}
		loc = l
	}

	civil := s.clock.Now().In(loc)
	if input.At != nil {
		t, err := time.Parse(time.RFC3339, *input.At)
		if err != nil {
			return nil, SolarTimeOutput{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		civil = t.In(loc)
	}

	output := toOutput(solar.Compute(civil, pos))
	return textResult(output), output, nil
}

// CurrentSolarTimeInput is empty; the tool reads the live provider.
type CurrentSolarTimeInput struct{}

func (s *Server) registerCurrentSolarTimeTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "current_solar_time",
		Description: "Get the live solar time and double hour at this device's best known position.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, s.handleCurrentSolarTime)
}

func (s *Server) handleCurrentSolarTime(_ context.Context, _ *mcp.CallToolRequest, _ CurrentSolarTimeInput) (*mcp.CallToolResult, SolarTimeOutput, error) {
	if s.provider == nil {
		return nil, SolarTimeOutput{}, errors.New("no live provider configured")
	}
	output := toOutput(s.provider.CurrentData())
	return textResult(output), output, nil
}

// DayTableInput defines input for the day_table tool.
type DayTableInput struct {
	Longitude *float64 `json:"longitude,omitempty"`
	Date      *string  `json:"date,omitempty"`
}

// HourWindowOutput is one row of the day table.
type HourWindowOutput struct {
	Branch   string `json:"branch"`
	Hanzi    string `json:"hanzi"`
	Animal   string `json:"animal"`
	Hexagram int    `json:"hexagram"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// DayTableOutput lists the twelve double hours of a date.
type DayTableOutput struct {
	Date      string             `json:"date"`
	Longitude float64            `json:"longitude"`
	Hours     []HourWindowOutput `json:"hours"`
}

func (s *Server) registerDayTableTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "day_table",
		Description: "List the civil clock times at which each of the twelve double hours begins and ends on a date.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"longitude": map[string]any{
					"type":        "number",
					"description": "Longitude in degrees; defaults to the live position or the time zone offset estimate",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Date as YYYY-MM-DD; defaults to today",
				},
			},
		},
	}, s.handleDayTable)
}

func (s *Server) handleDayTable(_ context.Context, _ *mcp.CallToolRequest, input DayTableInput) (*mcp.CallToolResult, DayTableOutput, error) {
	loc := s.zone()
	date := s.clock.Now().In(loc)
	if input.Date != nil && *input.Date != "" {
		d, err := time.ParseInLocation(time.DateOnly, *input.Date, loc)
		if err != nil {
			return nil, DayTableOutput{}, fmt.Errorf("invalid date: %w", err)
		}
		date = d
	}

	var lng float64
	switch {
	case input.Longitude != nil:
		lng = *input.Longitude
		if err := models.ValidateCoordinates(0, lng); err != nil {
			return nil, DayTableOutput{}, err
		}
	case s.provider != nil:
		lng = s.provider.CurrentData().Longitude
	default:
		lng = geo.TimezoneEstimate(date).Longitude
	}

	windows := solar.DayTable(date, lng)
	output := DayTableOutput{
		Date:      date.Format(time.DateOnly),
		Longitude: lng,
		Hours:     make([]HourWindowOutput, len(windows)),
	}
	for i, w := range windows {
		output.Hours[i] = HourWindowOutput{
			Branch:   string(w.Branch),
			Hanzi:    w.Hanzi,
			Animal:   w.Animal,
			Hexagram: w.Hexagram,
			Start:    w.Start.Format(time.RFC3339),
			End:      w.End.Format(time.RFC3339),
		}
	}
	return textResult(output), output, nil
}

// RecentPositionsInput defines input for the recent_positions tool.
type RecentPositionsInput struct {
	Hours int `json:"hours,omitempty"`
}

// PositionOutput is one recorded position with its double hour.
type PositionOutput struct {
	Source     string  `json:"source"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Precision  string  `json:"precision"`
	RecordedAt string  `json:"recorded_at"`
	SolarTime  string  `json:"solar_time"`
	Branch     string  `json:"branch"`
}

// RecentPositionsOutput lists recorded positions, newest first.
type RecentPositionsOutput struct {
	Positions []PositionOutput `json:"positions"`
	Count     int              `json:"count"`
}

func (s *Server) registerRecentPositionsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recent_positions",
		Description: "List recorded positions from the last N hours, newest first, with the solar time at each.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hours": map[string]any{
					"type":        "integer",
					"description": "How many hours back to look (default 24)",
				},
			},
		},
	}, s.handleRecentPositions)
}

func (s *Server) handleRecentPositions(_ context.Context, _ *mcp.CallToolRequest, input RecentPositionsInput) (*mcp.CallToolResult, RecentPositionsOutput, error) {
	if s.repo == nil {
		return nil, RecentPositionsOutput{}, errors.New("history is not enabled")
	}
	hours := input.Hours
	if hours == 0 {
		hours = 24
	}
	if hours < 0 || hours > maxHistoryHours {
		return nil, RecentPositionsOutput{}, fmt.Errorf("hours must be between 1 and %d", maxHistoryHours)
	}

	positions, err := s.repo.ListPositions(s.clock.Now().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		return nil, RecentPositionsOutput{}, fmt.Errorf("failed to list positions: %w", err)
	}

	loc := s.zone()
	outputs := make([]PositionOutput, len(positions))
	for i, pos := range positions {
		civil := pos.RecordedAt.In(loc)
		data := solar.Compute(civil, pos.GeoPosition())
		outputs[i] = PositionOutput{
			Source:     pos.Source,
			Latitude:   pos.Latitude,
			Longitude:  pos.Longitude,
			Precision:  string(pos.Precision),
			RecordedAt: civil.Format(time.RFC3339),
			SolarTime:  data.SolarTime.Format("15:04:05"),
			Branch:     string(data.Shichen.Branch),
		}
	}

	output := RecentPositionsOutput{Positions: outputs, Count: len(outputs)}
	return textResult(output), output, nil
}
