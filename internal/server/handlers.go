// ABOUTME: REST handlers for solar time, double-hour tables, locators, and history
// ABOUTME: Validates query parameters and maps domain errors to HTTP statuses

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/geojson"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
)

const defaultHistoryWindow = 24 * time.Hour

func (s *Server) now() time.Time {
	return s.cfg.Clock.Now().In(s.cfg.Zone())
}

// GET /api/solar-time
func (s *Server) handleSolarTime(c *gin.Context) {
	if s.cfg.Provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no provider configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.cfg.Provider.CurrentData()})
}

// GET /api/solar-time/compute?longitude=&latitude=&at=&tz=
func (s *Server) handleCompute(c *gin.Context) {
	lngStr, ok := c.GetQuery("longitude")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "longitude is required"})
		return
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude"})
		return
	}

	pos := models.GeoPosition{Longitude: lng, Precision: models.PrecisionLow, Source: "query"}
	if latStr, ok := c.GetQuery("latitude"); ok {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude"})
			return
		}
		pos.Latitude = lat
		pos.Precision = models.PrecisionHigh
	}
	if err := pos.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loc := s.cfg.Zone()
	if tz := c.Query("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
			return
		}
	}

	civil := s.cfg.Clock.Now().In(loc)
	if at := c.Query("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at must be RFC3339"})
			return
		}
		civil = t.In(loc)
	}

	c.JSON(http.StatusOK, gin.H{"data": solar.Compute(civil, pos)})
}

// GET /api/shichen
func (s *Server) handleBranches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": solar.Branches()})
}

// GET /api/shichen/table?date=2006-01-02&longitude=
func (s *Server) handleDayTable(c *gin.Context) {
	date := s.now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, d, s.cfg.Zone())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	var lng float64
	if lngStr, ok := c.GetQuery("longitude"); ok {
		v, err := strconv.ParseFloat(lngStr, 64)
		if err != nil || models.ValidateCoordinates(0, v) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude"})
			return
		}
		lng = v
	} else if s.cfg.Provider != nil {
		lng = s.cfg.Provider.CurrentData().Longitude
	} else {
		lng = geo.TimezoneEstimate(date).Longitude
	}

	c.JSON(http.StatusOK, gin.H{
		"data": solar.DayTable(date, lng),
		"meta": gin.H{"date": date.Format(time.DateOnly), "longitude": lng},
	})
}

type locatorView struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	MaxPrecision models.Precision     `json:"max_precision"`
	Status       models.LocatorStatus `json:"status"`
	Active       bool                 `json:"active,omitempty"`
}

// locatorSet is implemented by *geo.Composite.
type locatorSet interface {
	Locators() []geo.Locator
	Active() geo.Locator
}

func viewOf(l geo.Locator) locatorView {
	return locatorView{ID: l.ID(), Name: l.Name(), MaxPrecision: l.MaxPrecision(), Status: l.Status()}
}

// GET /api/locator/status
func (s *Server) handleLocatorStatus(c *gin.Context) {
	if s.cfg.Locator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no locator configured"})
		return
	}
	resp := gin.H{"locator": viewOf(s.cfg.Locator)}

	if set, ok := s.cfg.Locator.(locatorSet); ok {
		active := set.Active()
		var views []locatorView
		for _, l := range set.Locators() {
			v := viewOf(l)
			v.Active = active != nil && active.ID() == l.ID()
			views = append(views, v)
		}
		resp["sources"] = views
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// POST /api/locator/permission
func (s *Server) handleRequestPermission(c *gin.Context) {
	if s.cfg.Locator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no locator configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := s.cfg.Locator.RequestPermission(ctx)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "permission_state": state})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"permission_state": state,
		"status":           s.cfg.Locator.Status(),
	}})
}

// GET /api/history?since=24h&format=geojson
func (s *Server) handleHistory(c *gin.Context) {
	if s.cfg.Repo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is not enabled"})
		return
	}
	window := defaultHistoryWindow
	if v := c.Query("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a positive duration"})
			return
		}
		window = d
	}

	positions, err := s.cfg.Repo.ListPositions(s.cfg.Clock.Now().Add(-window))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []*models.PositionRecord{}
	}

	switch c.DefaultQuery("format", "json") {
	case "geojson":
		c.JSON(http.StatusOK, geojson.ToPointsFeatureCollection(positions, s.cfg.Zone()))
	case "json":
		c.JSON(http.StatusOK, gin.H{"data": positions, "meta": gin.H{"count": len(positions)}})
	default:
		_ = c.Error(errors.New("unknown format"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or geojson"})
	}
}
