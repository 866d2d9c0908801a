// ABOUTME: Records positions from a live locator stream into the history store
// ABOUTME: Skips positions below a minimum precision and repeated coordinates

package storage

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/models"
)

// PositionSource is anything positions can be subscribed from, such as a
// geo.Locator.
type PositionSource interface {
	Subscribe(fn func(models.GeoPosition)) (unsubscribe func())
}

// Recorder persists positions pushed by a PositionSource.
type Recorder struct {
	repo PositionRepository
	min  models.Precision
	log  *log.Logger

	mu    sync.Mutex
	unsub func()
	saved int
}

// NewRecorder creates a recorder that keeps positions of at least min
// precision.
func NewRecorder(repo PositionRepository, min models.Precision, l *log.Logger) *Recorder {
	return &Recorder{repo: repo, min: min, log: logger.Or(l).With("component", "recorder")}
}

// Record stores pos if it qualifies. It reports whether a row was written.
func (r *Recorder) Record(pos models.GeoPosition) (bool, error) {
	if pos.Precision.Rank() < r.min.Rank() {
		return false, nil
	}
	if err := pos.Validate(); err != nil {
		return false, fmt.Errorf("record position: %w", err)
	}

	saved, err := r.repo.SavePosition(models.NewPositionRecord(pos))
	if err != nil {
		return false, err
	}
	if saved {
		r.mu.Lock()
		r.saved++
		r.mu.Unlock()
		r.log.Debug("recorded position", "source", pos.Source, "lat", pos.Latitude, "lng", pos.Longitude)
	}
	return saved, nil
}

// Start subscribes to src. Failures to record are logged, never returned.
// Calling Start again replaces the previous subscription.
func (r *Recorder) Start(src PositionSource) {
	unsub := src.Subscribe(func(pos models.GeoPosition) {
		if _, err := r.Record(pos); err != nil {
			r.log.Warn("failed to record position", "err", err)
		}
	})

	r.mu.Lock()
	prev := r.unsub
	r.unsub = unsub
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Stop ends the subscription started by Start.
func (r *Recorder) Stop() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Saved returns how many positions this recorder has written.
func (r *Recorder) Saved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}
