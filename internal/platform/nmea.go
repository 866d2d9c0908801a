// ABOUTME: GPS platform reading NMEA 0183 sentences from a serial receiver or log file
// ABOUTME: Parses RMC for position and GGA for HDOP-derived accuracy

// Package platform adapts physical location hardware to geo.GPSPlatform.
package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/charmbracelet/log"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/models"
)

// metersPerHDOP converts horizontal dilution of precision to an
// approximate accuracy for a consumer receiver.
const metersPerHDOP = 5.0

// ErrStreamEnded is reported when the sentence stream closes on its own.
var ErrStreamEnded = errors.New("nmea stream ended")

// ErrNoFix is returned when a stream ends without a valid position.
var ErrNoFix = errors.New("no valid gps fix")

// Opener opens a fresh NMEA sentence stream.
type Opener func() (io.ReadCloser, error)

// SerialConfig describes a serial-attached receiver.
type SerialConfig struct {
	Port string
	Baud uint
}

// OpenSerial returns an Opener for a serial receiver at 8N1.
func OpenSerial(cfg SerialConfig) Opener {
	baud := cfg.Baud
	if baud == 0 {
		baud = 9600
	}
	return func() (io.ReadCloser, error) {
		return serial.Open(serial.OpenOptions{
			PortName:        cfg.Port,
			BaudRate:        baud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		})
	}
}

// OpenFile returns an Opener replaying a recorded NMEA log.
func OpenFile(path string) Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// NMEAReceiver implements geo.GPSPlatform over an NMEA stream. Permission
// means the stream can be opened.
type NMEAReceiver struct {
	open Opener
	log  *log.Logger
}

var _ geo.GPSPlatform = (*NMEAReceiver)(nil)

// NewNMEAReceiver creates a receiver; a nil logger uses the default.
func NewNMEAReceiver(open Opener, l *log.Logger) *NMEAReceiver {
	return &NMEAReceiver{open: open, log: logger.Or(l).With("platform", "nmea")}
}

// Permission opens and closes the stream to see whether it is reachable.
func (r *NMEAReceiver) Permission(ctx context.Context) (models.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return models.PermissionUndetermined, err
	}
	rc, err := r.open()
	if err != nil {
		return permissionFromError(err)
	}
	_ = rc.Close()
	return models.PermissionGranted, nil
}

// RequestPermission is Permission; device access cannot be prompted for.
func (r *NMEAReceiver) RequestPermission(ctx context.Context) (models.PermissionState, error) {
	return r.Permission(ctx)
}

// CurrentFix reads until the first valid fix, the end of the stream, or
// ctx is done.
func (r *NMEAReceiver) CurrentFix(ctx context.Context) (geo.Fix, error) {
	rc, err := r.open()
	if err != nil {
		return geo.Fix{}, fmt.Errorf("open nmea stream: %w", err)
	}

	fixes := make(chan geo.Fix, 1)
	done := make(chan error, 1)
	go func() {
		done <- ReadFixes(rc, func(f geo.Fix) {
			select {
			case fixes <- f:
			default:
			}
		}, r.log)
	}()

	var closeOnce sync.Once
	closePort := func() { closeOnce.Do(func() { _ = rc.Close() }) }
	defer closePort()

	select {
	case f := <-fixes:
		return f, nil
	case err := <-done:
		select {
		case f := <-fixes:
			return f, nil
		default:
		}
		if err != nil {
			return geo.Fix{}, fmt.Errorf("read nmea stream: %w", err)
		}
		return geo.Fix{}, ErrNoFix
	case <-ctx.Done():
		return geo.Fix{}, ctx.Err()
	}
}

// Watch streams fixes until stop is called. The stream is read on its own
// goroutine; onErr receives read failures and ErrStreamEnded.
func (r *NMEAReceiver) Watch(onFix func(geo.Fix), onErr func(error)) (func(), error) {
	rc, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open nmea stream: %w", err)
	}

	var stopped atomic.Bool
	go func() {
		err := ReadFixes(rc, func(f geo.Fix) {
			if !stopped.Load() {
				onFix(f)
			}
		}, r.log)
		if stopped.Load() {
			return
		}
		if err == nil {
			err = ErrStreamEnded
		}
		onErr(err)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			_ = rc.Close()
		})
	}, nil
}

// ReadFixes parses sentences from rd and calls onFix for each valid RMC.
// The accuracy comes from the most recent GGA HDOP. It returns nil at EOF.
func ReadFixes(rd io.Reader, onFix func(geo.Fix), l *log.Logger) error {
	l = logger.Or(l)
	var hdop float64

	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			l.Debug("skipping sentence", "err", err)
			continue
		}

		switch s := sentence.(type) {
		case nmea.GGA:
			if s.FixQuality != nmea.Invalid && s.HDOP > 0 {
				hdop = s.HDOP
			}
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			fix := geo.Fix{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
				Timestamp: fixTime(s.Date, s.Time),
			}
			if hdop > 0 {
				fix.Accuracy = models.Float64Ptr(hdop * metersPerHDOP)
			}
			onFix(fix)
		}
	}

	err := scanner.Err()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// fixTime combines an RMC date and time into a UTC instant, zero when
// either part is missing. Two-digit years from 80 on are the 1900s.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

func permissionFromError(err error) (models.PermissionState, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return models.PermissionRestricted, nil
	case errors.Is(err, fs.ErrPermission):
		return models.PermissionDenied, nil
	default:
		return models.PermissionUndetermined, fmt.Errorf("open nmea stream: %w", err)
	}
}
