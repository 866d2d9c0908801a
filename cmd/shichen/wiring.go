// ABOUTME: Builds the locator stack from configuration
// ABOUTME: Timezone estimate, optional GeoIP and NMEA GPS, merged into one composite

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/config"
	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/platform"
	"github.com/harper/shichen/internal/provider"
)

// permissionCheckTimeout bounds the initial GPS permission check.
const permissionCheckTimeout = 3 * time.Second

// locatorStack is the composite plus everything that must be closed with it.
type locatorStack struct {
	composite *geo.Composite
	closers   []func() error
}

// Close shuts the composite down, then any databases it was reading.
func (s *locatorStack) Close() error {
	errs := []error{s.composite.Close()}
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// buildLocators assembles the locators c enables. The timezone locator is
// always present, so the composite always has a fallback.
func buildLocators(ctx context.Context, c *config.Config, l *log.Logger) (*locatorStack, error) {
	l = logger.Or(l)
	zone, err := zoneFunc()
	if err != nil {
		return nil, err
	}
	opts := []geo.Option{geo.WithLogger(l)}

	stack := &locatorStack{}
	locators := []geo.Locator{geo.NewTimezoneLocator(zone, opts...)}

	if c.GeoIP.Database != "" {
		addr := net.ParseIP(c.GeoIP.Address)
		if addr == nil {
			l.Warn("geoip address missing or invalid, skipping geoip", "address", c.GeoIP.Address)
		} else {
			loc, closeDB, err := geo.OpenGeoIPLocator(config.ExpandPath(c.GeoIP.Database), addr, opts...)
			if err != nil {
				l.Warn("geoip database unavailable", "err", err)
			} else {
				locators = append(locators, loc)
				stack.closers = append(stack.closers, closeDB)
			}
		}
	}

	if c.GPS.Enabled() {
		var open platform.Opener
		if c.GPS.Replay != "" {
			open = platform.OpenFile(config.ExpandPath(c.GPS.Replay))
		} else {
			open = platform.OpenSerial(platform.SerialConfig{Port: c.GPS.Port, Baud: c.GPS.Baud})
		}
		gps := geo.NewGPSLocator(platform.NewNMEAReceiver(open, l), opts...)

		checkCtx, cancel := context.WithTimeout(ctx, permissionCheckTimeout)
		state := gps.CheckPermission(checkCtx)
		cancel()
		l.Debug("gps permission", "state", state)

		locators = append(locators, gps)
	}

	composite, err := geo.NewComposite(locators, opts...)
	if err != nil {
		for _, l := range locators {
			_ = l.Close()
		}
		for _, closeFn := range stack.closers {
			_ = closeFn()
		}
		return nil, fmt.Errorf("build locators: %w", err)
	}
	stack.composite = composite
	return stack, nil
}

// newProvider wires a solar time provider over the stack.
func newProvider(stack *locatorStack, l *log.Logger) (*provider.SolarTimeProvider, error) {
	zone, err := zoneFunc()
	if err != nil {
		return nil, err
	}
	return provider.NewSolarTimeProvider(stack.composite,
		provider.WithLogger(l),
		provider.WithZone(zone),
	), nil
}
