// ABOUTME: Background services shared by long-running commands
// ABOUTME: Starts the history recorder and MQTT publisher and stops them in reverse order

package main

import (
	"fmt"

	"github.com/harper/shichen/internal/config"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/provider"
	"github.com/harper/shichen/internal/publish"
	"github.com/harper/shichen/internal/storage"
)

// services tracks what a long-running command started.
type services struct {
	recorder  *storage.Recorder
	publisher *publish.Publisher
	stops     []func()
}

// startServices starts recording when record is set and publishing when an
// MQTT broker is configured and publishing is wanted.
func startServices(c *config.Config, stack *locatorStack, prov *provider.SolarTimeProvider, record, mqtt bool) (*services, error) {
	s := &services{}

	if record {
		store, err := openStore()
		if err != nil {
			return nil, err
		}
		s.recorder = storage.NewRecorder(store, models.PrecisionMedium, logr)
		s.recorder.Start(stack.composite)
		s.stops = append(s.stops, s.recorder.Stop)
	}

	if mqtt && c.MQTT.Broker != "" {
		pub, err := publish.Connect(c.MQTT.Broker, c.MQTT.ClientID, c.GetMQTTTopic(), logr)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		s.publisher = pub
		s.stops = append(s.stops, pub.Start(prov), pub.Close)
	}

	return s, nil
}

// Stop stops everything in reverse start order.
func (s *services) Stop() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.stops = nil
}

// summary reports counters for the final log line.
func (s *services) summary() []any {
	var kv []any
	if s.recorder != nil {
		kv = append(kv, "recorded", s.recorder.Saved())
	}
	if s.publisher != nil {
		kv = append(kv, "published", s.publisher.Published())
	}
	return kv
}
