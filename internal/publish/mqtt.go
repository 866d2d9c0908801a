// ABOUTME: Publishes solar time updates to an MQTT broker
// ABOUTME: Retains the latest snapshot and announces double-hour transitions

// Package publish pushes provider updates to external brokers.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/solar"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

const (
	defaultClientID = "shichen"
	ackTimeout      = 5 * time.Second
	publishBuffer   = 8
	// BranchSuffix is appended to the topic for double-hour transitions.
	BranchSuffix = "/branch"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Source is anything that streams SolarTimeData, such as a
// provider.SolarTimeProvider.
type Source interface {
	Subscribe(fn func(solar.SolarTimeData)) (unsubscribe func())
}

// Publisher writes every SolarTimeData it sees to topic as retained JSON,
// and the current double hour to topic+BranchSuffix when it changes.
type Publisher struct {
	client Client
	topic  string
	log    *log.Logger

	mu         sync.Mutex
	lastBranch solar.Branch
	published  int
}

// New wraps an already connected client.
func New(client Client, topic string, l *log.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		log:    logger.Or(l).With("component", "mqtt", "topic", topic),
	}
}

// Connect dials broker and returns a publisher for topic.
func Connect(broker, clientID, topic string, l *log.Logger) (*Publisher, error) {
	if clientID == "" {
		clientID = defaultClientID
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(ackTimeout)

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	logger.Or(l).Info("connected to MQTT broker", "broker", broker, "client_id", clientID)
	return New(client, topic, l), nil
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(ackTimeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Publish sends one snapshot.
func (p *Publisher) Publish(data solar.SolarTimeData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal solar time: %w", err)
	}
	if err := wait(p.client.Publish(p.topic, 0, true, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}

	p.mu.Lock()
	p.published++
	changed := data.Shichen.Branch != p.lastBranch
	p.lastBranch = data.Shichen.Branch
	p.mu.Unlock()

	if changed {
		info := solar.BranchAt(data.Shichen.Index)
		payload, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal branch: %w", err)
		}
		if err := wait(p.client.Publish(p.topic+BranchSuffix, 1, true, payload)); err != nil {
			return fmt.Errorf("publish %s: %w", p.topic+BranchSuffix, err)
		}
		p.log.Info("double hour changed", "branch", info.Branch, "hanzi", info.Hanzi)
	}
	return nil
}

// Start publishes every update from src until the returned stop is called.
// Updates are queued and sent from a separate goroutine so a slow broker
// never holds up src; when the queue is full the update is dropped.
// Publish failures are logged. stop flushes what is queued.
func (p *Publisher) Start(src Source) (stop func()) {
	updates := make(chan solar.SolarTimeData, publishBuffer)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case d := <-updates:
				p.publishLogged(d)
			case <-done:
				for {
					select {
					case d := <-updates:
						p.publishLogged(d)
					default:
						return
					}
				}
			}
		}
	}()

	unsubscribe := src.Subscribe(func(d solar.SolarTimeData) {
		select {
		case updates <- d:
		default:
			p.log.Warn("broker lagging, dropping update", "minute", d.Minute)
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(done)
			<-finished
		})
	}
}

func (p *Publisher) publishLogged(d solar.SolarTimeData) {
	if err := p.Publish(d); err != nil {
		p.log.Warn("failed to publish solar time", "err", err)
	}
}

// Published returns how many snapshots have been sent.
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
