// Package mqtt streams run progress snapshots to an MQTT broker so external
// dashboards can follow long solves year by year.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/transitionlab/fleetpath/core/progress"
	"github.com/transitionlab/fleetpath/infra/logger"
	"github.com/transitionlab/fleetpath/internal/eventbus"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ProgressPublisher forwards progress snapshots from the bus to the broker.
// Publish faults are logged and dropped: progress streaming must never stall
// or fail a running solve.
type ProgressPublisher struct {
	cli   pahoClient
	topic string
	qos   byte
	bus   *eventbus.Bus[progress.Snapshot]
	log   logger.Logger
}

// NewProgressPublisher connects to the broker and wires the publisher to the
// bus.
func NewProgressPublisher(cfg Config, bus *eventbus.Bus[progress.Snapshot]) (*ProgressPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("progress-publisher")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &ProgressPublisher{cli: cli, topic: cfg.Topic, qos: cfg.QoS, bus: bus, log: log}, nil
}

// Run consumes snapshots until the context is cancelled or the bus closes.
func (p *ProgressPublisher) Run(ctx context.Context) {
	sub := p.bus.Subscribe()
	defer p.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub:
			if !ok {
				return
			}
			p.publish(snap)
		}
	}
}

func (p *ProgressPublisher) publish(snap progress.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Errorf("marshal snapshot: %v", err)
		return
	}
	topic := fmt.Sprintf("%s/%s", p.topic, snap.ScenarioID)
	token := p.cli.Publish(topic, p.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		p.log.Errorf("publish %s: %v", topic, token.Error())
	}
}

// Close disconnects from the broker.
func (p *ProgressPublisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
