// Package mqttpub publishes motion events and zone transitions to an MQTT
// broker so home-automation systems can react to them.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/monitoring"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectMs   = 250
)

// Publisher forwards motion events to topics under a configurable prefix:
// <prefix>/motion carries every event, <prefix>/zones/<id> carries the
// events attributed to that zone.
type Publisher struct {
	client mqtt.Client
	prefix string
}

// Connect dials the broker and returns a ready publisher.
func Connect(brokerURL, clientID, topicPrefix string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			monitoring.Logf("mqtt connection lost: %v", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			monitoring.Logf("mqtt connected to %s", brokerURL)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}

	return &Publisher{client: client, prefix: topicPrefix}, nil
}

// Subscriber returns the broadcaster callback that publishes each event.
func (p *Publisher) Subscriber() engine.Subscriber {
	return func(ev engine.MotionEvent) {
		p.PublishMotion(ev)
	}
}

// PublishMotion serializes one event onto the motion topic, and the zone
// topic when the event carries a zone attribution.
func (p *Publisher) PublishMotion(ev engine.MotionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		monitoring.Logf("mqtt marshal event %s: %v", ev.ID, err)
		return
	}

	p.publish(p.prefix+"/motion", payload)
	if ev.ZoneID != "" {
		p.publish(p.prefix+"/zones/"+ev.ZoneID, payload)
	}
}

func (p *Publisher) publish(topic string, payload []byte) {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		monitoring.Counter("mqtt_publish_timeouts").Add(1)
		return
	}
	if err := token.Error(); err != nil {
		monitoring.Logf("mqtt publish to %s: %v", topic, err)
		monitoring.Counter("mqtt_publish_failures").Add(1)
	}
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectMs)
}
