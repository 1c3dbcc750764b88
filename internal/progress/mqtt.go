// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package progress

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/relabs-tech/hmd_viewing/internal/logging"
)

// publishTimeout bounds how long a worker waits for the broker.
const publishTimeout = 2 * time.Second

// Connect opens a client to broker, for example tcp://localhost:1883.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log := logging.WithComponent("mqtt")
	log.Info().Str("broker", broker).Msg("connected to MQTT broker")
	return client, nil
}

// MQTTReporter publishes snapshots as retained JSON messages, so a client
// subscribing mid-run sees the current state immediately.
type MQTTReporter struct {
	client mqtt.Client
	topic  string
}

func NewMQTTReporter(client mqtt.Client, topic string) *MQTTReporter {
	return &MQTTReporter{client: client, topic: topic}
}

func (r *MQTTReporter) Publish(s Snapshot) {
	log := logging.WithComponent("mqtt")
	payload, err := json.Marshal(s)
	if err != nil {
		log.Error().Err(err).Msg("progress marshal error")
		return
	}
	token := r.client.Publish(r.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", r.topic).Msg("progress publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", r.topic).Msg("progress publish error")
	}
}

// Subscribe forwards every snapshot received on topic to r. Malformed
// payloads are logged and skipped.
func Subscribe(client mqtt.Client, topic string, r Reporter) error {
	log := logging.WithComponent("mqtt")
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("progress payload unmarshal error")
			return
		}
		r.Publish(s)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Msg("subscribed to progress topic")
	return nil
}
