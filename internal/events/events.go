package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Kind names a change to the garage.
type Kind string

const (
	VehicleAdded       Kind = "vehicle_added"
	VehicleRemoved     Kind = "vehicle_removed"
	VehicleUpdated     Kind = "vehicle_updated"
	MaintenanceAdded   Kind = "maintenance_added"
	MaintenanceRemoved Kind = "maintenance_removed"
	GarageCleared      Kind = "garage_cleared"
)

// Event describes one committed change.
type Event struct {
	Kind      Kind      `json:"kind"`
	Garage    string    `json:"garage"`
	VehicleID string    `json:"vehicleId,omitempty"`
	RecordID  string    `json:"recordId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// mqttClient is the part of mqtt.Client the publisher needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher sends events as JSON to <topic>/<kind>.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	topic = strings.TrimSuffix(strings.TrimSpace(topic), "/")
	if topic == "" {
		topic = "garage"
	}
	return &MQTTPublisher{client: client, topic: topic, qos: 1, timeout: 5 * time.Second}
}

// ConnectMQTT dials the broker and returns a connected client.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}

// Publish marshals e and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := p.client.Publish(p.topic+"/"+string(e.Kind), p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt publish %s timed out", e.Kind)
	}
	return token.Error()
}
