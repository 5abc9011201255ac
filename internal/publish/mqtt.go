// Package publish fans each cycle's row out to message brokers.
//
// MQTT publishes the row to <topic>/row and the names of the raised alert
// lines to <topic>/alerts. Redis keeps the latest row under <prefix>:latest,
// a bounded list of recent rows under <prefix>:recent and announces each row
// on the <prefix>:rows channel. Both implement rowlog.Logger so the agent
// treats them like any other row sink.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/rowlog"
)

const (
	mqttKeepAlive   = 30 // seconds
	mqttDialTimeout = 5 * time.Second
	mqttQoS         = 1
)

// AlertMessage is the payload published on <topic>/alerts.
type AlertMessage struct {
	Date   string   `json:"date"`
	Time   string   `json:"time"`
	Active []string `json:"active"`
}

// MQTT publishes rows to an MQTT broker. A lost connection is re-established
// on the next Log call.
type MQTT struct {
	cfg config.MQTTConfig

	mu     sync.Mutex
	client *paho.Client
}

// NewMQTT connects to the configured broker.
func NewMQTT(ctx context.Context, cfg config.MQTTConfig) (*MQTT, error) {
	m := &MQTT{cfg: cfg}
	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MQTT) connectLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, mqttDialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", m.cfg.Broker)
	if err != nil {
		return fmt.Errorf("publish: dial mqtt broker %s: %w", m.cfg.Broker, err)
	}

	c := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: m.cfg.ClientID,
		OnClientError: func(err error) {
			slog.Warn("publish: mqtt client error", "broker", m.cfg.Broker, "err", err)
		},
	})

	password := m.cfg.Password()
	ack, err := c.Connect(dialCtx, &paho.Connect{
		ClientID:     m.cfg.ClientID,
		CleanStart:   true,
		KeepAlive:    mqttKeepAlive,
		Username:     m.cfg.Username,
		UsernameFlag: m.cfg.Username != "",
		Password:     []byte(password),
		PasswordFlag: password != "",
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("publish: mqtt connect: %w", err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return fmt.Errorf("publish: mqtt connect refused: reason %d", ack.ReasonCode)
	}

	slog.Info("publish: mqtt connected", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
	m.client = c
	return nil
}

// Log implements rowlog.Logger.
func (m *MQTT) Log(ctx context.Context, row rowlog.Row) error {
	rowPayload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("publish: marshal row: %w", err)
	}
	alertPayload, err := json.Marshal(alertMessage(row))
	if err != nil {
		return fmt.Errorf("publish: marshal alerts: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		if err := m.connectLocked(ctx); err != nil {
			return err
		}
	}

	for _, msg := range []struct {
		topic   string
		payload []byte
	}{
		{m.cfg.Topic + "/row", rowPayload},
		{m.cfg.Topic + "/alerts", alertPayload},
	} {
		if _, err := m.client.Publish(ctx, &paho.Publish{
			Topic:   msg.topic,
			QoS:     mqttQoS,
			Retain:  m.cfg.Retain,
			Payload: msg.payload,
		}); err != nil {
			// Drop the client so the next cycle reconnects.
			m.client = nil
			return fmt.Errorf("publish: mqtt publish %s: %w", msg.topic, err)
		}
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	m.client = nil
	return err
}

func alertMessage(row rowlog.Row) AlertMessage {
	msg := AlertMessage{Date: row.Date, Time: row.TimeOfDay, Active: []string{}}
	for _, i := range fusion.AlertVector(row.Alerts).Active() {
		msg.Active = append(msg.Active, fusion.AlertName(i))
	}
	return msg
}
