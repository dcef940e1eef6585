package thermostat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 10 * time.Second

// publisher is the slice of mqtt.Client the adapter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTAdapter publishes retained setpoints to
// {prefix}/{home_id}/{room_id}/setpoint. A retained message is the room's
// absolute desired state, so republishing it changes nothing.
type MQTTAdapter struct {
	client publisher
	prefix string
	qos    byte
	rooms  []config.Room
	log    *logger.Logger
	close  func()
}

type setpointMessage struct {
	Mode      string     `json:"mode"`
	Temp      *float64   `json:"temp,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DialMQTT connects to the broker from cfg.
func DialMQTT(cfg config.MQTTDriver, rooms []config.Room, log *logger.Logger) (*MQTTAdapter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}
	log.Infow("mqtt_connected", "broker", cfg.Broker)

	a := newMQTTAdapter(client, cfg, rooms, log)
	a.close = func() { client.Disconnect(250) }
	return a, nil
}

func newMQTTAdapter(p publisher, cfg config.MQTTDriver, rooms []config.Room, log *logger.Logger) *MQTTAdapter {
	return &MQTTAdapter{client: p, prefix: cfg.TopicPrefix, qos: cfg.QoS, rooms: rooms, log: log, close: func() {}}
}

func (a *MQTTAdapter) Topic(homeID, roomID string) string {
	return fmt.Sprintf("%s/%s/%s/setpoint", a.prefix, homeID, roomID)
}

func (a *MQTTAdapter) Apply(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	msg := setpointMessage{Mode: cmd.Mode, Temp: cmd.Temp}
	if cmd.ExpiresAt != nil {
		exp := cmd.ExpiresAt.UTC()
		msg.ExpiresAt = &exp
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode setpoint: %w", err)
	}

	topic := a.Topic(cmd.SiteID, cmd.RoomID)
	token := a.client.Publish(topic, a.qos, true, payload)

	wait := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, wait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	a.log.Debugw("thermostat_setpoint_published", "topic", topic, "mode", cmd.Mode)
	return nil
}

// Rooms lists the configured catalog; a broker cannot enumerate devices.
func (a *MQTTAdapter) Rooms(_ context.Context, homeID string) ([]models.SiteRoom, error) {
	return roomsFromConfig(a.rooms, homeID), nil
}

func (a *MQTTAdapter) Close() { a.close() }
