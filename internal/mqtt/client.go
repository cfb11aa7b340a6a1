// client.go: Package mqtt publishes detection events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

// Client is the publishing contract used by the capture pipeline.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic, payload string) error
	PublishDetection(ctx context.Context, msg *DetectionMessage) error
	IsConnected() bool
	Disconnect()
}

// DetectionMessage is the JSON payload published per qualifying detection.
type DetectionMessage struct {
	Node       string    `json:"node"`
	CameraID   int       `json:"camera_id"`
	Species    string    `json:"species"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
	PhotoPath  string    `json:"photo_path,omitempty"`
}

type client struct {
	broker   string
	clientID string
	username string
	password string
	topic    string
	log      *slog.Logger

	mu             sync.Mutex
	internalClient mqtt.Client
}

// NewClient creates a new MQTT client with the provided configuration.
func NewClient(settings *conf.Settings, logger *slog.Logger) Client {
	return &client{
		broker:   settings.MQTT.Broker,
		clientID: settings.Main.Name,
		username: settings.MQTT.Username,
		password: settings.MQTT.Password,
		topic:    settings.MQTT.Topic,
		log:      logger,
	}
}

// Connect attempts to establish a connection to the MQTT broker. The
// hostname is resolved first so a misconfigured broker fails fast instead of
// hanging in the paho dial.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(c.clientID)
	opts.SetUsername(c.username)
	opts.SetPassword(c.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", "broker", c.broker, "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.log.Info("connected to mqtt broker", "broker", c.broker)
	})

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	token := c.internalClient.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

// PublishDetection marshals and publishes one detection on the configured topic.
func (c *client) PublishDetection(ctx context.Context, msg *DetectionMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling detection message: %w", err)
	}
	return c.Publish(ctx, c.topic, string(payload))
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
}
