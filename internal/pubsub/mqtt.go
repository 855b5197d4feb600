// Package pubsub provides implementations of message publishers.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/config"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/homeassistant"
)

// NoopPublisher is a no-operation implementation of the MessagePublisher interface.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-operation publisher.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Connect is a no-op for the NoopPublisher.
func (p *NoopPublisher) Connect(_ context.Context) error {
	return nil
}

// Publish is a no-op for the NoopPublisher.
func (p *NoopPublisher) Publish(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// Close is a no-op for the NoopPublisher.
func (p *NoopPublisher) Close() error {
	return nil
}

// MQTTPublisher implements the MessagePublisher interface for MQTT.
type MQTTPublisher struct {
	config        *config.Config
	client        mqtt.Client
	connected     bool
	logger        zerolog.Logger
	clientFactory func(*config.Config) mqtt.Client // Factory function for creating MQTT clients (testable)

	haDiscovery       map[string]*homeassistant.AutoDiscovery // Per-device discovery, keyed by PN
	discoveredSensors map[string]bool                         // Track which discovery topics have been published
	lastDiscoveryTime time.Time
}

// NewMQTTPublisher creates a new MQTT publisher.
func NewMQTTPublisher(cfg *config.Config) *MQTTPublisher {
	logger := log.With().Str("component", "mqtt").Logger()
	return &MQTTPublisher{
		config:            cfg,
		clientFactory:     createMQTTClient,
		haDiscovery:       make(map[string]*homeassistant.AutoDiscovery),
		discoveredSensors: make(map[string]bool),
		logger:            logger,
	}
}

// NewMQTTPublisherWithClient creates a new MQTT publisher with a custom client (for testing).
func NewMQTTPublisherWithClient(cfg *config.Config, client mqtt.Client) *MQTTPublisher {
	logger := log.With().Str("component", "mqtt").Logger()
	return &MQTTPublisher{
		config:            cfg,
		client:            client,
		haDiscovery:       make(map[string]*homeassistant.AutoDiscovery),
		discoveredSensors: make(map[string]bool),
		logger:            logger,
	}
}

// createMQTTClient is the default factory function for creating MQTT clients.
func createMQTTClient(cfg *config.Config) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)).
		SetClientID(fmt.Sprintf("go-dess-%d", time.Now().Unix())).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetWriteTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetCleanSession(false)

	// Set credentials if provided
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	return mqtt.NewClient(opts)
}

// Connect establishes a connection to the MQTT broker.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	// If MQTT is disabled, do nothing
	if !p.config.MQTT.Enabled {
		return nil
	}

	// Create client if not already set (for testing)
	if p.client == nil {
		p.client = p.clientFactory(p.config)
	}

	// Connect with context for timeout
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	connToken := p.client.Connect()

	// Wait for connection or context timeout
	select {
	case <-connectCtx.Done():
		return fmt.Errorf("failed to connect to MQTT broker: timeout after 10 seconds")
	case <-connToken.Done():
		if connToken.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", connToken.Error())
		}
	}

	p.connected = true
	return nil
}

// shouldRediscover checks if we should perform periodic rediscovery.
func (p *MQTTPublisher) shouldRediscover() bool {
	if p.config.MQTT.HomeAssistantAutoDiscovery.RediscoveryInterval <= 0 {
		return false
	}

	if p.lastDiscoveryTime.IsZero() {
		return true
	}

	interval := time.Duration(p.config.MQTT.HomeAssistantAutoDiscovery.RediscoveryInterval) * time.Hour
	return time.Since(p.lastDiscoveryTime) >= interval
}

// Publish sends data to the specified topic.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, data interface{}) error {
	if !p.config.MQTT.Enabled || !p.connected {
		return nil
	}

	// Canonical readings get Home Assistant auto-discovery handling
	if readings, ok := data.(*domain.Readings); ok {
		return p.publishReadingsWithDiscovery(ctx, topic, readings)
	}

	return p.publishGeneric(ctx, topic, data)
}

// publishGeneric handles simple JSON publishing.
func (p *MQTTPublisher) publishGeneric(ctx context.Context, topic string, data interface{}) error {
	// Convert data to JSON
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	// Publish with context for timeout
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	token := p.client.Publish(topic, 0, p.config.MQTT.Retain, jsonData)

	// Wait for publication or context timeout
	select {
	case <-publishCtx.Done():
		return fmt.Errorf("publish timeout after 5 seconds")
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to publish message: %w", token.Error())
		}
	}

	return nil
}

// publishReadingsWithDiscovery handles canonical readings with Home Assistant auto-discovery.
func (p *MQTTPublisher) publishReadingsWithDiscovery(ctx context.Context, topic string, readings *domain.Readings) error {
	if p.config.MQTT.HomeAssistantAutoDiscovery.Enabled {
		if err := p.publishHomeAssistantDiscovery(topic, readings); err != nil {
			return fmt.Errorf("failed to publish Home Assistant discovery: %w", err)
		}
	}

	return p.publishGeneric(ctx, topic, readings)
}

// deviceIDFromTopic extracts the device PN from a readings topic. The
// readings topic is the configured base topic with the PN appended.
func deviceIDFromTopic(topic string) string {
	if idx := strings.LastIndex(topic, "/"); idx != -1 {
		return topic[idx+1:]
	}
	return topic
}

// discoveryForTopic lazily creates the auto-discovery instance for a device.
func (p *MQTTPublisher) discoveryForTopic(topic string) (*homeassistant.AutoDiscovery, error) {
	deviceID := deviceIDFromTopic(topic)
	if ad, ok := p.haDiscovery[deviceID]; ok {
		return ad, nil
	}

	haConfig := homeassistant.Config{
		Enabled:            p.config.MQTT.HomeAssistantAutoDiscovery.Enabled,
		DiscoveryPrefix:    p.config.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix,
		DeviceName:         p.config.MQTT.HomeAssistantAutoDiscovery.DeviceName,
		DeviceManufacturer: p.config.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer,
		RetainDiscovery:    p.config.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery,
	}

	model := p.deviceModel(deviceID)
	ad, err := homeassistant.New(haConfig, topic, deviceID, model)
	if err != nil {
		return nil, err
	}
	p.haDiscovery[deviceID] = ad
	return ad, nil
}

// deviceModel looks up a configured alias for the device to use as the
// Home Assistant model string.
func (p *MQTTPublisher) deviceModel(deviceID string) string {
	for _, dc := range p.config.Devices {
		if dc.PN == deviceID && dc.Alias != "" {
			return dc.Alias
		}
	}
	return "DESS Inverter"
}

// publishHomeAssistantDiscovery publishes Home Assistant auto-discovery messages.
func (p *MQTTPublisher) publishHomeAssistantDiscovery(topic string, readings *domain.Readings) error {
	ad, err := p.discoveryForTopic(topic)
	if err != nil {
		return err
	}

	// Check if we should rediscover sensors (periodic or first publish)
	shouldRediscover := p.shouldRediscover()

	// Generate discovery messages for all sensors present in the readings
	discoveryMessages := ad.GenerateDiscoveryMessages(readings)

	// Publish each discovery message
	for discoveryTopic, message := range discoveryMessages {
		if !p.discoveredSensors[discoveryTopic] || shouldRediscover {
			messageJSON, err := json.Marshal(message)
			if err != nil {
				return fmt.Errorf("failed to marshal discovery message: %w", err)
			}

			token := p.client.Publish(discoveryTopic, 0, p.config.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery, messageJSON)
			if token.Wait() && token.Error() != nil {
				return fmt.Errorf("failed to publish discovery message to %s: %w", discoveryTopic, token.Error())
			}

			p.discoveredSensors[discoveryTopic] = true
		}
	}

	// Update last discovery time if we performed rediscovery
	if shouldRediscover {
		p.lastDiscoveryTime = time.Now()
	}

	// Publish availability message
	availTopic := ad.GetAvailabilityTopic()
	availMessage := ad.CreateAvailabilityMessage(true)
	token := p.client.Publish(availTopic, 0, p.config.MQTT.Retain, availMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish availability message: %w", token.Error())
	}

	return nil
}

// Close terminates the connection to the MQTT broker.
func (p *MQTTPublisher) Close() error {
	if p.client != nil && p.connected {
		p.client.Disconnect(250) // Disconnect with 250ms timeout
		p.connected = false
	}
	return nil
}
