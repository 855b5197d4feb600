// Package homeassistant provides MQTT auto-discovery support for Home Assistant integration.
package homeassistant

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed layouts/homeassistant_sensors.yaml
var homeAssistantSensorsYAML []byte

// Config holds the Home Assistant auto-discovery configuration.
type Config struct {
	Enabled            bool
	DiscoveryPrefix    string
	DeviceName         string
	DeviceManufacturer string
	RetainDiscovery    bool
}

// SensorConfig represents a sensor configuration from the layouts YAML.
type SensorConfig struct {
	Name              string `yaml:"name"`
	DeviceClass       string `yaml:"device_class,omitempty"`
	UnitOfMeasurement string `yaml:"unit_of_measurement,omitempty"`
	StateClass        string `yaml:"state_class,omitempty"`
	Category          string `yaml:"category"`
	Icon              string `yaml:"icon,omitempty"`
}

// LayoutConfig represents the full layout configuration for Home Assistant sensors.
type LayoutConfig struct {
	Version     string                  `yaml:"version"`
	Description string                  `yaml:"description"`
	Sensors     map[string]SensorConfig `yaml:"sensors"`
}

// DiscoveryMessage represents a Home Assistant MQTT discovery message.
type DiscoveryMessage struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	ValueTemplate     string     `json:"value_template"`
	DeviceClass       string     `json:"device_class,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	StateClass        string     `json:"state_class,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	EntityCategory    string     `json:"entity_category,omitempty"`
	Device            DeviceInfo `json:"device"`
}

// DeviceInfo represents device information for Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// AutoDiscovery handles Home Assistant MQTT auto-discovery for one device.
type AutoDiscovery struct {
	config       Config
	layoutConfig *LayoutConfig
	stateTopic   string
	deviceID     string
	model        string
}

// New creates a new Home Assistant auto-discovery instance. stateTopic is
// the topic the device's canonical readings are published on; deviceID is
// the device PN.
func New(config Config, stateTopic, deviceID, model string) (*AutoDiscovery, error) {
	ad := &AutoDiscovery{
		config:     config,
		stateTopic: stateTopic,
		deviceID:   deviceID,
		model:      model,
	}

	if err := ad.loadLayoutConfig(); err != nil {
		return nil, fmt.Errorf("failed to load layout config: %w", err)
	}

	return ad, nil
}

// loadLayoutConfig loads the Home Assistant sensor configuration from embedded YAML.
func (ad *AutoDiscovery) loadLayoutConfig() error {
	var config LayoutConfig
	if err := yaml.Unmarshal(homeAssistantSensorsYAML, &config); err != nil {
		return fmt.Errorf("failed to unmarshal Home Assistant sensors config: %w", err)
	}

	ad.layoutConfig = &config
	log.Info().
		Str("version", config.Version).
		Int("sensor_count", len(config.Sensors)).
		Msg("Home Assistant layout configuration loaded from YAML")

	return nil
}

// GenerateDiscoveryMessages generates discovery messages for every sensor
// present in the readings, keyed by discovery topic. Optional sensors that
// the readings omit get no message.
func (ad *AutoDiscovery) GenerateDiscoveryMessages(readings *domain.Readings) map[string]DiscoveryMessage {
	messages := make(map[string]DiscoveryMessage)
	if readings == nil || ad.layoutConfig == nil {
		return messages
	}

	fields := fieldMap(readings)
	for fieldName, sensorConfig := range ad.layoutConfig.Sensors {
		if _, present := fields[fieldName]; !present {
			continue
		}
		topic := ad.getDiscoveryTopic(fieldName)
		messages[topic] = ad.createDiscoveryMessage(fieldName, sensorConfig)
	}

	return messages
}

// fieldMap converts the readings into their wire field set.
func fieldMap(readings *domain.Readings) map[string]interface{} {
	raw, err := json.Marshal(readings)
	if err != nil {
		return nil
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

// createDiscoveryMessage creates a discovery message for a specific sensor.
func (ad *AutoDiscovery) createDiscoveryMessage(fieldName string, sensorConfig SensorConfig) DiscoveryMessage {
	var entityCategory string
	if sensorConfig.Category == "diagnostic" {
		entityCategory = "diagnostic"
	}

	deviceInfo := DeviceInfo{
		Identifiers:  []string{ad.deviceID},
		Name:         fmt.Sprintf("%s %s", ad.config.DeviceName, ad.deviceID),
		Manufacturer: ad.config.DeviceManufacturer,
		Model:        ad.model,
		SwVersion:    "go-dess",
	}

	return DiscoveryMessage{
		Name:              sensorConfig.Name,
		UniqueID:          fmt.Sprintf("%s_%s", ad.deviceID, fieldName),
		StateTopic:        ad.stateTopic,
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", fieldName),
		DeviceClass:       sensorConfig.DeviceClass,
		UnitOfMeasurement: sensorConfig.UnitOfMeasurement,
		StateClass:        sensorConfig.StateClass,
		Icon:              sensorConfig.Icon,
		EntityCategory:    entityCategory,
		Device:            deviceInfo,
	}
}

// getDiscoveryTopic generates the MQTT discovery topic for a sensor.
// Home Assistant discovery topic format:
// <discovery_prefix>/sensor/<node_id>/<object_id>/config
func (ad *AutoDiscovery) getDiscoveryTopic(fieldName string) string {
	nodeID := strings.ToLower(strings.ReplaceAll(ad.deviceID, " ", "_"))
	objectID := fmt.Sprintf("%s_%s", nodeID, fieldName)
	return fmt.Sprintf("%s/sensor/%s/%s/config", ad.config.DiscoveryPrefix, nodeID, objectID)
}

// GetAvailabilityTopic returns the availability topic for the device.
func (ad *AutoDiscovery) GetAvailabilityTopic() string {
	return ad.stateTopic + "/availability"
}

// CreateAvailabilityMessage creates availability messages based on configuration.
func (ad *AutoDiscovery) CreateAvailabilityMessage(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
