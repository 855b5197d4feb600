// Package config provides configuration management for the go-dess application.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// General settings
	LogLevel     string `mapstructure:"log_level"`
	PollInterval int    `mapstructure:"poll_interval_seconds"`

	// Vendor cloud settings
	Cloud struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string `mapstructure:"token"`
		Secret  string `mapstructure:"secret"`
		Timeout int    `mapstructure:"timeout_seconds"`

		// Aliases whose values are only served by the control-value
		// channel; refreshed into the snapshot's ctrl_values cache.
		CtrlCacheAliases []string `mapstructure:"ctrl_cache_aliases"`
	} `mapstructure:"cloud"`

	// Statically configured devices; when empty, the device list is
	// discovered from the cloud account.
	Devices []DeviceConfig `mapstructure:"devices"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	// MQTT settings
	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Topic    string `mapstructure:"topic"`
		Retain   bool   `mapstructure:"retain"`

		// Home Assistant Auto-Discovery settings
		HomeAssistantAutoDiscovery struct {
			Enabled             bool   `mapstructure:"enabled"`
			DiscoveryPrefix     string `mapstructure:"discovery_prefix"`
			DeviceName          string `mapstructure:"device_name"`
			DeviceManufacturer  string `mapstructure:"device_manufacturer"`
			RetainDiscovery     bool   `mapstructure:"retain_discovery"`
			RediscoveryInterval int    `mapstructure:"rediscovery_interval_hours"`
		} `mapstructure:"homeassistant_autodiscovery"`
	} `mapstructure:"mqtt"`
}

// DeviceConfig is one statically configured device.
type DeviceConfig struct {
	PN      string `mapstructure:"pn"`
	SN      string `mapstructure:"sn"`
	Devcode int    `mapstructure:"devcode"`
	Devaddr int    `mapstructure:"devaddr"`
	Alias   string `mapstructure:"alias"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel:     "info",
		PollInterval: 60,
	}

	// Default cloud settings
	cfg.Cloud.BaseURL = "https://api.dessmonitor.com/public/"
	cfg.Cloud.Timeout = 15
	cfg.Cloud.CtrlCacheAliases = []string{
		"bt_eybond_ctrl_14",
		"bt_eybond_ctrl_15",
		"bt_eybond_ctrl_16",
	}

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080

	// Default MQTT settings
	cfg.MQTT.Enabled = true
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.Topic = "energy/dess"
	cfg.MQTT.Retain = false

	// Default Home Assistant Auto-Discovery settings
	cfg.MQTT.HomeAssistantAutoDiscovery.Enabled = false
	cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix = "homeassistant"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceName = "DESS Inverter"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer = "Eybond"
	cfg.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery = true
	cfg.MQTT.HomeAssistantAutoDiscovery.RediscoveryInterval = 24 // 24 hours

	return cfg
}

// PollIntervalDuration returns the poll interval as a duration.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// CloudTimeout returns the cloud request timeout as a duration.
func (c *Config) CloudTimeout() time.Duration {
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Set up Viper
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Override with specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Println("No configuration file found, using defaults")
		} else {
			// Other errors (like invalid YAML) should be returned
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("GODESS")
	v.AutomaticEnv()

	// Unmarshal config
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-dess Server Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")
	logger.Info().Int("poll_interval_seconds", c.PollInterval).Msg("Poll Interval")

	logger.Info().
		Str("base_url", c.Cloud.BaseURL).
		Int("timeout_seconds", c.Cloud.Timeout).
		Int("ctrl_cache_aliases", len(c.Cloud.CtrlCacheAliases)).
		Msg("Cloud")

	logger.Info().Int("devices", len(c.Devices)).Msg("Configured Devices")

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic", c.MQTT.Topic).
			Bool("homeassistant_autodiscovery_enabled", c.MQTT.HomeAssistantAutoDiscovery.Enabled).
			Msg("MQTT Configuration")
	}

	logger.Info().Msg("-----------------------------")
}
