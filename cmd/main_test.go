package main

import (
	"flag"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFlagParsing(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		name            string
		args            []string
		expectedVersion bool
		expectedConfig  string
	}{
		{
			name:            "version flag",
			args:            []string{"cmd", "-version"},
			expectedVersion: true,
			expectedConfig:  "config.yaml",
		},
		{
			name:            "no flags",
			args:            []string{"cmd"},
			expectedVersion: false,
			expectedConfig:  "config.yaml",
		},
		{
			name:            "custom config",
			args:            []string{"cmd", "-config", "custom.yaml"},
			expectedVersion: false,
			expectedConfig:  "custom.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
			os.Args = tt.args

			configFile := flag.String("config", "config.yaml", "Path to configuration file")
			showVersion := flag.Bool("version", false, "Show version information")

			err := flag.CommandLine.Parse(tt.args[1:])
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedVersion, *showVersion)
			assert.Equal(t, tt.expectedConfig, *configFile)
		})
	}
}

func TestVersionDefault(t *testing.T) {
	assert.Equal(t, "unknown", Version)
}

func TestInitLogger(t *testing.T) {
	initLogger("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	initLogger("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	// Unknown levels fall back to info.
	initLogger("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
