package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/api"
	"github.com/solarmon/go-dess/internal/config"
	"github.com/solarmon/go-dess/internal/control"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/resolve"
	"github.com/solarmon/go-dess/internal/session"
	"github.com/solarmon/go-dess/internal/validation"
)

// offlineAfterMissedPolls is how many poll intervals a device may miss
// before its session reports offline.
const offlineAfterMissedPolls = 5

// MonitorServer manages device polling, snapshot resolution and publishing.
type MonitorServer struct {
	config       *config.Config
	source       domain.SnapshotSource
	publisher    domain.MessagePublisher
	registry     domain.Registry
	sessions     *session.Manager
	validator    *validation.Validator
	orchestrator *control.Orchestrator
	apiServer    *api.Server
	done         chan struct{}
	wg           sync.WaitGroup
	logger       zerolog.Logger
	startTime    time.Time
}

// NewMonitorServer creates a new monitoring server instance. source supplies
// the telemetry documents; ctrl is the control collaborator used for the
// output-priority flows and the ctrl-value cache.
func NewMonitorServer(cfg *config.Config, source domain.SnapshotSource,
	ctrl domain.ControlClient, publisher domain.MessagePublisher) (*MonitorServer, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}

	// Create device registry.
	registry := domain.NewDeviceRegistry()

	// Create logger with component context.
	logger := log.With().Str("component", "server").Logger()

	// Session timeout scales with the poll interval.
	sessions := session.NewManager(offlineAfterMissedPolls * cfg.PollIntervalDuration())

	validationLevel := validation.ValidationLevelStandard
	switch cfg.LogLevel {
	case "debug", "trace":
		validationLevel = validation.ValidationLevelStrict
	case "warn", "error":
		validationLevel = validation.ValidationLevelBasic
	}
	validator := validation.NewValidator(validationLevel, logger)

	orchestrator := control.NewOrchestrator(ctrl, nil)

	server := &MonitorServer{
		config:       cfg,
		source:       source,
		publisher:    publisher,
		registry:     registry,
		sessions:     sessions,
		validator:    validator,
		orchestrator: orchestrator,
		done:         make(chan struct{}),
		logger:       logger,
	}

	// Initialize HTTP API server if enabled.
	if cfg.API.Enabled {
		server.apiServer = api.NewServer(cfg, registry, sessions, orchestrator, source)
	}

	return server, nil
}

// Orchestrator exposes the control orchestrator, mainly for tests.
func (s *MonitorServer) Orchestrator() *control.Orchestrator {
	return s.orchestrator
}

// Registry exposes the device registry.
func (s *MonitorServer) Registry() domain.Registry {
	return s.registry
}

// Start registers the configured devices and begins the poll loop.
func (s *MonitorServer) Start(ctx context.Context) error {
	s.startTime = time.Now()

	devices, err := s.loadDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device list: %w", err)
	}
	if len(devices) == 0 {
		s.logger.Warn().Msg("No devices configured or discovered")
	}
	for _, dev := range devices {
		if err := s.registry.RegisterDevice(dev); err != nil {
			return fmt.Errorf("failed to register device %s: %w", dev.PN, err)
		}
	}

	// Start HTTP API server if enabled.
	if s.apiServer != nil {
		if err := s.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	s.wg.Add(1)
	go s.pollLoop(ctx, devices)

	s.logger.Info().
		Int("devices", len(devices)).
		Dur("interval", s.config.PollIntervalDuration()).
		Msg("Monitor server started")

	return nil
}

// Stop gracefully shuts down all server components.
func (s *MonitorServer) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping server")

	close(s.done)
	s.wg.Wait()

	if s.apiServer != nil {
		if err := s.apiServer.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop API server")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close message publisher")
		}
	}

	return nil
}

// loadDevices returns the statically configured devices, falling back to
// account discovery when none are configured.
func (s *MonitorServer) loadDevices(ctx context.Context) ([]domain.Device, error) {
	if len(s.config.Devices) > 0 {
		devices := make([]domain.Device, 0, len(s.config.Devices))
		for _, dc := range s.config.Devices {
			devices = append(devices, domain.Device{
				PN:      dc.PN,
				SN:      dc.SN,
				Devcode: dc.Devcode,
				Devaddr: dc.Devaddr,
				Alias:   dc.Alias,
			})
		}
		return devices, nil
	}
	return s.source.Devices(ctx)
}

// pollLoop polls every device once immediately and then on each tick.
func (s *MonitorServer) pollLoop(ctx context.Context, devices []domain.Device) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollIntervalDuration())
	defer ticker.Stop()

	s.pollAll(ctx, devices)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAll(ctx, devices)
		}
	}
}

func (s *MonitorServer) pollAll(ctx context.Context, devices []domain.Device) {
	for _, dev := range devices {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		s.PollDevice(ctx, dev)
	}
}

// PollDevice fetches, validates and resolves one device snapshot, then
// publishes the canonical readings. Failures are recorded in the device's
// poll session and never abort the loop.
func (s *MonitorServer) PollDevice(ctx context.Context, dev domain.Device) {
	sess := s.sessions.Get(dev.PN)

	readings, err := s.collect(ctx, dev)
	if err != nil {
		sess.Fail(err)
		s.logger.Warn().Err(err).Str("pn", dev.PN).Msg("Device poll failed")
		return
	}

	if err := s.registry.UpdateReadings(dev.PN, readings); err != nil {
		s.logger.Error().Err(err).Str("pn", dev.PN).Msg("Failed to update registry")
	}
	sess.Touch()

	if s.publisher != nil {
		topic := s.config.MQTT.Topic + "/" + dev.PN
		if err := s.publisher.Publish(ctx, topic, readings); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to publish readings")
		}
	}
}

// collect assembles the snapshot for one device and resolves it.
func (s *MonitorServer) collect(ctx context.Context, dev domain.Device) (*domain.Readings, error) {
	lastData, err := s.source.LastData(ctx, dev)
	if err != nil {
		return nil, fmt.Errorf("last data fetch failed: %w", err)
	}

	result := s.validator.ValidateDocument(lastData)
	if !result.Valid {
		s.logger.Warn().
			Str("pn", dev.PN).
			Str("summary", result.Summary()).
			Msg("Telemetry document failed validation")
	}

	energyFlow, err := s.source.EnergyFlow(ctx, dev)
	if err != nil {
		// The energy-flow document is an enrichment; telemetry alone is
		// still resolvable.
		s.logger.Debug().Err(err).Str("pn", dev.PN).Msg("Energy flow fetch failed")
		energyFlow = jsontree.Null()
	}

	outputPriority, _ := ExtractOutputPriority(lastData)
	ctrlValues := s.refreshCtrlValues(ctx, dev)

	snapshot := BuildSnapshot(lastData, energyFlow, outputPriority, ctrlValues)
	return resolve.Readings(snapshot), nil
}

// refreshCtrlValues reads the configured control-value aliases into the
// snapshot cache. Individual read failures leave the alias out of the
// cache; the resolver treats that as absence.
func (s *MonitorServer) refreshCtrlValues(ctx context.Context, dev domain.Device) map[string]string {
	aliases := s.config.Cloud.CtrlCacheAliases
	if len(aliases) == 0 {
		return nil
	}
	ctrl, ok := s.source.(domain.ControlClient)
	if !ok {
		return nil
	}

	values := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		cv, err := ctrl.ReadParam(ctx, dev, alias)
		if err != nil {
			s.logger.Debug().Err(err).
				Str("pn", dev.PN).
				Str("alias", alias).
				Msg("Ctrl value refresh failed")
			continue
		}
		if !cv.Val.IsNull() {
			values[alias] = cv.Val.Text()
		}
	}
	return values
}
