// Package api provides HTTP API functionality for the go-dess server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarmon/go-dess/internal/config"
	"github.com/solarmon/go-dess/internal/control"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/session"
)

// Server represents the HTTP API server that provides monitoring and control functionality.
type Server struct {
	config       *config.Config
	server       *http.Server
	router       *mux.Router
	registry     domain.Registry
	sessions     *session.Manager
	orchestrator *control.Orchestrator
	source       domain.SnapshotSource
	logger       zerolog.Logger
	startTime    time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, registry domain.Registry, sessions *session.Manager,
	orchestrator *control.Orchestrator, source domain.SnapshotSource) *Server {
	router := mux.NewRouter()

	// Create logger with API component context
	logger := log.With().Str("component", "api").Logger()

	// Create API server instance
	apiServer := &Server{
		config:       cfg,
		router:       router,
		registry:     registry,
		sessions:     sessions,
		orchestrator: orchestrator,
		source:       source,
		logger:       logger,
		startTime:    time.Now(),
	}

	// Set up API routes
	apiServer.setupRoutes()

	return apiServer
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes() {
	// API versioning
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Server status endpoint
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Device endpoints
	api.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	api.HandleFunc("/devices/{pn}", s.handleGetDevice).Methods("GET")
	api.HandleFunc("/devices/{pn}/readings", s.handleGetReadings).Methods("GET")

	// Control endpoints
	api.HandleFunc("/devices/{pn}/output-priority", s.handleGetOutputPriority).Methods("GET")
	api.HandleFunc("/devices/{pn}/output-priority", s.handlePutOutputPriority).Methods("PUT")
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	// Create HTTP server
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// Router exposes the request router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleStatus returns server status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":      "ok",
		"version":     "dev",
		"uptime":      time.Since(s.startTime).String(),
		"deviceCount": len(s.registry.GetAllDevices()),
	}

	s.writeJSON(w, status, http.StatusOK)
}

// handleListDevices returns a list of all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.GetAllDevices()

	result := make([]map[string]interface{}, 0, len(devices))
	for _, info := range devices {
		result = append(result, s.deviceSummary(info))
	}

	s.writeJSON(w, map[string]interface{}{
		"devices": result,
		"count":   len(result),
	}, http.StatusOK)
}

// handleGetDevice returns information about a specific device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pn := vars["pn"]

	info, found := s.registry.GetDevice(pn)
	if !found {
		s.writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, s.deviceSummary(info), http.StatusOK)
}

// handleGetReadings returns the latest canonical readings for a device.
func (s *Server) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pn := vars["pn"]

	info, found := s.registry.GetDevice(pn)
	if !found {
		s.writeError(w, "Device not found", http.StatusNotFound)
		return
	}
	if info.Readings == nil {
		s.writeError(w, "No readings available yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, info.Readings, http.StatusOK)
}

// handleGetOutputPriority reads the device's output priority over the
// control channel and returns the canonical label.
func (s *Server) handleGetOutputPriority(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pn := vars["pn"]

	info, found := s.registry.GetDevice(pn)
	if !found {
		s.writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	schema := s.ctrlSchema(r.Context(), info.Device)
	label, err := s.orchestrator.ReadOutputPriority(r.Context(), info.Device, schema)
	if err != nil {
		if errors.Is(err, control.ErrNotConfigured) {
			s.writeError(w, "Control channel not configured", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn().Err(err).Str("pn", pn).Msg("Output priority read failed")
		s.writeError(w, "Output priority read failed", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, map[string]string{
		"pn":              pn,
		"output_priority": label,
	}, http.StatusOK)
}

// handlePutOutputPriority writes a new output priority label to the device.
func (s *Server) handlePutOutputPriority(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pn := vars["pn"]

	info, found := s.registry.GetDevice(pn)
	if !found {
		s.writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Value) == "" {
		s.writeError(w, "Missing output priority value", http.StatusBadRequest)
		return
	}

	schema := s.ctrlSchema(r.Context(), info.Device)
	result, err := s.orchestrator.WriteOutputPriority(r.Context(), info.Device, body.Value, schema)
	if err != nil {
		if errors.Is(err, control.ErrNotConfigured) {
			s.writeError(w, "Control channel not configured", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn().Err(err).Str("pn", pn).Msg("Output priority write failed")
		s.writeError(w, "Output priority write failed", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"pn":       pn,
		"value":    body.Value,
		"param_id": result.ParamID,
		"encoded":  result.Value,
		"noop":     result.NoOp,
	}, http.StatusOK)
}

// ctrlSchema fetches the live control-field schema for a device. A fetch
// failure yields a null schema, which makes the orchestrator fall back to
// the per-model tables.
func (s *Server) ctrlSchema(ctx context.Context, dev domain.Device) jsontree.Value {
	if s.source == nil {
		return jsontree.Null()
	}
	schema, err := s.source.CtrlFields(ctx, dev)
	if err != nil {
		s.logger.Debug().Err(err).Str("pn", dev.PN).Msg("Ctrl schema fetch failed")
		return jsontree.Null()
	}
	return schema
}

// deviceSummary builds the wire representation of a registered device.
func (s *Server) deviceSummary(info *domain.DeviceInfo) map[string]interface{} {
	summary := map[string]interface{}{
		"pn":          info.Device.PN,
		"sn":          info.Device.SN,
		"devcode":     info.Device.Devcode,
		"devaddr":     info.Device.Devaddr,
		"alias":       info.Device.Alias,
		"lastContact": info.LastContact,
	}
	if sess, ok := s.sessions.Lookup(info.Device.PN); ok {
		summary["pollState"] = sess.State(s.sessions.OfflineTimeout()).String()
	}
	return summary
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
