// Package api serves the HTTP control surface: cached telemetry, action
// group commands, echo requests, a websocket telemetry stream and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"simpit/host/metrics"
	"simpit/host/simpit"
	"simpit/host/telemetry"
	"simpit/protocol"
)

// maxBodySize bounds command request bodies
const maxBodySize = 1024

// Controller is the part of the engine the API drives
type Controller interface {
	State() simpit.State
	Dispatching() bool

	SendEcho(message string) error

	ActivateStandardActionGroup(g protocol.ActionGroup) error
	DeactivateStandardActionGroup(g protocol.ActionGroup) error
	ToggleStandardActionGroup(g protocol.ActionGroup) error

	ActivateCustomActionGroup(index int) error
	DeactivateCustomActionGroup(index int) error
	ToggleCustomActionGroup(index int) error
}

// Server routes HTTP requests to the engine
type Server struct {
	ctrl     Controller
	cache    *telemetry.Cache
	metrics  *metrics.Engine
	log      zerolog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router. m may be nil.
func New(ctrl Controller, cache *telemetry.Cache, m *metrics.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		ctrl:    ctrl,
		cache:   cache,
		metrics: m,
		log:     logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log))
	r.Use(RequestMetrics(m))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/status/{channel}", s.handleChannel)
	r.Post("/echo", s.handleEcho)
	r.Route("/actiongroup", func(r chi.Router) {
		r.Post("/standard/{op}", s.handleStandard)
		r.Post("/custom/{op}", s.handleCustom)
	})
	r.Get("/stream", s.handleStream)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

type statusResponse struct {
	Handshake   string                     `json:"handshake"`
	Dispatching bool                       `json:"dispatching"`
	LastEcho    string                     `json:"last_echo,omitempty"`
	Telemetry   map[string]telemetry.Entry `json:"telemetry"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"handshake": s.ctrl.State().String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Handshake:   s.ctrl.State().String(),
		Dispatching: s.ctrl.Dispatching(),
		LastEcho:    s.cache.LastEcho(),
		Telemetry:   s.cache.Snapshot(),
	})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	d, ok := protocol.ParseDatagram(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown channel %q", name))
		return
	}
	u, ok := s.cache.Get(d)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no %s received yet", d))
		return
	}
	writeJSON(w, http.StatusOK, u.Entry())
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, s.ctrl.SendEcho(body))
}

func (s *Server) handleStandard(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, ok := protocol.ParseActionGroup(body)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action group %q", body))
		return
	}

	var send func(protocol.ActionGroup) error
	switch chi.URLParam(r, "op") {
	case "activate":
		send = s.ctrl.ActivateStandardActionGroup
	case "deactivate":
		send = s.ctrl.DeactivateStandardActionGroup
	case "toggle":
		send = s.ctrl.ToggleStandardActionGroup
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown operation %q", chi.URLParam(r, "op")))
		return
	}
	s.respond(w, send(g))
}

func (s *Server) handleCustom(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := strconv.Atoi(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid action group index %q", body))
		return
	}

	var send func(int) error
	switch chi.URLParam(r, "op") {
	case "activate":
		send = s.ctrl.ActivateCustomActionGroup
	case "deactivate":
		send = s.ctrl.DeactivateCustomActionGroup
	case "toggle":
		send = s.ctrl.ToggleCustomActionGroup
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown operation %q", chi.URLParam(r, "op")))
		return
	}
	s.respond(w, send(index))
}

// respond maps a send result to a status code
func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, simpit.ErrInvalidActionGroup), errors.Is(err, protocol.ErrPayloadTooLarge):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Warn().Err(err).Msg("Command failed")
		writeError(w, http.StatusBadGateway, err)
	}
}

func readBody(r *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return "", errors.New("empty request body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}
