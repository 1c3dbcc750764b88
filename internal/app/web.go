// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/hmd_viewing/internal/config"
	"github.com/relabs-tech/hmd_viewing/internal/logging"
	"github.com/relabs-tech/hmd_viewing/internal/progress"
	"github.com/relabs-tech/hmd_viewing/internal/statistics"
)

const (
	wsWriteTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSResponse is one websocket message.
type WSResponse struct {
	Type     string             `json:"type"` // progress, complete, error
	Progress *progress.Snapshot `json:"progress,omitempty"`
	Message  string             `json:"message,omitempty"`
}

func wsResponse(s progress.Snapshot) WSResponse {
	resp := WSResponse{Type: "progress", Progress: &s}
	switch s.State {
	case progress.StateDone:
		resp.Type = "complete"
	case progress.StateFailed:
		resp.Type = "error"
		resp.Message = s.Message
	}
	return resp
}

// WebServer exposes the driver over HTTP: progress, run trigger, metrics and
// the exported statistics.
type WebServer struct {
	ctx       context.Context
	driver    *statistics.Driver
	tracker   *progress.Tracker
	staticDir string
	log       zerolog.Logger
}

// NewWebServer serves driver's progress from tracker. Runs triggered over
// HTTP live until ctx is done.
func NewWebServer(ctx context.Context, driver *statistics.Driver, tracker *progress.Tracker, staticDir string) *WebServer {
	return &WebServer{
		ctx:       ctx,
		driver:    driver,
		tracker:   tracker,
		staticDir: staticDir,
		log:       logging.WithComponent("web"),
	}
}

// Routes builds the router.
func (s *WebServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", s.handleProgress)
		r.Get("/report", s.handleReport)
		r.Post("/run", s.handleRun)
	})
	r.Get("/ws/progress", s.handleProgressWS)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/statistics/*", http.StripPrefix("/statistics/", http.FileServer(http.Dir(s.staticDir))))
	return r
}

func (s *WebServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("json encode error")
	}
}

func (s *WebServer) handleProgress(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.tracker.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *WebServer) handleReport(w http.ResponseWriter, _ *http.Request) {
	rep := s.driver.LastReport()
	if rep == nil {
		http.Error(w, "no run finished yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *WebServer) handleRun(w http.ResponseWriter, _ *http.Request) {
	done, err := s.driver.Start(s.ctx)
	if errors.Is(err, statistics.ErrAlreadyRunning) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	go func() {
		if err := <-done; err != nil {
			s.log.Error().Err(err).Msg("statistics run failed")
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": statistics.Running.String()})
}

// handleProgressWS streams every snapshot until the client goes away.
func (s *WebServer) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	snaps, cancel := s.tracker.Subscribe()
	defer cancel()

	// The reader only notices the client closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-s.ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			payload, err := json.Marshal(wsResponse(snap))
			if err != nil {
				s.log.Warn().Err(err).Msg("websocket marshal error")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		}
	}
}

// RunWeb serves the statistics web interface until SIGINT or SIGTERM. When
// an MQTT broker is configured, runs started by other processes show up in
// the progress endpoints too.
func RunWeb(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.LoggerConfig())
	log := logging.WithComponent("web")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := progress.NewTracker()
	if client := connectMQTT(cfg); client != nil {
		defer client.Disconnect(mqttDisconnectQuiesce)
		if err := progress.Subscribe(client, cfg.MQTT.Topic, tracker); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := statistics.New(statistics.ConfigFrom(cfg), store, progress.Multi(tracker, progress.NewLogReporter(log)))
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Web.Host, strconv.Itoa(cfg.Web.Port)),
		Handler:           NewWebServer(ctx, driver, tracker, cfg.StatisticsDir).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
