// Package server exposes the gateway HTTP surface: healthcheck and
// status endpoints plus the /ws sensor socket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/arwaypoint/engine/internal/cache"
	"github.com/arwaypoint/engine/internal/channel"
	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/monitor"
	"github.com/arwaypoint/engine/internal/session"
	"github.com/arwaypoint/engine/pkg/streaming"
)

// Dependencies holds all dependencies for the gateway server
type Dependencies struct {
	LogManager     *logging.SlogManager
	SessionContext *session.Context
	Dispatcher     *dispatcher.Dispatcher
	Monitor        *monitor.Service

	// Clients tracks how many sensor clients hold the socket slot; the
	// monitor reports it on /status. May be nil.
	Clients *cache.SafeCounter

	// Version is reported on /healthcheck.
	Version string

	// Secret, when non-empty, must match the "secret" query parameter
	// on /ws or the upgrade is refused.
	Secret string
}

// Server serves the HTTP routes and manages the single sensor WebSocket.
type Server struct {
	deps     Dependencies
	outbound channel.Channel[[]byte]

	httpSrv *http.Server

	mu     sync.Mutex
	conn   *ws.Conn
	closed bool
	done   chan struct{}
}

// New creates a gateway server. outbound carries marshaled reply frames;
// the worker manager holds its send side.
func New(deps Dependencies, outbound channel.Channel[[]byte]) *Server {
	return &Server{
		deps:     deps,
		outbound: outbound,
		done:     make(chan struct{}),
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthcheck", s.handleHealthcheck)
	router.HandlerFunc(http.MethodGet, "/status", s.handleStatus)
	router.HandlerFunc(http.MethodGet, "/ws", s.handleWS)
	return router
}

// Start binds addr and serves until Stop. The write pump starts here so
// frames produced before any client connects are drained rather than
// piling up in the outbound buffer.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger := s.deps.LogManager.Logger()
	s.httpSrv = &http.Server{
		Handler:      s.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go s.writePump()

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Gateway server stopped", "error", err)
		}
	}()

	logger.Info("Gateway server listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the sensor socket, ends any session it left behind and
// shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if s.deps.Clients != nil {
			s.deps.Clients.Dec()
		}
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
	}

	s.endActiveSession()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.deps.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Monitor.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.LogManager.Logger().Error("Failed to encode response", "error", err)
	}
}

// endActiveSession dispatches a synthetic session_end so an interrupted
// session still flushes and uploads its recording.
func (s *Server) endActiveSession() {
	if _, active := s.deps.SessionContext.Current(); !active {
		return
	}

	s.deps.LogManager.Logger().Warn("Ending session left behind by sensor client")
	_, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Type:       streaming.TypeSessionEnd,
		Payload:    json.RawMessage(`{}`),
		ReceivedAt: time.Now(),
	})
	if err != nil {
		s.deps.LogManager.Logger().Error("Failed to end orphaned session", "error", err)
	}
}
