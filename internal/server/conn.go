package server

import (
	"encoding/json"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/pkg/streaming"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWS upgrades the sensor connection. Only one sensor client may
// stream at a time; a second connect is refused with an error envelope.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	logger := s.deps.LogManager.Logger()

	if s.deps.Secret != "" && r.URL.Query().Get("secret") != s.deps.Secret {
		logger.Warn("Rejected sensor client with bad secret", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if !s.attach(conn) {
		s.refuse(conn, r.RemoteAddr)
		return
	}

	logger.Info("Sensor client connected", "remote", r.RemoteAddr)
	s.readPump(conn)
}

// attach claims the single sensor slot. It fails when another client
// already holds it or the server is shutting down.
func (s *Server) attach(conn *ws.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != nil {
		return false
	}
	s.conn = conn
	if s.deps.Clients != nil {
		s.deps.Clients.Inc()
	}
	return true
}

// refuse tells a second sensor client why it is being dropped. The
// refused connection never becomes the managed one, so writing to it
// here does not violate the single-writer rule.
func (s *Server) refuse(conn *ws.Conn, remote string) {
	env, err := streaming.NewEnvelope(streaming.TypeError, streaming.ErrorMessage{
		For:    "connect",
		Reason: "another sensor client is already connected",
	})
	if err == nil {
		if data, err := json.Marshal(env); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(ws.TextMessage, data)
		}
	}
	_ = conn.Close()
	s.deps.LogManager.Logger().Warn("Refused second sensor client", "remote", remote)
}

// detach releases the sensor slot. A disconnect with a session still
// active ends it, so recordings never dangle.
func (s *Server) detach(conn *ws.Conn) {
	s.mu.Lock()
	held := s.conn == conn
	if held {
		s.conn = nil
	}
	s.mu.Unlock()
	if held && s.deps.Clients != nil {
		s.deps.Clients.Dec()
	}
	_ = conn.Close()

	select {
	case <-s.done:
		// Stop handles the session itself.
		return
	default:
	}
	s.endActiveSession()
}

// readPump owns all reads on the connection. It decodes sensor envelopes
// into the dispatcher and returns when the client goes away.
func (s *Server) readPump(conn *ws.Conn) {
	defer s.detach(conn)

	logger := s.deps.LogManager.Logger()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				logger.Warn("Sensor read error", "error", err)
			} else {
				logger.Info("Sensor client disconnected")
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Debug("Malformed frame from sensor client", "error", err)
			s.sendError("message", "malformed envelope: not valid JSON")
			continue
		}

		if _, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
			Type:       env.Type,
			Payload:    env.Payload,
			ReceivedAt: time.Now(),
		}); err != nil {
			s.sendError(env.Type, err.Error())
		}
	}
}

// sendError queues an error envelope for the write pump.
func (s *Server) sendError(forType, reason string) {
	env, err := streaming.NewEnvelope(streaming.TypeError, streaming.ErrorMessage{
		For:    forType,
		Reason: reason,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if !s.outbound.TrySend(data) {
		s.deps.LogManager.Logger().Warn("Outbound channel full, dropping error frame", "for", forType)
	}
}

// writePump owns every write on the sensor socket: reply frames from the
// outbound channel and keepalive pings. Frames produced while no client
// is connected are dropped rather than queued indefinitely.
func (s *Server) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data, ok := <-s.outbound.Receive():
			if !ok {
				return
			}
			conn := s.current()
			if conn == nil {
				continue
			}
			if err := s.write(conn, ws.TextMessage, data); err != nil {
				s.deps.LogManager.Logger().Warn("Sensor write error", "error", err)
				// The read pump notices the closed socket and detaches.
				_ = conn.Close()
			}
		case <-ticker.C:
			conn := s.current()
			if conn == nil {
				continue
			}
			if err := s.write(conn, ws.PingMessage, nil); err != nil {
				s.deps.LogManager.Logger().Warn("Sensor ping failed", "error", err)
				_ = conn.Close()
			}
		}
	}
}

func (s *Server) current() *ws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Server) write(conn *ws.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}
