// Package relay streams the recorded session over WebSocket to a spectator
// hub instead of persisting it locally. It speaks the same envelope protocol
// the browser client uses, so a hub can treat relayed gateways and direct
// clients alike.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arwaypoint/engine/pkg/core"
	"github.com/arwaypoint/engine/pkg/streaming"
)

// Config holds relay backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket to a relay hub.
type Backend struct {
	conn           *connection
	cfg            Config
	nextWaypointID atomic.Uint64
}

// New creates a relay recording backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the relay hub.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the relay hub.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a hub ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartSession sends the session metadata and waits for the hub ack.
func (b *Backend) StartSession(s *core.SessionInfo) error {
	data, err := marshalEnvelope(streaming.TypeSessionStart, streaming.SessionStartFrom(*s))
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedSessionMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// EndSession sends session_end and waits for the hub ack.
func (b *Backend) EndSession() error {
	err := b.sendEnvelopeAndWait(streaming.TypeSessionEnd, nil)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedSessionMsg = nil
	b.conn.mu.Unlock()
	b.nextWaypointID.Store(0)

	return err
}

// AddWaypoint sends the waypoint to the hub. The hub keys waypoints by
// their client key; the returned ID only satisfies local callers.
func (b *Backend) AddWaypoint(wp *core.Waypoint) (uint, error) {
	id := uint(b.nextWaypointID.Add(1))
	return id, b.sendEnvelope(streaming.TypeWaypointAdd, streaming.WaypointFrom(*wp))
}

// RemoveWaypoint tells the hub to drop the waypoint. The hub stamps its
// own removal time on receipt.
func (b *Backend) RemoveWaypoint(key string, _ time.Time) error {
	return b.sendEnvelope(streaming.TypeWaypointRemove, streaming.WaypointRemovePayload{Key: key})
}

// RecordTrackPoint streams one observer fix.
func (b *Backend) RecordTrackPoint(tp *core.TrackPoint) error {
	return b.sendEnvelope(streaming.TypeTrackPoint, streaming.TrackPointFrom(*tp))
}

// RecordProjection streams one computed placement.
func (b *Backend) RecordProjection(p *core.Projection) error {
	return b.sendEnvelope(streaming.TypeProjection, streaming.ProjectionsFrom([]core.Projection{*p}))
}
