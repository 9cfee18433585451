// Package worker wires dispatched sensor commands to the engine and the
// recording backend, and emits the reply frames the client renders from.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arwaypoint/engine/internal/api"
	"github.com/arwaypoint/engine/internal/channel"
	"github.com/arwaypoint/engine/internal/engine"
	"github.com/arwaypoint/engine/internal/influx"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/parser"
	"github.com/arwaypoint/engine/internal/recorder"
	"github.com/arwaypoint/engine/internal/session"
	"github.com/arwaypoint/engine/pkg/core"
	"github.com/arwaypoint/engine/pkg/streaming"
)

const uploadTimeout = 2 * time.Minute

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager     *logging.SlogManager
	SessionContext *session.Context
	Parser         *parser.Parser
	Engine         *engine.Engine

	// Influx is nil when metrics export is disabled.
	Influx *influx.Manager
	// Archive is nil when session uploads are disabled.
	Archive *api.Client

	// DefaultTag is stamped on sessions whose client sends no tag.
	DefaultTag string
}

// Manager owns the sensor command handlers
type Manager struct {
	deps     Dependencies
	backend  recorder.Backend
	outbound channel.Sender[[]byte]
}

// NewManager creates a new worker manager. outbound carries the reply
// frames for the connected client; it may be nil in replay tooling.
func NewManager(deps Dependencies, backend recorder.Backend, outbound channel.Sender[[]byte]) *Manager {
	return &Manager{
		deps:     deps,
		backend:  backend,
		outbound: outbound,
	}
}

func (m *Manager) emitFrame(frame []byte) {
	if m.outbound == nil {
		return
	}
	if !m.outbound.TrySend(frame) {
		m.deps.LogManager.Logger().Debug("Outbound channel full, dropping frame")
	}
}

func (m *Manager) emitEnvelope(msgType string, payload any) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		m.deps.LogManager.Logger().Error("Failed to build envelope", "type", msgType, "error", err)
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		m.deps.LogManager.Logger().Error("Failed to marshal envelope", "type", msgType, "error", err)
		return
	}
	m.emitFrame(raw)
}

// emitAck confirms a control message. Acks are flat on the wire, not
// enveloped, so the client and the relay hub can route them uniformly.
func (m *Manager) emitAck(forType string) {
	raw, err := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: forType})
	if err != nil {
		m.deps.LogManager.Logger().Error("Failed to marshal ack", "for", forType, "error", err)
		return
	}
	m.emitFrame(raw)
}

func (m *Manager) emitSessionState() {
	state := streaming.SessionStatePayload{}
	if sess, active := m.deps.SessionContext.Current(); active {
		state.SessionKey = sess.SessionKey
		state.Active = true
		state.StartedAt = sess.StartTime
	}
	snap := m.deps.Engine.Snapshot()
	state.Ready = snap.Ready
	state.Waypoints = snap.Waypoints
	m.emitEnvelope(streaming.TypeSessionState, state)
}

func (m *Manager) emitProjections(ps []core.Projection) {
	if len(ps) == 0 {
		return
	}
	m.emitEnvelope(streaming.TypeProjection, streaming.ProjectionsFrom(ps))
}

func (m *Manager) recordProjections(ps []core.Projection) {
	for i := range ps {
		if err := m.backend.RecordProjection(&ps[i]); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record projection",
				"waypoint", ps[i].WaypointKey, "error", err)
		}
	}
}

// writeNavigationPoints mirrors one recompute to the metrics store. tp may
// be nil for orientation-driven recomputes.
func (m *Manager) writeNavigationPoints(tp *core.TrackPoint, ps []core.Projection) {
	if m.deps.Influx == nil {
		return
	}
	sess, active := m.deps.SessionContext.Current()
	if !active {
		return
	}
	for i := range ps {
		if err := m.deps.Influx.WriteNavigationPoint(context.Background(), sess.SessionKey, tp, &ps[i]); err != nil {
			m.deps.LogManager.Logger().Debug("Failed to write navigation point", "error", err)
		}
	}
}

func (m *Manager) writeSessionEvent(sessionKey, event string) {
	if m.deps.Influx == nil {
		return
	}
	if err := m.deps.Influx.WriteSessionEvent(context.Background(), sessionKey, event); err != nil {
		m.deps.LogManager.Logger().Debug("Failed to write session event", "event", event, "error", err)
	}
}

// uploadRecording pushes a finished export to the archive hub.
func (m *Manager) uploadRecording(rec recorder.Uploadable) {
	logger := m.deps.LogManager.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	if err := m.deps.Archive.UploadRecording(ctx, rec); err != nil {
		logger.Error("Failed to upload recording", "file", rec.GetExportedFilePath(), "error", err)
		return
	}
	logger.Info("Recording uploaded", "file", rec.GetExportedFilePath())
}
