package worker

import (
	"fmt"
	"time"

	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/internal/model/convert"
	"github.com/arwaypoint/engine/internal/recorder"
	"github.com/arwaypoint/engine/pkg/streaming"
)

// RegisterHandlers registers all sensor command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session and waypoint control - sync (must land before samples reference them)
	d.Register(streaming.TypeSessionStart, m.handleSessionStart, dispatcher.Logged())
	d.Register(streaming.TypeSessionEnd, m.handleSessionEnd, dispatcher.Logged())
	d.Register(streaming.TypeWaypointAdd, m.handleWaypointAdd, dispatcher.Logged())
	d.Register(streaming.TypeWaypointRemove, m.handleWaypointRemove, dispatcher.Logged())

	// High-volume sensor streams - buffered
	d.Register(streaming.TypePositionFix, m.handlePositionFix, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(streaming.TypeOrientation, m.handleOrientation, dispatcher.Buffered(10000), dispatcher.Logged())
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	if _, active := m.deps.SessionContext.Current(); active {
		return nil, fmt.Errorf("a session is already active")
	}

	info, err := m.deps.Parser.ParseSessionStart(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if info.Tag == "" {
		info.Tag = m.deps.DefaultTag
	}

	// Waypoints from an unended previous session must not bleed in.
	m.deps.Engine.Clear()

	if err := m.backend.StartSession(&info); err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	// SQL backends install the session row themselves; cover the rest.
	if _, active := m.deps.SessionContext.Current(); !active {
		gormSession := convert.CoreToSession(info)
		m.deps.SessionContext.Begin(&gormSession)
	}

	m.writeSessionEvent(info.Key, "started")

	m.deps.LogManager.Logger().Info("Session started", "key", info.Key, "label", info.Label, "tag", info.Tag)

	m.emitAck(streaming.TypeSessionStart)
	m.emitSessionState()
	return nil, nil
}

func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	sess, active := m.deps.SessionContext.Current()
	if !active {
		return nil, fmt.Errorf("no active session")
	}
	sessionKey := sess.SessionKey

	if err := m.backend.EndSession(); err != nil {
		m.deps.LogManager.Logger().Error("Failed to end recording", "error", err)
	}
	m.deps.SessionContext.End()
	m.deps.Engine.Clear()

	m.writeSessionEvent(sessionKey, "ended")

	if rec, ok := m.backend.(recorder.Uploadable); ok && m.deps.Archive != nil {
		go m.uploadRecording(rec)
	}

	m.deps.LogManager.Logger().Info("Session ended", "key", sessionKey)

	m.emitAck(streaming.TypeSessionEnd)
	m.emitSessionState()
	return nil, nil
}

func (m *Manager) handleWaypointAdd(e dispatcher.Event) (any, error) {
	wp, err := m.deps.Parser.ParseWaypoint(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to add waypoint: %w", err)
	}

	if err := m.deps.Engine.AddWaypoint(wp); err != nil {
		return nil, fmt.Errorf("failed to add waypoint: %w", err)
	}

	// A storage failure must not undo a registration the client already
	// navigates by.
	if _, err := m.backend.AddWaypoint(&wp); err != nil {
		m.deps.LogManager.Logger().Error("Failed to record waypoint", "key", wp.Key, "error", err)
	}

	if sess, active := m.deps.SessionContext.Current(); active {
		m.writeSessionEvent(sess.SessionKey, "waypoint_added")
	}

	m.emitAck(streaming.TypeWaypointAdd)
	m.emitSessionState()
	return nil, nil
}

func (m *Manager) handleWaypointRemove(e dispatcher.Event) (any, error) {
	key, err := m.deps.Parser.ParseWaypointRemove(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to remove waypoint: %w", err)
	}

	if err := m.deps.Engine.RemoveWaypoint(key); err != nil {
		return nil, fmt.Errorf("failed to remove waypoint: %w", err)
	}

	if err := m.backend.RemoveWaypoint(key, time.Now()); err != nil {
		m.deps.LogManager.Logger().Error("Failed to record waypoint removal", "key", key, "error", err)
	}

	if sess, active := m.deps.SessionContext.Current(); active {
		m.writeSessionEvent(sess.SessionKey, "waypoint_removed")
	}

	m.emitAck(streaming.TypeWaypointRemove)
	m.emitSessionState()
	return nil, nil
}

func (m *Manager) handlePositionFix(e dispatcher.Event) (any, error) {
	tp, err := m.deps.Parser.ParsePositionFix(e.Payload)
	if err != nil {
		m.deps.LogManager.Logger().Debug("Dropping position fix", "error", err)
		return nil, nil
	}

	projections, err := m.deps.Engine.OnPositionFix(tp.Point)
	if err != nil {
		m.deps.LogManager.Logger().Debug("Position fix rejected", "error", err)
		return nil, nil
	}

	if err := m.backend.RecordTrackPoint(&tp); err != nil {
		m.deps.LogManager.Logger().Error("Failed to record track point", "error", err)
	}
	m.recordProjections(projections)
	m.writeNavigationPoints(&tp, projections)
	m.emitProjections(projections)
	return nil, nil
}

func (m *Manager) handleOrientation(e dispatcher.Event) (any, error) {
	sample, err := m.deps.Parser.ParseOrientation(e.Payload)
	if err != nil {
		m.deps.LogManager.Logger().Debug("Dropping orientation sample", "error", err)
		return nil, nil
	}

	projections, err := m.deps.Engine.OnOrientationSample(sample)
	if err != nil {
		m.deps.LogManager.Logger().Debug("Orientation sample rejected", "error", err)
		return nil, nil
	}

	m.recordProjections(projections)
	m.emitProjections(projections)
	return nil, nil
}
