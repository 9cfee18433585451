package streaming

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arwaypoint/engine/pkg/core"
)

// Message type constants for the sensor gateway protocol. The same envelope
// format is spoken on both sides: browser to gateway, and gateway to a
// spectator relay hub.
const (
	// client -> server
	TypeSessionStart   = "session_start"
	TypeSessionEnd     = "session_end"
	TypePositionFix    = "position_fix"
	TypeOrientation    = "orientation_sample"
	TypeWaypointAdd    = "waypoint_add"
	TypeWaypointRemove = "waypoint_remove"

	// server -> client
	TypeProjection   = "projection"
	TypeSessionState = "session_state"
	TypeAck          = "ack"
	TypeError        = "error"

	// server -> relay hub only
	TypeTrackPoint = "track_point"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals a payload into an Envelope of the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// AckMessage is the receiving side's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// ErrorMessage reports a rejected message back to the sender.
type ErrorMessage struct {
	For    string `json:"for"`
	Reason string `json:"reason"`
}

// DevicePayload mirrors core.DeviceInfo on the wire.
type DevicePayload struct {
	UserAgent  string `json:"userAgent"`
	Platform   string `json:"platform"`
	AppVersion string `json:"appVersion"`
}

// SessionStartPayload opens a session.
type SessionStartPayload struct {
	Key       string        `json:"key,omitempty"`
	Label     string        `json:"label,omitempty"`
	Tag       string        `json:"tag,omitempty"`
	Device    DevicePayload `json:"device"`
	StartedAt time.Time     `json:"startedAt"`
}

// SessionStartFrom builds the payload for an established session.
func SessionStartFrom(s core.SessionInfo) SessionStartPayload {
	return SessionStartPayload{
		Key:   s.Key,
		Label: s.Label,
		Tag:   s.Tag,
		Device: DevicePayload{
			UserAgent:  s.Device.UserAgent,
			Platform:   s.Device.Platform,
			AppVersion: s.Device.AppVersion,
		},
		StartedAt: s.StartedAt,
	}
}

// WaypointPayload registers or describes a marker target.
type WaypointPayload struct {
	Key       string  `json:"key"`
	Label     string  `json:"label,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// WaypointFrom builds the payload for a registered waypoint.
func WaypointFrom(wp core.Waypoint) WaypointPayload {
	return WaypointPayload{
		Key:       wp.Key,
		Label:     wp.Label,
		Latitude:  wp.Point.Latitude,
		Longitude: wp.Point.Longitude,
		Altitude:  wp.Point.Altitude,
	}
}

// WaypointRemovePayload drops a registered waypoint.
type WaypointRemovePayload struct {
	Key string `json:"key"`
}

// TrackPointPayload is one recorded observer fix on the relay stream.
type TrackPointPayload struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	AccuracyM  float64   `json:"accuracyM,omitempty"`
	SpeedMPS   float64   `json:"speedMps,omitempty"`
	CourseDeg  float64   `json:"courseDeg,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

// TrackPointFrom builds the payload for a recorded fix.
func TrackPointFrom(tp core.TrackPoint) TrackPointPayload {
	return TrackPointPayload{
		Latitude:   tp.Point.Latitude,
		Longitude:  tp.Point.Longitude,
		Altitude:   tp.Point.Altitude,
		AccuracyM:  tp.AccuracyM,
		SpeedMPS:   tp.SpeedMPS,
		CourseDeg:  tp.CourseDeg,
		CapturedAt: tp.CapturedAt,
	}
}

// ProjectionEntry is one waypoint's placement in a projection batch.
type ProjectionEntry struct {
	Waypoint            string  `json:"waypoint"`
	RelativeBearingDeg  float64 `json:"relativeBearingDeg"`
	ElevationRad        float64 `json:"elevationRad"`
	HorizontalDistanceM float64 `json:"horizontalDistanceM"`
	TotalDistanceM      float64 `json:"totalDistanceM"`
	X                   float64 `json:"x"`
	Y                   float64 `json:"y"`
	Z                   float64 `json:"z"`
}

// ProjectionPayload carries the placements recomputed from one sensor event.
type ProjectionPayload struct {
	ComputedAt time.Time         `json:"computedAt"`
	HeadingDeg float64           `json:"headingDeg"`
	Markers    []ProjectionEntry `json:"markers"`
}

// ProjectionsFrom converts engine output into a payload.
func ProjectionsFrom(ps []core.Projection) ProjectionPayload {
	payload := ProjectionPayload{Markers: make([]ProjectionEntry, 0, len(ps))}
	for _, p := range ps {
		payload.ComputedAt = p.ComputedAt
		payload.HeadingDeg = p.HeadingDeg
		payload.Markers = append(payload.Markers, ProjectionEntry{
			Waypoint:            p.WaypointKey,
			RelativeBearingDeg:  p.Result.RelativeBearingDeg,
			ElevationRad:        p.Result.ElevationRad,
			HorizontalDistanceM: p.Result.HorizontalDistanceM,
			TotalDistanceM:      p.Result.TotalDistanceM,
			X:                   p.Vector.X,
			Y:                   p.Vector.Y,
			Z:                   p.Vector.Z,
		})
	}
	return payload
}

// SessionStatePayload tells the client where its session stands.
type SessionStatePayload struct {
	SessionKey string    `json:"sessionKey"`
	Active     bool      `json:"active"`
	Ready      bool      `json:"ready"` // engine has seen both sensor inputs
	Waypoints  int       `json:"waypoints"`
	StartedAt  time.Time `json:"startedAt"`
}
