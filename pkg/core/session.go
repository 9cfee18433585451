// pkg/core/session.go
package core

import "time"

// DeviceInfo describes the client device driving a session.
type DeviceInfo struct {
	UserAgent  string
	Platform   string
	AppVersion string
}

// SessionInfo represents one recording session.
type SessionInfo struct {
	Key    string // uuid, client-assigned or generated on start
	Label  string
	Device DeviceInfo
	// Tag groups sessions in the archive; defaults from gateway config
	// when the client sends none.
	Tag       string
	StartedAt time.Time
}

// Waypoint is a registered target. Point never changes after registration.
type Waypoint struct {
	Key     string
	Label   string
	Point   GeoPoint
	AddedAt time.Time
}

// TrackPoint is one recorded observer fix.
type TrackPoint struct {
	Point      GeoPoint
	AccuracyM  float64
	SpeedMPS   float64
	HasSpeed   bool
	CourseDeg  float64
	HasCourse  bool
	CapturedAt time.Time
}

// UploadMetadata describes a finished session export for the archive API.
type UploadMetadata struct {
	SessionKey string
	Label      string
	Duration   float64 // seconds
	Tag        string
}
