// Package v1 contains the v1 archive format for recorded sessions.
// It is the file the memory backend writes at session end, the hub upload
// carries, and replay mode consumes.
package v1

// Export is the root JSON structure for the v1 format.
type Export struct {
	FormatVersion int         `json:"formatVersion"`
	Session       SessionMeta `json:"session"`
	Waypoints     []Waypoint  `json:"waypoints"`
	Track         [][]any     `json:"track"`
	Projections   [][]any     `json:"projections"`
}

// SessionMeta identifies the recorded session.
type SessionMeta struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Tag         string  `json:"tag"`
	AppVersion  string  `json:"appVersion,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	UserAgent   string  `json:"userAgent,omitempty"`
	StartedAt   string  `json:"startedAt"`         // RFC3339
	EndedAt     string  `json:"endedAt,omitempty"` // RFC3339, empty if the session never ended
	DurationSec float64 `json:"durationSec"`
}

// Waypoint is one registered target.
type Waypoint struct {
	ID        uint    `json:"id"`
	Key       string  `json:"key"`
	Label     string  `json:"label,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	AddedAt   int64   `json:"addedAt"`             // unix milliseconds
	RemovedAt int64   `json:"removedAt,omitempty"` // unix milliseconds, absent while active
}
