// internal/recorder/recorder.go
package recorder

import (
	"time"

	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/pkg/core"
)

// Backend is the interface all recording implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(info *core.SessionInfo) error
	EndSession() error

	// Waypoint registration (returns the storage-assigned ID)
	AddWaypoint(wp *core.Waypoint) (uint, error)
	// RemoveWaypoint marks a target dropped; unknown keys are ignored
	RemoveWaypoint(key string, at time.Time) error

	// Stream recording
	RecordTrackPoint(tp *core.TrackPoint) error
	RecordProjection(p *core.Projection) error
}

// Uploadable is an optional interface for recording backends that produce
// files suitable for upload to the session archive frontend.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// PerformanceRecorder is an optional interface for backends that persist
// gateway performance snapshots alongside the session data.
type PerformanceRecorder interface {
	RecordPerformance(perf model.EnginePerformance) error
}

// QueueReporter is an optional interface for backends that buffer writes,
// exposing the buffering internals for the status monitor.
type QueueReporter interface {
	QueueLengths() model.WriteQueueLengths
	LastWriteDuration() time.Duration
}
