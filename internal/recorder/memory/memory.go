// internal/recorder/memory/memory.go
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/arwaypoint/engine/internal/config"
	v1 "github.com/arwaypoint/engine/internal/recorder/memory/export/v1"
	"github.com/arwaypoint/engine/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.SessionInfo
	endedAt time.Time

	waypoints map[string]*v1.WaypointRecord // keyed by waypoint key
	track     []core.TrackPoint

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		waypoints: make(map[string]*v1.WaypointRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(info *core.SessionInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = info
	b.endedAt = time.Time{}

	// Reset all collections
	b.waypoints = make(map[string]*v1.WaypointRecord)
	b.track = nil
	b.idCounter = 0
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session to end")
	}
	b.endedAt = time.Now()

	return b.exportJSON()
}

// AddWaypoint registers a new waypoint. Re-registering an existing key
// replaces the record.
func (b *Backend) AddWaypoint(wp *core.Waypoint) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	b.waypoints[wp.Key] = &v1.WaypointRecord{
		ID:          b.idCounter,
		Waypoint:    *wp,
		Projections: make([]core.Projection, 0),
	}
	return b.idCounter, nil
}

// RemoveWaypoint marks a waypoint as removed. The record stays in the
// export with its removal time.
func (b *Backend) RemoveWaypoint(key string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.waypoints[key]; ok {
		record.RemovedAt = at
	}
	return nil
}

// GetWaypoint looks up a waypoint by key
func (b *Backend) GetWaypoint(key string) (*core.Waypoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.waypoints[key]; ok {
		return &record.Waypoint, true
	}
	return nil, false
}

// RecordTrackPoint records an observer fix
func (b *Backend) RecordTrackPoint(tp *core.TrackPoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.track = append(b.track, *tp)
	return nil
}

// RecordProjection records a projection sample for its waypoint
func (b *Backend) RecordProjection(p *core.Projection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.waypoints[p.WaypointKey]; ok && record.RemovedAt.IsZero() {
		record.Projections = append(record.Projections, *p)
	}
	return nil // silently ignore if waypoint not found or removed
}
