// internal/engine/engine.go
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/heading"
	"github.com/arwaypoint/engine/internal/projector"
	"github.com/arwaypoint/engine/pkg/core"
)

// PrimaryWaypointKey is the key SetTarget registers its destination under.
const PrimaryWaypointKey = "target"

var (
	// ErrTargetSet is returned when SetTarget is called while a primary
	// target is already registered.
	ErrTargetSet = errors.New("target already set")
	// ErrWaypointExists is returned when a waypoint key is reused.
	ErrWaypointExists = errors.New("waypoint already registered")
	// ErrWaypointUnknown is returned for operations on unregistered keys.
	ErrWaypointUnknown = errors.New("waypoint not registered")
	// ErrMissingKey is returned when a waypoint has an empty key.
	ErrMissingKey = errors.New("waypoint key is empty")
)

// Config holds the engine tuning constants.
type Config struct {
	HeadingSmoothing  float64 // heading filter factor in (0,1], 1 = pass-through
	PositionSmoothing float64 // direction vector smoothing factor in (0,1]
	MaxElevationRad   float64 // elevation clamp magnitude, at most pi/2
	RenderRadius      float64 // placement sphere radius
	EarthRadiusM      float64 // spherical model radius
}

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		HeadingSmoothing:  0.2,
		PositionSmoothing: 0.35,
		MaxElevationRad:   geo.DegToRad(45),
		RenderRadius:      10,
		EarthRadiusM:      geo.EarthRadiusM,
	}
}

// Validate checks the tuning ranges.
func (c Config) Validate() error {
	if c.HeadingSmoothing <= 0 || c.HeadingSmoothing > 1 {
		return fmt.Errorf("heading smoothing %f outside (0,1]", c.HeadingSmoothing)
	}
	if c.PositionSmoothing <= 0 || c.PositionSmoothing > 1 {
		return fmt.Errorf("position smoothing %f outside (0,1]", c.PositionSmoothing)
	}
	if c.MaxElevationRad <= 0 || c.MaxElevationRad > math.Pi/2 {
		return fmt.Errorf("max elevation %f outside (0,pi/2]", c.MaxElevationRad)
	}
	if c.RenderRadius <= 0 {
		return fmt.Errorf("render radius %f must be positive", c.RenderRadius)
	}
	if c.EarthRadiusM <= 0 {
		return fmt.Errorf("earth radius %f must be positive", c.EarthRadiusM)
	}
	return nil
}

type trackedWaypoint struct {
	wp   core.Waypoint
	proj *projector.Projector
}

// Engine fuses position fixes and orientation samples into marker
// projections for a set of fixed waypoints. All calls are synchronous and
// non-blocking; the engine performs no I/O and owns no goroutines. It never
// panics for well-typed input.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	filter    *heading.Filter
	observer  core.GeoPoint
	hasFix    bool
	waypoints map[string]*trackedWaypoint
	order     []string // registration order, for stable output
	latest    map[string]core.Projection

	fixes    uint64
	samples  uint64
	rejected uint64
}

// New creates an Engine with the given tuning.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		filter:    heading.NewFilter(cfg.HeadingSmoothing),
		waypoints: make(map[string]*trackedWaypoint),
		latest:    make(map[string]core.Projection),
	}, nil
}

// SetTarget registers the primary destination. It is intended to be called
// once at startup; a second call fails with ErrTargetSet while the primary
// is registered.
func (e *Engine) SetTarget(p core.GeoPoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.waypoints[PrimaryWaypointKey]; ok {
		return ErrTargetSet
	}
	return e.addLocked(core.Waypoint{Key: PrimaryWaypointKey, Point: p, AddedAt: time.Now()})
}

// AddWaypoint registers an additional marker target. The waypoint's point
// never changes after registration.
func (e *Engine) AddWaypoint(wp core.Waypoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(wp)
}

func (e *Engine) addLocked(wp core.Waypoint) error {
	if wp.Key == "" {
		return ErrMissingKey
	}
	if _, ok := e.waypoints[wp.Key]; ok {
		return fmt.Errorf("%q: %w", wp.Key, ErrWaypointExists)
	}
	if err := geo.CheckPoint(wp.Point); err != nil {
		return fmt.Errorf("waypoint %q: %w", wp.Key, err)
	}
	if wp.AddedAt.IsZero() {
		wp.AddedAt = time.Now()
	}
	e.waypoints[wp.Key] = &trackedWaypoint{
		wp: wp,
		proj: projector.New(projector.Config{
			RenderRadius:      e.cfg.RenderRadius,
			MaxElevationRad:   e.cfg.MaxElevationRad,
			PositionSmoothing: e.cfg.PositionSmoothing,
			EarthRadiusM:      e.cfg.EarthRadiusM,
		}),
	}
	e.order = append(e.order, wp.Key)
	return nil
}

// RemoveWaypoint drops a registered waypoint and its projection state.
func (e *Engine) RemoveWaypoint(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.waypoints[key]; !ok {
		return fmt.Errorf("%q: %w", key, ErrWaypointUnknown)
	}
	delete(e.waypoints, key)
	delete(e.latest, key)
	for i, k := range e.order {
		if k == key {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// OnPositionFix replaces the observer position and recomputes projections.
// An invalid point is rejected and the last known observer is retained.
func (e *Engine) OnPositionFix(p core.GeoPoint) ([]core.Projection, error) {
	if err := geo.CheckPoint(p); err != nil {
		e.mu.Lock()
		e.rejected++
		e.mu.Unlock()
		return nil, fmt.Errorf("position fix rejected: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = p
	e.hasFix = true
	e.fixes++
	return e.recomputeLocked(time.Now()), nil
}

// OnOrientationSample feeds the heading filter and recomputes projections.
// A sample with no usable angle is a no-op returning heading.ErrNoHeading.
func (e *Engine) OnOrientationSample(s core.OrientationSample) ([]core.Projection, error) {
	if _, err := e.filter.Ingest(s); err != nil {
		e.mu.Lock()
		e.rejected++
		e.mu.Unlock()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples++
	return e.recomputeLocked(time.Now()), nil
}

// recomputeLocked projects every waypoint from the latest observer and
// heading. Before both inputs exist it computes nothing, so no default
// placement can ever be mistaken for a real reading.
func (e *Engine) recomputeLocked(at time.Time) []core.Projection {
	hdg, seeded := e.filter.Current()
	if !e.hasFix || !seeded || len(e.order) == 0 {
		return nil
	}

	out := make([]core.Projection, 0, len(e.order))
	for _, key := range e.order {
		tw := e.waypoints[key]
		res, vec := tw.proj.Project(e.observer, tw.wp.Point, hdg)
		p := core.Projection{WaypointKey: key, HeadingDeg: hdg, Result: res, Vector: vec, ComputedAt: at}
		e.latest[key] = p
		out = append(out, p)
	}
	return out
}

// CurrentProjection returns the primary target's latest projection. The
// second return is false while no projection has been computed yet, which
// is the explicit "not yet available" state.
func (e *Engine) CurrentProjection() (core.Projection, bool) {
	return e.Projection(PrimaryWaypointKey)
}

// Projection returns the latest projection for one waypoint key.
func (e *Engine) Projection(key string) (core.Projection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.latest[key]
	return p, ok
}

// Projections returns the latest projection of every waypoint in
// registration order, skipping waypoints that have none yet.
func (e *Engine) Projections() []core.Projection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Projection, 0, len(e.order))
	for _, key := range e.order {
		if p, ok := e.latest[key]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Waypoints returns the registered waypoints in registration order.
func (e *Engine) Waypoints() []core.Waypoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Waypoint, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, e.waypoints[key].wp)
	}
	return out
}

// Target returns the primary destination if one is registered.
func (e *Engine) Target() (core.GeoPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tw, ok := e.waypoints[PrimaryWaypointKey]
	if !ok {
		return core.GeoPoint{}, false
	}
	return tw.wp.Point, true
}

// Observer returns the last known observer position.
func (e *Engine) Observer() (core.GeoPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observer, e.hasFix
}

// Heading returns the current smoothed heading.
func (e *Engine) Heading() (float64, bool) {
	return e.filter.Current()
}

// Status is a point-in-time snapshot of engine state for monitoring.
type Status struct {
	Fixes      uint64
	Samples    uint64
	Rejected   uint64
	Waypoints  int
	Ready      bool
	HeadingDeg float64
}

// Snapshot returns the engine counters and readiness.
func (e *Engine) Snapshot() Status {
	hdg, seeded := e.filter.Current()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Fixes:      e.fixes,
		Samples:    e.samples,
		Rejected:   e.rejected,
		Waypoints:  len(e.waypoints),
		Ready:      e.hasFix && seeded,
		HeadingDeg: hdg,
	}
}

// Reset clears all sensor-derived state: observer, heading seed, smoothing
// history and cached projections. Registered waypoints survive.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = core.GeoPoint{}
	e.hasFix = false
	e.filter.Reset()
	for _, tw := range e.waypoints {
		tw.proj.Reset()
	}
	e.latest = make(map[string]core.Projection)
}

// Clear resets sensor-derived state and drops every registered waypoint,
// returning the engine to its initial condition. Counters keep running.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = core.GeoPoint{}
	e.hasFix = false
	e.filter.Reset()
	e.waypoints = make(map[string]*trackedWaypoint)
	e.order = nil
	e.latest = make(map[string]core.Projection)
}
