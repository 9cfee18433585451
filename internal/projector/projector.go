// internal/projector/projector.go
package projector

import (
	"math"
	"sync"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/util"
	"github.com/arwaypoint/engine/pkg/core"
)

// degenerateDistanceM is the horizontal distance below which the bearing to
// the target is treated as undefined and the last valid one is kept.
const degenerateDistanceM = 0.01

// Config tunes one projector instance.
type Config struct {
	RenderRadius      float64 // placement sphere radius, a rendering scale
	MaxElevationRad   float64 // clamp magnitude for the vertical angle
	PositionSmoothing float64 // per-axis vector smoothing factor in (0,1]
	EarthRadiusM      float64 // spherical model radius
}

// Projector turns (observer, target, heading) into renderer-facing output.
// It keeps the last emitted vector for temporal smoothing and the last valid
// relative bearing for degenerate geometry. One projector serves one target.
type Projector struct {
	mu          sync.Mutex
	cfg         Config
	prev        core.DirectionVector
	hasPrev     bool
	lastBearing float64
	hasBearing  bool
}

// New creates a Projector. The zero EarthRadiusM falls back to the standard
// spherical radius.
func New(cfg Config) *Projector {
	if cfg.EarthRadiusM == 0 {
		cfg.EarthRadiusM = geo.EarthRadiusM
	}
	return &Projector{cfg: cfg}
}

// Project computes the placement of target as seen from observer at the
// given smoothed heading.
func (p *Projector) Project(observer, target core.GeoPoint, headingDeg float64) (core.BearingResult, core.DirectionVector) {
	p.mu.Lock()
	defer p.mu.Unlock()

	horizontal := geo.DistanceOnSphere(observer, target, p.cfg.EarthRadiusM)
	altDiff := target.Altitude - observer.Altitude

	computed := geo.Normalize180(geo.InitialBearing(observer, target) - headingDeg)
	relative := computed
	if horizontal < degenerateDistanceM {
		// standing on the target: direction is undefined, keep the last one
		if p.hasBearing {
			relative = p.lastBearing
		}
	} else {
		p.lastBearing = computed
		p.hasBearing = true
	}

	elevation := util.Clamp(
		math.Atan2(altDiff, horizontal),
		-p.cfg.MaxElevationRad,
		p.cfg.MaxElevationRad,
	)

	θ := geo.DegToRad(relative)
	raw := core.DirectionVector{
		X: p.cfg.RenderRadius * math.Sin(θ),
		Y: p.cfg.RenderRadius * math.Sin(elevation),
		Z: -p.cfg.RenderRadius * math.Cos(θ),
	}

	next := raw
	if p.hasPrev {
		s := p.cfg.PositionSmoothing
		next = core.DirectionVector{
			X: p.prev.X + (raw.X-p.prev.X)*s,
			Y: p.prev.Y + (raw.Y-p.prev.Y)*s,
			Z: p.prev.Z + (raw.Z-p.prev.Z)*s,
		}
	}
	p.prev = next
	p.hasPrev = true

	result := core.BearingResult{
		RelativeBearingDeg:  relative,
		ElevationRad:        elevation,
		HorizontalDistanceM: horizontal,
		TotalDistanceM:      geo.Distance3D(horizontal, altDiff),
	}
	return result, next
}

// Reset drops the smoothing history and the retained bearing.
func (p *Projector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prev = core.DirectionVector{}
	p.hasPrev = false
	p.lastBearing = 0
	p.hasBearing = false
}
