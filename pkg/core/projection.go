// pkg/core/projection.go
package core

import "time"

// BearingResult is the numeric output of one projection pass.
type BearingResult struct {
	RelativeBearingDeg  float64 // (-180,180], 0 = directly ahead
	ElevationRad        float64 // clamped to the configured max magnitude
	HorizontalDistanceM float64
	TotalDistanceM      float64
}

// DirectionVector is a point on the fixed-radius render sphere around the
// observer's viewpoint. Negative Z is directly ahead; Y is up.
type DirectionVector struct {
	X float64
	Y float64
	Z float64
}

// Projection pairs the latest BearingResult and smoothed DirectionVector
// for one waypoint. HeadingDeg is the smoothed heading the result was
// computed against.
type Projection struct {
	WaypointKey string
	HeadingDeg  float64
	Result      BearingResult
	Vector      DirectionVector
	ComputedAt  time.Time
}
