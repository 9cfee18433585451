// internal/heading/filter.go
package heading

import (
	"errors"
	"math"
	"sync"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/pkg/core"
)

// ErrNoHeading is returned when a sample carries no usable heading angle.
var ErrNoHeading = errors.New("orientation sample carries no heading")

// Filter folds raw orientation samples into a stable compass heading.
// Smoothing is exponential and wrap-aware: the filter always moves the
// short way around the circle, so 359 followed by 2 converges through 0,
// never through 180. The first valid sample seeds the heading unsmoothed.
type Filter struct {
	mu      sync.Mutex
	factor  float64
	current float64
	seeded  bool
}

// NewFilter creates a Filter with the given smoothing factor in (0,1].
// A factor of 1 disables smoothing entirely.
func NewFilter(factor float64) *Filter {
	return &Filter{factor: factor}
}

// Ingest folds one sample into the heading and returns the new value.
// Samples with no usable angle return ErrNoHeading and leave state untouched.
func (f *Filter) Ingest(s core.OrientationSample) (float64, error) {
	cand, err := candidate(s)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.seeded {
		f.current = cand
		f.seeded = true
		return f.current, nil
	}

	diff := geo.SignedDeltaDeg(f.current, cand)
	f.current = geo.NormalizeDeg(f.current + diff*f.factor)
	return f.current, nil
}

// Current returns the smoothed heading and whether a sample has seeded it.
func (f *Filter) Current() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.seeded
}

// Reset clears the heading. Only an explicit reset discards the seed;
// rejected samples never do.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = 0
	f.seeded = false
}

// candidate picks the raw heading from a sample: the platform-native compass
// heading when it is present and non-zero (the platforms that supply it
// report exactly 0 until the compass is calibrated), otherwise the device
// yaw converted to a compass-style angle.
func candidate(s core.OrientationSample) (float64, error) {
	if s.HasCompassHeading && s.CompassHeading != 0 && !math.IsNaN(s.CompassHeading) {
		return geo.NormalizeDeg(s.CompassHeading), nil
	}
	if math.IsNaN(s.Yaw) {
		return 0, ErrNoHeading
	}
	return geo.NormalizeDeg(360 - s.Yaw), nil
}
