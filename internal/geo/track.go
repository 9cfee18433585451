package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/arwaypoint/engine/pkg/core"
)

// TrackLine builds an EPSG 3857 XYM line from recorded track points, with M
// carrying the capture time as unix milliseconds.
func TrackLine(points []core.TrackPoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("track needs at least 2 points, got %d", len(points))
	}

	flat := make([]float64, 0, len(points)*3)
	for i, tp := range points {
		x, y, err := Mercator(tp.Point)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("track point %d: %w", i, err)
		}
		flat = append(flat, x, y, float64(tp.CapturedAt.UnixMilli()))
	}

	seq := geom.NewSequence(flat, geom.DimXYM)
	return geom.NewLineString(seq), nil
}
