package v1

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arwaypoint/engine/pkg/core"
)

// LoadFile reads an export from disk, transparently decompressing .gz files.
func LoadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Load(r)
}

// Load decodes an export and checks its format version.
func Load(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	if export.FormatVersion != 1 {
		return nil, fmt.Errorf("unsupported format version %d", export.FormatVersion)
	}
	return &export, nil
}

// TrackPoints rebuilds typed observer fixes from the compact track rows.
func (e *Export) TrackPoints() ([]core.TrackPoint, error) {
	points := make([]core.TrackPoint, 0, len(e.Track))
	for i, row := range e.Track {
		if len(row) < 7 {
			return nil, fmt.Errorf("track row %d has %d fields, want 7", i, len(row))
		}
		ms, ok := asFloat(row[0])
		if !ok {
			return nil, fmt.Errorf("track row %d has an invalid timestamp", i)
		}
		lat, latOK := asFloat(row[1])
		lon, lonOK := asFloat(row[2])
		alt, altOK := asFloat(row[3])
		acc, accOK := asFloat(row[4])
		if !latOK || !lonOK || !altOK || !accOK {
			return nil, fmt.Errorf("track row %d has invalid coordinates", i)
		}

		tp := core.TrackPoint{
			Point:      core.GeoPoint{Latitude: lat, Longitude: lon, Altitude: alt},
			AccuracyM:  acc,
			CapturedAt: time.UnixMilli(int64(ms)),
		}
		if speed, ok := asFloat(row[5]); ok {
			tp.SpeedMPS = speed
			tp.HasSpeed = true
		}
		if course, ok := asFloat(row[6]); ok {
			tp.CourseDeg = course
			tp.HasCourse = true
		}
		points = append(points, tp)
	}
	return points, nil
}

// asFloat unpacks a numeric row cell. Decoded JSON always gives float64;
// freshly built exports carry int64 timestamps.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
