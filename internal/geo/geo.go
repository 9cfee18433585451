package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/arwaypoint/engine/pkg/core"
)

// EarthRadiusM is the mean Earth radius of the spherical model.
const EarthRadiusM = 6371000.0

// ErrCoordinateRange is returned when a coordinate lies outside the valid
// latitude/longitude ranges or is not a finite number.
var ErrCoordinateRange = errors.New("coordinate out of range")

// CheckPoint validates that p is a usable WGS84 coordinate.
func CheckPoint(p core.GeoPoint) error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsNaN(p.Altitude) || math.IsInf(p.Altitude, 0) {
		return ErrCoordinateRange
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return ErrCoordinateRange
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return ErrCoordinateRange
	}
	return nil
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDeg wraps an angle into [0,360).
func NormalizeDeg(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// Normalize180 wraps an angle into (-180,180].
func Normalize180(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m > 180 {
		m -= 360
	} else if m <= -180 {
		m += 360
	}
	return m
}

// SignedDeltaDeg returns the shortest signed angular difference from one
// heading to another, in [-180,180]. Both inputs are expected in [0,360).
func SignedDeltaDeg(from, to float64) float64 {
	diff := to - from
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	return diff
}

// Distance returns the haversine great-circle distance between a and b in
// meters. Altitude does not contribute.
func Distance(a, b core.GeoPoint) float64 {
	return DistanceOnSphere(a, b, EarthRadiusM)
}

// DistanceOnSphere is Distance on a sphere of the given radius in meters.
func DistanceOnSphere(a, b core.GeoPoint, radiusM float64) float64 {
	φa := DegToRad(a.Latitude)
	φb := DegToRad(b.Latitude)
	Δφ := DegToRad(b.Latitude - a.Latitude)
	Δλ := DegToRad(b.Longitude - a.Longitude)

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φa)*math.Cos(φb)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return 2 * radiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// InitialBearing returns the forward azimuth from a to b in degrees [0,360).
// The direction is undefined when a and b coincide; callers must treat zero
// distance as degenerate.
func InitialBearing(a, b core.GeoPoint) float64 {
	φa := DegToRad(a.Latitude)
	φb := DegToRad(b.Latitude)
	Δλ := DegToRad(b.Longitude - a.Longitude)

	y := math.Sin(Δλ) * math.Cos(φb)
	x := math.Cos(φa)*math.Sin(φb) - math.Sin(φa)*math.Cos(φb)*math.Cos(Δλ)
	return NormalizeDeg(RadToDeg(math.Atan2(y, x)))
}

// Distance3D combines a great-circle horizontal distance with an altitude
// difference as a straight-line approximation, valid for altitude deltas
// small relative to the Earth radius.
func Distance3D(horizontalM, altitudeDiffM float64) float64 {
	return math.Hypot(horizontalM, altitudeDiffM)
}

// GEOMETRY
// Recorded geometry is always stored as EPSG 3857 so web maps can draw it
// without reprojecting, and WKB round-trips through SQLite's plain blobs.

// Mercator projects a WGS84 point into EPSG 3857 meters.
func Mercator(p core.GeoPoint) (x, y float64, err error) {
	if err := CheckPoint(p); err != nil {
		return 0, 0, err
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(p.Longitude, p.Latitude, 0)
	return x, y, nil
}

// Point3857 builds an XYZ point in EPSG 3857 with the altitude as Z.
func Point3857(p core.GeoPoint) (geom.Point, error) {
	x, y, err := Mercator(p)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), err
	}
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    p.Altitude,
			Type: geom.DimXYZ,
		},
	), nil
}
