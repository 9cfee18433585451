package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/arwaypoint/engine/pkg/core"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDistance_Identity(t *testing.T) {
	p := core.GeoPoint{Latitude: 48.8584, Longitude: 2.2945, Altitude: 35}

	if d := Distance(p, p); d != 0 {
		t.Errorf("expected distance 0 for identical points, got %f", d)
	}
}

func TestDistance_Symmetry(t *testing.T) {
	a := core.GeoPoint{Latitude: 40.6892, Longitude: -74.0445}
	b := core.GeoPoint{Latitude: 51.5007, Longitude: -0.1246}

	ab := Distance(a, b)
	ba := Distance(b, a)
	if !almostEqual(ab, ba, 1e-6) {
		t.Errorf("expected symmetric distance, got %f and %f", ab, ba)
	}
}

func TestDistance_OneDegreeLatitude(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 0}
	b := core.GeoPoint{Latitude: 1, Longitude: 0}

	d := Distance(a, b)
	// one degree of latitude on the sphere, within 1%
	if !almostEqual(d, 111195, 1112) {
		t.Errorf("expected ~111195m, got %f", d)
	}
}

func TestDistance_AntimeridianShortPath(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 179.5}
	b := core.GeoPoint{Latitude: 0, Longitude: -179.5}

	d := Distance(a, b)
	// one degree of longitude across the antimeridian, not the long way round
	if !almostEqual(d, 111195, 1112) {
		t.Errorf("expected ~111195m across the antimeridian, got %f", d)
	}
}

func TestDistance_IgnoresAltitude(t *testing.T) {
	a := core.GeoPoint{Latitude: 10, Longitude: 10, Altitude: 0}
	b := core.GeoPoint{Latitude: 10, Longitude: 10, Altitude: 8848}

	if d := Distance(a, b); d != 0 {
		t.Errorf("expected altitude to be ignored, got %f", d)
	}
}

func TestDistanceOnSphere_ScalesWithRadius(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 0}
	b := core.GeoPoint{Latitude: 0, Longitude: 90}

	d := DistanceOnSphere(a, b, 1)
	if !almostEqual(d, math.Pi/2, 1e-9) {
		t.Errorf("expected quarter circumference on unit sphere, got %f", d)
	}
}

func TestInitialBearing_DueNorth(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 0}
	b := core.GeoPoint{Latitude: 1, Longitude: 0}

	if br := InitialBearing(a, b); !almostEqual(br, 0, 1e-9) {
		t.Errorf("expected bearing 0, got %f", br)
	}
}

func TestInitialBearing_DueEast(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 0}
	b := core.GeoPoint{Latitude: 0, Longitude: 1}

	if br := InitialBearing(a, b); !almostEqual(br, 90, 1e-9) {
		t.Errorf("expected bearing 90, got %f", br)
	}
}

func TestInitialBearing_SouthWestQuadrant(t *testing.T) {
	a := core.GeoPoint{Latitude: 0, Longitude: 0}
	b := core.GeoPoint{Latitude: -1, Longitude: -1}

	br := InitialBearing(a, b)
	if br <= 180 || br >= 270 {
		t.Errorf("expected bearing in (180,270), got %f", br)
	}
}

func TestInitialBearing_OrderSensitive(t *testing.T) {
	a := core.GeoPoint{Latitude: 35, Longitude: 45}
	b := core.GeoPoint{Latitude: 35.5, Longitude: 45.5}

	ab := InitialBearing(a, b)
	ba := InitialBearing(b, a)
	if almostEqual(ab, ba, 1e-6) {
		t.Errorf("expected direction to depend on order, got %f both ways", ab)
	}
}

func TestInitialBearing_AlwaysInRange(t *testing.T) {
	points := []core.GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 89.9, Longitude: 12},
		{Latitude: -89.9, Longitude: -170},
		{Latitude: 45, Longitude: 179.9},
		{Latitude: -45, Longitude: -179.9},
	}

	for i, a := range points {
		for j, b := range points {
			if i == j {
				continue
			}
			br := InitialBearing(a, b)
			if br < 0 || br >= 360 {
				t.Errorf("bearing %d->%d out of range: %f", i, j, br)
			}
		}
	}
}

func TestDistance3D(t *testing.T) {
	if d := Distance3D(3, 4); !almostEqual(d, 5, 1e-12) {
		t.Errorf("expected 5, got %f", d)
	}
	if d := Distance3D(100, 0); d != 100 {
		t.Errorf("expected 100, got %f", d)
	}
	if d := Distance3D(0, -50); d != 50 {
		t.Errorf("expected 50, got %f", d)
	}
}

func TestNormalizeDeg(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{360, 0},
		{361, 1},
		{-1, 359},
		{720.5, 0.5},
		{-540, 180},
	}
	for _, c := range cases {
		if got := NormalizeDeg(c.in); !almostEqual(got, c.want, 1e-9) {
			t.Errorf("NormalizeDeg(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

func TestNormalize180(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{360, 0},
		{540, 180},
		{-359, 1},
	}
	for _, c := range cases {
		if got := Normalize180(c.in); !almostEqual(got, c.want, 1e-9) {
			t.Errorf("Normalize180(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

func TestSignedDeltaDeg_ShortWayAcrossWrap(t *testing.T) {
	if got := SignedDeltaDeg(359, 2); !almostEqual(got, 3, 1e-9) {
		t.Errorf("expected +3 across the wrap, got %f", got)
	}
	if got := SignedDeltaDeg(2, 359); !almostEqual(got, -3, 1e-9) {
		t.Errorf("expected -3 across the wrap, got %f", got)
	}
}

func TestSignedDeltaDeg_PlainDifference(t *testing.T) {
	if got := SignedDeltaDeg(90, 120); !almostEqual(got, 30, 1e-9) {
		t.Errorf("expected 30, got %f", got)
	}
	if got := SignedDeltaDeg(120, 90); !almostEqual(got, -30, 1e-9) {
		t.Errorf("expected -30, got %f", got)
	}
}

func TestCheckPoint_Valid(t *testing.T) {
	if err := CheckPoint(core.GeoPoint{Latitude: -90, Longitude: 180, Altitude: -430}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckPoint_LatitudeOutOfRange(t *testing.T) {
	err := CheckPoint(core.GeoPoint{Latitude: 90.01, Longitude: 0})
	if !errors.Is(err, ErrCoordinateRange) {
		t.Errorf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestCheckPoint_LongitudeOutOfRange(t *testing.T) {
	err := CheckPoint(core.GeoPoint{Latitude: 0, Longitude: -180.5})
	if !errors.Is(err, ErrCoordinateRange) {
		t.Errorf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestCheckPoint_NaN(t *testing.T) {
	err := CheckPoint(core.GeoPoint{Latitude: math.NaN(), Longitude: 0})
	if !errors.Is(err, ErrCoordinateRange) {
		t.Errorf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestMercator_Origin(t *testing.T) {
	x, y, err := Mercator(core.GeoPoint{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(x, 0, 1e-6) || !almostEqual(y, 0, 1e-6) {
		t.Errorf("expected origin, got (%f, %f)", x, y)
	}
}

func TestMercator_OneDegreeLongitude(t *testing.T) {
	x, _, err := Mercator(core.GeoPoint{Latitude: 0, Longitude: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(x, 111319.4908, 0.5) {
		t.Errorf("expected ~111319.49, got %f", x)
	}
}

func TestMercator_RejectsInvalid(t *testing.T) {
	_, _, err := Mercator(core.GeoPoint{Latitude: 91, Longitude: 0})
	if !errors.Is(err, ErrCoordinateRange) {
		t.Errorf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestPoint3857_CarriesAltitude(t *testing.T) {
	p, err := Point3857(core.GeoPoint{Latitude: 0, Longitude: 0, Altitude: 120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coords, ok := p.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.Z != 120 {
		t.Errorf("expected Z=120, got %f", coords.Z)
	}
}
