package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/pkg/core"
)

func testSession() core.SessionInfo {
	return core.SessionInfo{
		Key:   "3f2a77b0-52d1-4be0-9c60-1f6f0f1a9d42",
		Label: "evening walk",
		Device: core.DeviceInfo{
			UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5)",
			Platform:   "iPhone",
			AppVersion: "1.4.2",
		},
		StartedAt: time.Date(2024, 7, 26, 18, 30, 0, 0, time.UTC),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	in := testSession()

	row := CoreToSession(in)
	assert.Equal(t, in.Key, row.SessionKey)
	assert.Equal(t, in.Label, row.Label)
	assert.Equal(t, in.Device.AppVersion, row.AppVersion)
	assert.Equal(t, in.StartedAt, row.StartTime)
	assert.JSONEq(t,
		`{"userAgent":"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5)","platform":"iPhone","appVersion":"1.4.2"}`,
		string(row.Device))

	out := SessionToCore(row)
	assert.Equal(t, in, out)
}

func TestSessionToCore_EmptyDevice(t *testing.T) {
	out := SessionToCore(CoreToSession(core.SessionInfo{Key: "bare"}))
	assert.Equal(t, "bare", out.Key)
	assert.Equal(t, core.DeviceInfo{}, out.Device)
}

func TestWaypointRoundTrip(t *testing.T) {
	in := core.Waypoint{
		Key:   "cafe",
		Label: "Café Luitpold",
		Point: core.GeoPoint{
			Latitude:  48.1415,
			Longitude: 11.5757,
			Altitude:  520,
		},
		AddedAt: time.Date(2024, 7, 26, 18, 31, 12, 0, time.UTC),
	}

	row := CoreToWaypoint(in, 7)
	assert.Equal(t, uint(7), row.SessionID)
	assert.Equal(t, in.Key, row.WaypointKey)
	assert.Equal(t, in.Label, row.Label)
	assert.Equal(t, in.Point.Latitude, row.Latitude)
	assert.Equal(t, in.Point.Longitude, row.Longitude)
	assert.Equal(t, in.Point.Altitude, row.Altitude)

	want, err := geo.Point3857(in.Point)
	require.NoError(t, err)
	assert.Equal(t, want, row.Position)

	assert.Equal(t, in, WaypointToCore(row))
}

func TestCoreToWaypoint_BadCoordinate(t *testing.T) {
	row := CoreToWaypoint(core.Waypoint{
		Key:   "bad",
		Point: core.GeoPoint{Latitude: 95, Longitude: 0},
	}, 1)
	// raw columns keep the rejected value, geometry stays empty
	assert.Equal(t, 95.0, row.Latitude)
	assert.True(t, row.Position.IsEmpty())
}

func TestTrackPointRoundTrip(t *testing.T) {
	in := core.TrackPoint{
		Point:      core.GeoPoint{Latitude: 48.1374, Longitude: 11.5755, Altitude: 519},
		AccuracyM:  8.5,
		SpeedMPS:   1.4,
		HasSpeed:   true,
		CourseDeg:  271.0,
		HasCourse:  true,
		CapturedAt: time.Date(2024, 7, 26, 18, 32, 4, 0, time.UTC),
	}

	row := CoreToTrackPoint(in, 7)
	assert.Equal(t, uint(7), row.SessionID)
	assert.True(t, row.SpeedMPS.Valid)
	assert.Equal(t, 1.4, row.SpeedMPS.Float64)
	assert.True(t, row.CourseDeg.Valid)
	assert.Equal(t, 271.0, row.CourseDeg.Float64)

	assert.Equal(t, in, TrackPointToCore(row))
}

func TestCoreToTrackPoint_NullColumns(t *testing.T) {
	row := CoreToTrackPoint(core.TrackPoint{
		Point:      core.GeoPoint{Latitude: 48.1374, Longitude: 11.5755},
		CapturedAt: time.Now(),
	}, 7)
	assert.False(t, row.SpeedMPS.Valid)
	assert.False(t, row.CourseDeg.Valid)
}

func TestProjectionRoundTrip(t *testing.T) {
	in := core.Projection{
		WaypointKey: "cafe",
		HeadingDeg:  42.5,
		Result: core.BearingResult{
			RelativeBearingDeg:  -12.25,
			ElevationRad:        0.031,
			HorizontalDistanceM: 455.2,
			TotalDistanceM:      455.21,
		},
		Vector:     core.DirectionVector{X: -2.12, Y: 0.31, Z: -9.77},
		ComputedAt: time.Date(2024, 7, 26, 18, 32, 5, 0, time.UTC),
	}

	row := CoreToProjection(in, 7, 3)
	assert.Equal(t, uint(7), row.SessionID)
	assert.Equal(t, uint(3), row.WaypointID)
	assert.Equal(t, 42.5, row.HeadingDeg)
	assert.Equal(t, -12.25, row.RelativeBearingDeg)

	assert.Equal(t, in, ProjectionToCore(row, "cafe"))
}
