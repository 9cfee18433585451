package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/pkg/core"
)

// deviceToJSON converts a core.DeviceInfo to datatypes.JSON for DB storage.
func deviceToJSON(d core.DeviceInfo) datatypes.JSON {
	data, err := json.Marshal(map[string]string{
		"userAgent":  d.UserAgent,
		"platform":   d.Platform,
		"appVersion": d.AppVersion,
	})
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.SessionInfo to a GORM Session.
// The ID is zero until the row is inserted or fetched.
func CoreToSession(s core.SessionInfo) model.Session {
	return model.Session{
		SessionKey: s.Key,
		Label:      s.Label,
		Tag:        s.Tag,
		Device:     deviceToJSON(s.Device),
		AppVersion: s.Device.AppVersion,
		StartTime:  s.StartedAt,
	}
}

// CoreToWaypoint converts a core.Waypoint to a GORM Waypoint.
// A coordinate that cannot be projected leaves Position empty; the raw
// WGS84 fields are stored either way.
func CoreToWaypoint(wp core.Waypoint, sessionID uint) model.Waypoint {
	pos, _ := geo.Point3857(wp.Point)
	return model.Waypoint{
		Time:        wp.AddedAt,
		SessionID:   sessionID,
		WaypointKey: wp.Key,
		Label:       wp.Label,
		Position:    pos,
		Latitude:    wp.Point.Latitude,
		Longitude:   wp.Point.Longitude,
		Altitude:    wp.Point.Altitude,
	}
}

// CoreToTrackPoint converts a core.TrackPoint to a GORM TrackPoint.
func CoreToTrackPoint(tp core.TrackPoint, sessionID uint) model.TrackPoint {
	pos, _ := geo.Point3857(tp.Point)
	return model.TrackPoint{
		Time:      tp.CapturedAt,
		SessionID: sessionID,
		Position:  pos,
		Latitude:  tp.Point.Latitude,
		Longitude: tp.Point.Longitude,
		Altitude:  tp.Point.Altitude,
		AccuracyM: tp.AccuracyM,
		SpeedMPS:  sql.NullFloat64{Float64: tp.SpeedMPS, Valid: tp.HasSpeed},
		CourseDeg: sql.NullFloat64{Float64: tp.CourseDeg, Valid: tp.HasCourse},
	}
}

// CoreToProjection converts a core.Projection to a GORM ProjectionSample.
func CoreToProjection(p core.Projection, sessionID uint, waypointID uint) model.ProjectionSample {
	return model.ProjectionSample{
		Time:                p.ComputedAt,
		SessionID:           sessionID,
		WaypointID:          waypointID,
		HeadingDeg:          p.HeadingDeg,
		RelativeBearingDeg:  p.Result.RelativeBearingDeg,
		ElevationRad:        p.Result.ElevationRad,
		HorizontalDistanceM: p.Result.HorizontalDistanceM,
		TotalDistanceM:      p.Result.TotalDistanceM,
		VectorX:             p.Vector.X,
		VectorY:             p.Vector.Y,
		VectorZ:             p.Vector.Z,
	}
}
