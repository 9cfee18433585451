// Package convert maps between the GORM models and the engine core types.
// The to-GORM direction projects geometry, the to-core direction reads the
// raw WGS84 columns back so exports never need the inverse transform.
package convert

import (
	"encoding/json"

	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/pkg/core"
)

// SessionToCore converts a GORM Session to a core.SessionInfo.
func SessionToCore(s model.Session) core.SessionInfo {
	var device struct {
		UserAgent  string `json:"userAgent"`
		Platform   string `json:"platform"`
		AppVersion string `json:"appVersion"`
	}
	if len(s.Device) > 0 {
		_ = json.Unmarshal(s.Device, &device)
	}

	return core.SessionInfo{
		Key:   s.SessionKey,
		Label: s.Label,
		Device: core.DeviceInfo{
			UserAgent:  device.UserAgent,
			Platform:   device.Platform,
			AppVersion: device.AppVersion,
		},
		Tag:       s.Tag,
		StartedAt: s.StartTime,
	}
}

// WaypointToCore converts a GORM Waypoint to a core.Waypoint.
func WaypointToCore(w model.Waypoint) core.Waypoint {
	return core.Waypoint{
		Key:   w.WaypointKey,
		Label: w.Label,
		Point: core.GeoPoint{
			Latitude:  w.Latitude,
			Longitude: w.Longitude,
			Altitude:  w.Altitude,
		},
		AddedAt: w.Time,
	}
}

// TrackPointToCore converts a GORM TrackPoint to a core.TrackPoint.
func TrackPointToCore(tp model.TrackPoint) core.TrackPoint {
	return core.TrackPoint{
		Point: core.GeoPoint{
			Latitude:  tp.Latitude,
			Longitude: tp.Longitude,
			Altitude:  tp.Altitude,
		},
		AccuracyM:  tp.AccuracyM,
		SpeedMPS:   tp.SpeedMPS.Float64,
		HasSpeed:   tp.SpeedMPS.Valid,
		CourseDeg:  tp.CourseDeg.Float64,
		HasCourse:  tp.CourseDeg.Valid,
		CapturedAt: tp.Time,
	}
}

// ProjectionToCore converts a GORM ProjectionSample to a core.Projection.
// The waypoint key is passed in because the sample row only carries the
// waypoint's database ID.
func ProjectionToCore(s model.ProjectionSample, waypointKey string) core.Projection {
	return core.Projection{
		WaypointKey: waypointKey,
		HeadingDeg:  s.HeadingDeg,
		Result: core.BearingResult{
			RelativeBearingDeg:  s.RelativeBearingDeg,
			ElevationRad:        s.ElevationRad,
			HorizontalDistanceM: s.HorizontalDistanceM,
			TotalDistanceM:      s.TotalDistanceM,
		},
		Vector: core.DirectionVector{
			X: s.VectorX,
			Y: s.VectorY,
			Z: s.VectorZ,
		},
		ComputedAt: s.Time,
	}
}
