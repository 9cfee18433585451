package v1

import (
	"sort"
	"time"

	"github.com/arwaypoint/engine/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session   core.SessionInfo
	EndedAt   time.Time
	Waypoints map[string]*WaypointRecord
	Track     []core.TrackPoint
}

// WaypointRecord groups a waypoint with its projection history
type WaypointRecord struct {
	ID          uint
	Waypoint    core.Waypoint
	RemovedAt   time.Time // zero while the waypoint is active
	Projections []core.Projection
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	export := Export{
		FormatVersion: 1,
		Session: SessionMeta{
			Key:        data.Session.Key,
			Label:      data.Session.Label,
			Tag:        data.Session.Tag,
			AppVersion: data.Session.Device.AppVersion,
			Platform:   data.Session.Device.Platform,
			UserAgent:  data.Session.Device.UserAgent,
			StartedAt:  data.Session.StartedAt.UTC().Format(time.RFC3339),
		},
		Waypoints:   make([]Waypoint, 0, len(data.Waypoints)),
		Track:       make([][]any, 0, len(data.Track)),
		Projections: make([][]any, 0),
	}
	if !data.EndedAt.IsZero() {
		export.Session.EndedAt = data.EndedAt.UTC().Format(time.RFC3339)
		export.Session.DurationSec = data.EndedAt.Sub(data.Session.StartedAt).Seconds()
	}

	// Order waypoints by registration so the file is stable across runs
	records := make([]*WaypointRecord, 0, len(data.Waypoints))
	for _, record := range data.Waypoints {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	for _, record := range records {
		wp := Waypoint{
			ID:        record.ID,
			Key:       record.Waypoint.Key,
			Label:     record.Waypoint.Label,
			Latitude:  record.Waypoint.Point.Latitude,
			Longitude: record.Waypoint.Point.Longitude,
			Altitude:  record.Waypoint.Point.Altitude,
			AddedAt:   record.Waypoint.AddedAt.UnixMilli(),
		}
		if !record.RemovedAt.IsZero() {
			wp.RemovedAt = record.RemovedAt.UnixMilli()
		}
		export.Waypoints = append(export.Waypoints, wp)
	}

	// Convert track points
	// Format: [t, lat, lon, alt, accuracy, speed, course]
	// t is unix milliseconds; speed and course are null when the fix had none
	for _, tp := range data.Track {
		var speed, course any
		if tp.HasSpeed {
			speed = tp.SpeedMPS
		}
		if tp.HasCourse {
			course = tp.CourseDeg
		}
		export.Track = append(export.Track, []any{
			tp.CapturedAt.UnixMilli(),
			tp.Point.Latitude,
			tp.Point.Longitude,
			tp.Point.Altitude,
			tp.AccuracyM,
			speed,
			course,
		})
	}

	// Convert projections, interleaved across waypoints in time order
	// Format: [t, waypointId, heading, relativeBearing, elevation, horizontalDist, totalDist, [x, y, z]]
	type projRow struct {
		at time.Time
		id uint
		p  core.Projection
	}
	rows := make([]projRow, 0)
	for _, record := range records {
		for _, p := range record.Projections {
			rows = append(rows, projRow{at: p.ComputedAt, id: record.ID, p: p})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].at.Equal(rows[j].at) {
			return rows[i].id < rows[j].id
		}
		return rows[i].at.Before(rows[j].at)
	})
	for _, r := range rows {
		export.Projections = append(export.Projections, []any{
			r.at.UnixMilli(),
			r.id,
			r.p.HeadingDeg,
			r.p.Result.RelativeBearingDeg,
			r.p.Result.ElevationRad,
			r.p.Result.HorizontalDistanceM,
			r.p.Result.TotalDistanceM,
			[]float64{r.p.Vector.X, r.p.Vector.Y, r.p.Vector.Z},
		})
	}

	return export
}
