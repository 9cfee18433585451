package main

import (
	"fmt"
	"time"

	"github.com/arwaypoint/engine/internal/engine"
	v1 "github.com/arwaypoint/engine/internal/recorder/memory/export/v1"
	"github.com/arwaypoint/engine/pkg/core"
)

// runReplay feeds a recorded session export through a fresh engine and
// prints the projection stream it would have produced. The recorded
// course stands in for the heading a live client would have streamed.
// speed is a real-time multiplier; 0 replays without delay.
func runReplay(path string, speed float64) error {
	export, err := v1.LoadFile(path)
	if err != nil {
		return err
	}

	track, err := export.TrackPoints()
	if err != nil {
		return err
	}
	if len(track) == 0 {
		return fmt.Errorf("export %s contains no track points", path)
	}

	eng, err := engine.New(engine.DefaultConfig())
	if err != nil {
		return err
	}

	fmt.Printf("session %s (%q) - %d waypoints, %d track points\n",
		export.Session.Key, export.Session.Label, len(export.Waypoints), len(track))

	// Waypoint lifetimes replay against the track clock.
	added := make(map[string]bool, len(export.Waypoints))
	removed := make(map[string]bool, len(export.Waypoints))

	start := track[0].CapturedAt
	last := start

	for _, tp := range track {
		now := tp.CapturedAt
		nowMs := now.UnixMilli()

		for _, wp := range export.Waypoints {
			if !added[wp.Key] && wp.AddedAt <= nowMs {
				err := eng.AddWaypoint(core.Waypoint{
					Key:   wp.Key,
					Label: wp.Label,
					Point: core.GeoPoint{
						Latitude:  wp.Latitude,
						Longitude: wp.Longitude,
						Altitude:  wp.Altitude,
					},
					AddedAt: time.UnixMilli(wp.AddedAt),
				})
				if err != nil {
					return fmt.Errorf("waypoint %q: %w", wp.Key, err)
				}
				added[wp.Key] = true
				fmt.Printf("t+%06.1fs + waypoint %s\n", now.Sub(start).Seconds(), wp.Key)
			}
			if added[wp.Key] && !removed[wp.Key] && wp.RemovedAt > 0 && wp.RemovedAt <= nowMs {
				if err := eng.RemoveWaypoint(wp.Key); err != nil {
					return fmt.Errorf("waypoint %q: %w", wp.Key, err)
				}
				removed[wp.Key] = true
				fmt.Printf("t+%06.1fs - waypoint %s\n", now.Sub(start).Seconds(), wp.Key)
			}
		}

		if speed > 0 {
			if dt := now.Sub(last); dt > 0 {
				time.Sleep(time.Duration(float64(dt) / speed))
			}
		}
		last = now

		if _, err := eng.OnPositionFix(tp.Point); err != nil {
			fmt.Printf("t+%06.1fs ! fix rejected: %v\n", now.Sub(start).Seconds(), err)
			continue
		}

		// Fixes without a course leave the previous heading standing,
		// exactly as a quiet compass would.
		if !tp.HasCourse {
			continue
		}
		projections, err := eng.OnOrientationSample(core.OrientationSample{
			CompassHeading:    tp.CourseDeg,
			HasCompassHeading: true,
			Absolute:          true,
			CapturedAt:        now,
		})
		if err != nil {
			continue
		}
		printProjections(now.Sub(start), projections)
	}

	snap := eng.Snapshot()
	fmt.Printf("replayed %d fixes, %d headings, %d rejected\n",
		snap.Fixes, snap.Samples, snap.Rejected)
	return nil
}

func printProjections(offset time.Duration, ps []core.Projection) {
	for _, p := range ps {
		fmt.Printf("t+%06.1fs heading=%6.1f %-10s bearing=%+7.1f elev=%+.3f dist=%8.1fm vec=(%+.3f %+.3f %+.3f)\n",
			offset.Seconds(), p.HeadingDeg, p.WaypointKey,
			p.Result.RelativeBearingDeg, p.Result.ElevationRad, p.Result.HorizontalDistanceM,
			p.Vector.X, p.Vector.Y, p.Vector.Z)
	}
}
