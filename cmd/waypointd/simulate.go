package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/pkg/streaming"
)

const (
	simCenterLat = 47.6205
	simCenterLon = -122.3493
	simCenterAlt = 35.0
	simRadiusM   = 80.0
	simWalkMPS   = 1.4
	simStepEvery = 500 * time.Millisecond

	metersPerDegLat = 111_320.0
)

// runSimulation drives the full pipeline with a synthetic walker so the
// gateway can be exercised without a sensor client. The server still
// runs: /status reports the simulated session and a connected viewer
// receives its projection stream.
func (app *application) runSimulation() error {
	if err := app.server.Start(config.GetString("server.listenAddr")); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	walker := newSimWalker()

	app.logger.Info("Simulation started",
		"lat", simCenterLat, "lon", simCenterLon, "radiusM", simRadiusM)

	err := app.dispatchSim(streaming.TypeSessionStart, streaming.SessionStartPayload{
		Label:     "Simulated walk",
		Tag:       "sim",
		StartedAt: time.Now().UTC(),
		Device: streaming.DevicePayload{
			UserAgent:  "waypointd-simulator",
			Platform:   "sim",
			AppVersion: Version,
		},
	})
	if err != nil {
		return err
	}
	err = app.dispatchSim(streaming.TypeWaypointAdd, streaming.WaypointPayload{
		Key:       "target",
		Label:     "Simulated target",
		Latitude:  simCenterLat,
		Longitude: simCenterLon,
		Altitude:  simCenterAlt,
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(simStepEvery)
	defer ticker.Stop()

	for {
		select {
		case sig := <-stop:
			app.logger.Info("Simulation stopping", "signal", sig.String())
			if err := app.dispatchSim(streaming.TypeSessionEnd, struct{}{}); err != nil {
				app.logger.Error("Failed to end simulated session", "error", err)
			}
			return nil
		case <-ticker.C:
			fix, orientation := walker.step(simStepEvery)
			if err := app.dispatchSim(streaming.TypePositionFix, fix); err != nil {
				app.logger.Debug("Simulated fix rejected", "error", err)
			}
			if err := app.dispatchSim(streaming.TypeOrientation, orientation); err != nil {
				app.logger.Debug("Simulated orientation rejected", "error", err)
			}
		}
	}
}

// dispatchSim feeds a payload into the dispatcher exactly as the read
// pump would for a frame off the wire.
func (app *application) dispatchSim(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = app.dispatcher.Dispatch(dispatcher.Event{
		Type:       msgType,
		Payload:    raw,
		ReceivedAt: time.Now(),
	})
	return err
}

// simWalker walks a circle around the simulated target, facing along the
// path with a few degrees of compass jitter.
type simWalker struct {
	angleRad float64
	rng      *rand.Rand
}

func newSimWalker() *simWalker {
	return &simWalker{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// step advances the walker and returns the sensor payloads a phone on
// that path would produce, in the browser wire shapes the parser expects.
func (w *simWalker) step(dt time.Duration) (fix, orientation map[string]any) {
	w.angleRad += simWalkMPS / simRadiusM * dt.Seconds()

	// Position angle is measured from north turning east, so advancing
	// it walks the circle clockwise and the travel direction leads the
	// radial angle by 90 degrees.
	north := simRadiusM * math.Cos(w.angleRad)
	east := simRadiusM * math.Sin(w.angleRad)
	lat := simCenterLat + north/metersPerDegLat
	lon := simCenterLon + east/(metersPerDegLat*math.Cos(geo.DegToRad(simCenterLat)))

	course := geo.NormalizeDeg(geo.RadToDeg(w.angleRad) + 90)
	heading := geo.NormalizeDeg(course + (w.rng.Float64()*6 - 3))

	nowMs := float64(time.Now().UnixMilli())
	fix = map[string]any{
		"latitude":  lat,
		"longitude": lon,
		"altitude":  simCenterAlt,
		"accuracy":  3 + w.rng.Float64()*4,
		"speed":     simWalkMPS,
		"heading":   course,
		"timestamp": nowMs,
	}
	orientation = map[string]any{
		"webkitCompassHeading": heading,
		"absolute":             true,
		"timestamp":            nowMs,
	}
	return fix, orientation
}
