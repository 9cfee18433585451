package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/util"
	"github.com/arwaypoint/engine/pkg/core"
)

type waypointPayload struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Latitude  util.LooseFloat `json:"latitude"`
	Longitude util.LooseFloat `json:"longitude"`
	Altitude  util.LooseFloat `json:"altitude"`
}

type waypointRemovePayload struct {
	Key string `json:"key"`
}

// ParseWaypoint decodes a waypoint registration.
func (p *Parser) ParseWaypoint(raw json.RawMessage) (core.Waypoint, error) {
	var payload waypointPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.Waypoint{}, fmt.Errorf("decode waypoint: %w", err)
	}

	if payload.Key == "" {
		return core.Waypoint{}, ErrMissingKey
	}
	if !payload.Latitude.Set || !payload.Longitude.Set {
		return core.Waypoint{}, ErrMissingCoordinate
	}

	wp := core.Waypoint{
		Key:   payload.Key,
		Label: payload.Label,
		Point: core.GeoPoint{
			Latitude:  payload.Latitude.Value,
			Longitude: payload.Longitude.Value,
			Altitude:  payload.Altitude.Value,
		},
		AddedAt: time.Now().UTC(),
	}
	if err := geo.CheckPoint(wp.Point); err != nil {
		return core.Waypoint{}, fmt.Errorf("waypoint %q: %w", wp.Key, err)
	}
	return wp, nil
}

// ParseWaypointRemove decodes a waypoint removal and returns the key.
func (p *Parser) ParseWaypointRemove(raw json.RawMessage) (string, error) {
	var payload waypointRemovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode waypoint removal: %w", err)
	}
	if payload.Key == "" {
		return "", ErrMissingKey
	}
	return payload.Key, nil
}
