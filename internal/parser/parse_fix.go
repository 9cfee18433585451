package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/util"
	"github.com/arwaypoint/engine/pkg/core"
)

// positionFixPayload mirrors a Geolocation API position. Speed and heading
// are null on most fixes, altitude on indoor ones.
type positionFixPayload struct {
	Latitude  util.LooseFloat `json:"latitude"`
	Longitude util.LooseFloat `json:"longitude"`
	Altitude  util.LooseFloat `json:"altitude"`
	Accuracy  util.LooseFloat `json:"accuracy"`
	Speed     util.LooseFloat `json:"speed"`
	Heading   util.LooseFloat `json:"heading"`
	Timestamp util.LooseFloat `json:"timestamp"`
}

// ParsePositionFix decodes one observer fix. A fix without both latitude
// and longitude is rejected with ErrMissingCoordinate; out-of-range
// coordinates are rejected by the range check. The timestamp is epoch
// milliseconds when the client sends one, otherwise receive time.
func (p *Parser) ParsePositionFix(raw json.RawMessage) (core.TrackPoint, error) {
	var payload positionFixPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.TrackPoint{}, fmt.Errorf("decode position fix: %w", err)
	}

	if !payload.Latitude.Set || !payload.Longitude.Set {
		return core.TrackPoint{}, ErrMissingCoordinate
	}

	tp := core.TrackPoint{
		Point: core.GeoPoint{
			Latitude:  payload.Latitude.Value,
			Longitude: payload.Longitude.Value,
			Altitude:  payload.Altitude.Value,
		},
		AccuracyM:  payload.Accuracy.Value,
		SpeedMPS:   payload.Speed.Value,
		HasSpeed:   payload.Speed.Set,
		CourseDeg:  payload.Heading.Value,
		HasCourse:  payload.Heading.Set,
		CapturedAt: time.Now().UTC(),
	}
	if err := geo.CheckPoint(tp.Point); err != nil {
		return core.TrackPoint{}, fmt.Errorf("position fix: %w", err)
	}

	if payload.Timestamp.Set && payload.Timestamp.Value > 0 {
		tp.CapturedAt = time.UnixMilli(int64(payload.Timestamp.Value)).UTC()
	}
	return tp, nil
}
