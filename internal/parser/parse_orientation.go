package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arwaypoint/engine/internal/util"
	"github.com/arwaypoint/engine/pkg/core"
)

// orientationPayload mirrors a DeviceOrientation event. Alpha is null when
// the platform cannot determine yaw; webkitCompassHeading only exists on
// iOS Safari.
type orientationPayload struct {
	Alpha     util.LooseFloat `json:"alpha"`
	Beta      util.LooseFloat `json:"beta"`
	Gamma     util.LooseFloat `json:"gamma"`
	Absolute  bool            `json:"absolute"`
	Compass   util.LooseFloat `json:"webkitCompassHeading"`
	Timestamp util.LooseFloat `json:"timestamp"`
}

// ParseOrientation decodes one orientation sample. A sample with neither
// alpha nor a compass heading carries no usable yaw and is rejected with
// ErrMissingHeading.
func (p *Parser) ParseOrientation(raw json.RawMessage) (core.OrientationSample, error) {
	var payload orientationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.OrientationSample{}, fmt.Errorf("decode orientation: %w", err)
	}

	if !payload.Alpha.Set && !payload.Compass.Set {
		return core.OrientationSample{}, ErrMissingHeading
	}

	s := core.OrientationSample{
		Yaw:               payload.Alpha.Value,
		Beta:              payload.Beta.Value,
		Gamma:             payload.Gamma.Value,
		Absolute:          payload.Absolute,
		CompassHeading:    payload.Compass.Value,
		HasCompassHeading: payload.Compass.Set,
		CapturedAt:        time.Now().UTC(),
	}
	if payload.Timestamp.Set && payload.Timestamp.Value > 0 {
		s.CapturedAt = time.UnixMilli(int64(payload.Timestamp.Value)).UTC()
	}
	return s, nil
}
