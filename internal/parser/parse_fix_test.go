package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/pkg/core"
)

func TestParsePositionFix(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, tp core.TrackPoint)
	}{
		{
			name: "full fix",
			raw: `{
				"latitude": 48.137154,
				"longitude": 11.576124,
				"altitude": 519.3,
				"accuracy": 8.5,
				"speed": 1.4,
				"heading": 270.0,
				"timestamp": 1721999123456
			}`,
			check: func(t *testing.T, tp core.TrackPoint) {
				assert.InDelta(t, 48.137154, tp.Point.Latitude, 1e-9)
				assert.InDelta(t, 11.576124, tp.Point.Longitude, 1e-9)
				assert.InDelta(t, 519.3, tp.Point.Altitude, 1e-9)
				assert.InDelta(t, 8.5, tp.AccuracyM, 1e-9)
				assert.True(t, tp.HasSpeed)
				assert.InDelta(t, 1.4, tp.SpeedMPS, 1e-9)
				assert.True(t, tp.HasCourse)
				assert.InDelta(t, 270.0, tp.CourseDeg, 1e-9)
				assert.Equal(t, time.UnixMilli(1721999123456).UTC(), tp.CapturedAt)
			},
		},
		{
			name: "nullable fields null",
			raw:  `{"latitude": 48.1, "longitude": 11.5, "altitude": null, "speed": null, "heading": null}`,
			check: func(t *testing.T, tp core.TrackPoint) {
				assert.Zero(t, tp.Point.Altitude)
				assert.False(t, tp.HasSpeed)
				assert.False(t, tp.HasCourse)
			},
		},
		{
			name: "quoted numbers",
			raw:  `{"latitude": "48.1", "longitude": "11.5"}`,
			check: func(t *testing.T, tp core.TrackPoint) {
				assert.InDelta(t, 48.1, tp.Point.Latitude, 1e-9)
				assert.InDelta(t, 11.5, tp.Point.Longitude, 1e-9)
			},
		},
		{
			name: "no timestamp falls back to receive time",
			raw:  `{"latitude": 48.1, "longitude": 11.5}`,
			check: func(t *testing.T, tp core.TrackPoint) {
				assert.WithinDuration(t, time.Now(), tp.CapturedAt, time.Minute)
			},
		},
		{
			name:    "missing latitude",
			raw:     `{"longitude": 11.5}`,
			wantErr: ErrMissingCoordinate,
		},
		{
			name:    "missing longitude",
			raw:     `{"latitude": 48.1}`,
			wantErr: ErrMissingCoordinate,
		},
		{
			name:    "empty object",
			raw:     `{}`,
			wantErr: ErrMissingCoordinate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser()
			got, err := p.ParsePositionFix(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestParsePositionFix_OutOfRange(t *testing.T) {
	p := newTestParser()
	_, err := p.ParsePositionFix(json.RawMessage(`{"latitude": 91.0, "longitude": 0.0}`))
	require.ErrorIs(t, err, geo.ErrCoordinateRange)
}

func TestParsePositionFix_BadJSON(t *testing.T) {
	p := newTestParser()
	_, err := p.ParsePositionFix(json.RawMessage(`[1, 2]`))
	require.Error(t, err)
}
