package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arwaypoint/engine/pkg/core"
)

type sessionStartPayload struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Tag    string `json:"tag"`
	Device struct {
		UserAgent  string `json:"userAgent"`
		Platform   string `json:"platform"`
		AppVersion string `json:"appVersion"`
	} `json:"device"`
}

// ParseSessionStart decodes a session opening. Clients may supply their own
// key to resume a recording; otherwise one is generated. Sessions from
// clients that do not report an app version are stamped with ours.
func (p *Parser) ParseSessionStart(raw json.RawMessage) (core.SessionInfo, error) {
	var payload sessionStartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.SessionInfo{}, fmt.Errorf("decode session start: %w", err)
	}

	info := core.SessionInfo{
		Key:   payload.Key,
		Label: payload.Label,
		Tag:   payload.Tag,
		Device: core.DeviceInfo{
			UserAgent:  payload.Device.UserAgent,
			Platform:   payload.Device.Platform,
			AppVersion: payload.Device.AppVersion,
		},
		StartedAt: time.Now().UTC(),
	}
	if info.Key == "" {
		info.Key = uuid.NewString()
	}
	if info.Device.AppVersion == "" {
		info.Device.AppVersion = p.appVersion
	}
	return info, nil
}
