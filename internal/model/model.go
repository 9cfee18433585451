package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&InstanceInfo{},
	&Session{},
	&Waypoint{},
	&TrackPoint{},
	&ProjectionSample{},
	&EnginePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// InstanceInfo contains deployment information about this gateway instance
type InstanceInfo struct {
	gorm.Model
	InstanceName string `json:"instanceName" gorm:"size:127"`
	Description  string `json:"description" gorm:"size:255"`
	Website      string `json:"websiteURL" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// EnginePerformance is the model for gateway performance metrics
type EnginePerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_engineperf_time"`
	SessionID           uint              `json:"sessionId" gorm:"index:idx_engineperf_session_id"`
	Session             Session           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Counters            EngineCounters    `json:"counters" gorm:"embedded;embeddedPrefix:engine_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*EnginePerformance) TableName() string {
	return "engine_performances"
}

// EngineCounters is the model for the engine ingest counters
type EngineCounters struct {
	Fixes     uint32 `json:"fixes"`
	Samples   uint32 `json:"samples"`
	Rejected  uint32 `json:"rejected"`
	Waypoints uint16 `json:"waypoints"`
}

// WriteQueueLengths is the model for the recorder write queue lengths
type WriteQueueLengths struct {
	TrackPoints uint16 `json:"trackPoints"`
	Projections uint16 `json:"projections"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is the main model for a recorded navigation session
type Session struct {
	gorm.Model
	SessionKey string `json:"sessionKey" gorm:"size:64;uniqueIndex:idx_session_key"`
	Label      string `json:"label" gorm:"size:200"`
	Tag        string `json:"tag" gorm:"size:64"`
	// Device is the client DeviceInfo as JSON
	Device     datatypes.JSON `json:"device" gorm:"default:'{}'"`
	AppVersion string         `json:"appVersion" gorm:"size:64"`
	StartTime  time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime    sql.NullTime   `json:"endTime" gorm:"type:timestamptz"`

	Waypoints   []Waypoint
	TrackPoints []TrackPoint
	Projections []ProjectionSample
}

func (*Session) TableName() string {
	return "sessions"
}

func (s *Session) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingSession Session
	err = db.Where("session_key = ?", s.SessionKey).First(&existingSession).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(s).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*s = existingSession
	return false, nil
}

// Waypoint is a registered target point
//
// Position is projected to EPSG 3857 with Z carrying altitude; the raw WGS84
// coordinate is kept alongside so exports don't need the inverse transform.
type Waypoint struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_waypoint_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	// WaypointKey is chosen by the client, unique within a session
	WaypointKey string     `json:"waypointKey" gorm:"size:128;index:idx_waypoint_key"`
	Label       string     `json:"label" gorm:"size:256"`
	Position    geom.Point `json:"position"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Altitude    float64    `json:"altitude"`
	// RemovedAt is set when the client drops the waypoint
	RemovedAt sql.NullTime `json:"removedAt" gorm:"type:timestamptz"`
}

func (*Waypoint) TableName() string {
	return "waypoints"
}

// TrackPoint is one observer position fix
type TrackPoint struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_trackpoint_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_trackpoint_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	// Position is EPSG 3857, Z = altitude in meters
	Position  geom.Point `json:"position"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Altitude  float64    `json:"altitude"`
	// AccuracyM is the Geolocation accuracy radius in meters
	AccuracyM float64 `json:"accuracy"`
	// SpeedMPS and CourseDeg are null when the platform omits them
	SpeedMPS  sql.NullFloat64 `json:"speed" gorm:"default:NULL"`
	CourseDeg sql.NullFloat64 `json:"course" gorm:"default:NULL"`
}

func (*TrackPoint) TableName() string {
	return "track_points"
}

// ProjectionSample is one computed waypoint placement
type ProjectionSample struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;index:idx_projection_time"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_projection_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	WaypointID uint      `json:"waypointId" gorm:"index:idx_projection_waypoint_id"`
	Waypoint   Waypoint  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:WaypointID;"`

	// HeadingDeg is the smoothed heading the sample was computed against.
	// RelativeBearingDeg is in (-180,180], 0 = straight ahead.
	HeadingDeg          float64 `json:"headingDeg"`
	RelativeBearingDeg  float64 `json:"relativeBearingDeg"`
	ElevationRad        float64 `json:"elevationRad"`
	HorizontalDistanceM float64 `json:"horizontalDistanceM"`
	TotalDistanceM      float64 `json:"totalDistanceM"`
	// Render-sphere placement: X right of view, Y up, Z negative in
	// front of the observer
	VectorX float64 `json:"x"`
	VectorY float64 `json:"y"`
	VectorZ float64 `json:"z"`
}

func (*ProjectionSample) TableName() string {
	return "projection_samples"
}
