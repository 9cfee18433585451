package core

import "time"

// OrientationSample is one raw reading from the device orientation sensor.
// Yaw is the device alpha angle in degrees. CompassHeading carries the
// platform-native true heading on platforms that report one;
// HasCompassHeading distinguishes an absent field from a literal reading.
type OrientationSample struct {
	Yaw               float64
	Beta              float64
	Gamma             float64
	Absolute          bool
	CompassHeading    float64
	HasCompassHeading bool
	CapturedAt        time.Time
}
