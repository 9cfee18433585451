// pkg/core/geopoint.go
package core

// GeoPoint is a WGS84 coordinate with altitude in meters above sea level.
// Latitude and longitude are decimal degrees. The zero value is the
// null island surface point.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}
