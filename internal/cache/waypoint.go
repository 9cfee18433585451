package cache

import "sync"

// WaypointCache maps waypoint keys to their database IDs for the current
// session, so projection writes never need a lookup query.
type WaypointCache struct {
	mu        sync.RWMutex
	waypoints map[string]uint
}

// NewWaypointCache creates a new WaypointCache
func NewWaypointCache() *WaypointCache {
	return &WaypointCache{
		waypoints: make(map[string]uint),
	}
}

// Get retrieves a waypoint ID by key
func (c *WaypointCache) Get(key string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.waypoints[key]
	return id, ok
}

// Set stores a waypoint ID by key
func (c *WaypointCache) Set(key string, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waypoints[key] = id
}

// Delete removes a waypoint by key
func (c *WaypointCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waypoints, key)
}

// Reset clears all waypoints from the cache
func (c *WaypointCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waypoints = make(map[string]uint)
}
