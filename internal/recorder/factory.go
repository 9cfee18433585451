// internal/recorder/factory.go
package recorder

import (
	"fmt"

	"github.com/arwaypoint/engine/internal/cache"
	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/recorder/gormstore"
	"github.com/arwaypoint/engine/internal/recorder/memory"
	"github.com/arwaypoint/engine/internal/recorder/postgres"
	"github.com/arwaypoint/engine/internal/recorder/relay"
	"github.com/arwaypoint/engine/internal/recorder/sqlite"
	"github.com/arwaypoint/engine/internal/session"
)

// Compile-time interface conformance. Kept here rather than in the backend
// packages so their in-package tests don't have to import this package.
var (
	_ Backend             = (*memory.Backend)(nil)
	_ Uploadable          = (*memory.Backend)(nil)
	_ Backend             = (*sqlite.Backend)(nil)
	_ Backend             = (*postgres.Backend)(nil)
	_ Backend             = (*relay.Backend)(nil)
	_ PerformanceRecorder = (*gormstore.Backend)(nil)
	_ QueueReporter       = (*gormstore.Backend)(nil)
)

// Dependencies holds the collaborators shared by the DB-backed backends.
type Dependencies struct {
	WaypointCache  *cache.WaypointCache
	LogManager     *logging.SlogManager
	SessionContext *session.Context
}

// NewBackend creates a recording backend based on configuration.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(gormstore.Dependencies{
			WaypointCache:  deps.WaypointCache,
			LogManager:     deps.LogManager,
			SessionContext: deps.SessionContext,
		})
	case "sqlite":
		return sqlite.New(cfg.SQLite, gormstore.Dependencies{
			WaypointCache:  deps.WaypointCache,
			LogManager:     deps.LogManager,
			SessionContext: deps.SessionContext,
		})
	case "relay":
		return relay.New(relay.Config{
			URL:    cfg.Relay.URL,
			Secret: cfg.Relay.Secret,
		}, deps.LogManager.Logger()), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
