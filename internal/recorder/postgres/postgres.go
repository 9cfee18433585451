// Package postgres implements session recording on a PostgreSQL server.
// It wraps the shared GORM backend via composition; the only
// postgres-specific concern is establishing the connection when none was
// injected through Dependencies.
package postgres

import (
	"fmt"

	"github.com/arwaypoint/engine/internal/database"
	"github.com/arwaypoint/engine/internal/recorder/gormstore"
)

// Backend wraps the GORM backend for PostgreSQL-specific behavior.
type Backend struct {
	*gormstore.Backend
	deps gormstore.Dependencies
}

// New creates a postgres recording backend. The connection is established
// in Init so construction never blocks on the network.
func New(deps gormstore.Dependencies) (*Backend, error) {
	return &Backend{deps: deps}, nil
}

// Init connects to postgres if no DB was injected, then initializes the
// embedded GORM backend against it.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.Backend = gormstore.New(b.deps)
	return b.Backend.Init()
}

// Close flushes and stops the embedded GORM backend. Safe to call when
// Init never ran.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
