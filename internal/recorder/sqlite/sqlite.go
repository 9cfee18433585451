// Package sqlite implements session recording on an in-memory SQLite
// database with periodic disk dumps via VACUUM INTO. It wraps the shared
// GORM backend via composition; the only SQLite-specific concerns are
// (a) creating the in-memory DB, (b) the periodic dump loop, and (c) a
// final snapshot on close.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/internal/database"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/recorder/gormstore"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	dumpPath string
	log      *logging.SlogManager
	stopChan chan struct{}
}

// New creates a SQLite recording backend backed by an in-memory database.
// Each run dumps into its own timestamped file under cfg.DataDir.
func New(cfg config.SQLiteConfig, deps gormstore.Dependencies) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	deps.DB = db

	var dumpPath string
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dumpPath = filepath.Join(cfg.DataDir,
			fmt.Sprintf("waypointd_%s.db", time.Now().Format("20060102_150405")))
	}

	return &Backend{
		Backend:  gormstore.New(deps),
		db:       db,
		cfg:      cfg,
		dumpPath: dumpPath,
		log:      deps.LogManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend so the
// queues flush, then writes a final snapshot to disk.
func (b *Backend) Close() error {
	close(b.stopChan)
	err := b.Backend.Close()

	if b.dumpPath != "" {
		if dumpErr := database.DumpMemoryDBToDisk(b.db, b.dumpPath); dumpErr != nil {
			b.log.WriteLog("sqlite:Close", fmt.Sprintf("Error writing final snapshot: %v", dumpErr), "ERROR")
		}
	}

	return err
}

// DumpPath returns the disk file periodic snapshots are written to.
// Empty when no data directory is configured.
func (b *Backend) DumpPath() string {
	return b.dumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via
// VACUUM INTO. VACUUM INTO creates a point-in-time snapshot, so no pause
// mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.db, b.dumpPath); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
