// Package gormstore implements session recording on a GORM-backed database
// with internal queues and a background DB writer goroutine. The sqlite and
// postgres backends both build on it; they differ only in how the connection
// is opened and kept durable.
package gormstore

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arwaypoint/engine/internal/cache"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/internal/model/convert"
	"github.com/arwaypoint/engine/internal/queue"
	"github.com/arwaypoint/engine/internal/session"
	"github.com/arwaypoint/engine/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM recording backend.
type Dependencies struct {
	DB             *gorm.DB
	WaypointCache  *cache.WaypointCache
	LogManager     *logging.SlogManager
	SessionContext *session.Context
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	TrackPoints *queue.Queue[model.TrackPoint]
	Projections *queue.Queue[model.ProjectionSample]
	Performance *queue.Queue[model.EnginePerformance]
}

func newQueues() *queues {
	return &queues{
		TrackPoints: queue.New[model.TrackPoint](),
		Projections: queue.New[model.ProjectionSample](),
		Performance: queue.New[model.EnginePerformance](),
	}
}

// Backend records sessions into a GORM database with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	dbReady   bool

	lastWriteDuration time.Duration
}

// New creates a new GORM recording backend. A nil DB leaves the backend in
// queue-only mode, which is useful for testing and for wrappers that connect
// during Init.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine. With no DB configured it stops after creating the queues.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		return nil
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true

	b.startWriters()
	return nil
}

// setupDB migrates tables and creates default instance settings if they don't exist.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	if !db.Migrator().HasTable(&model.InstanceInfo{}) {
		if err := db.AutoMigrate(&model.InstanceInfo{}); err != nil {
			log.WriteLog("setupDB", fmt.Sprintf("Failed to create instance_info table: %s", err), "ERROR")
			return fmt.Errorf("failed to auto-migrate InstanceInfo: %w", err)
		}
		if err := db.Create(&model.InstanceInfo{
			InstanceName: "ARWaypoint",
			Description:  "AR waypoint navigation gateway",
			Website:      "https://github.com/arwaypoint/engine",
		}).Error; err != nil {
			return fmt.Errorf("failed to create instance_info entry: %w", err)
		}
	}

	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
		log.WriteLog("setupDB", "PostGIS Extension created", "INFO")
	}

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close stops the DB writer goroutine and drains any remaining queued rows.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	if b.dbReady {
		b.writeAll(uint(b.sessionID.Load()))
	}
	return nil
}

// StartSession gets or inserts the session row and resets per-session state.
// A reconnecting client with the same session key resumes its existing row.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	b.deps.WaypointCache.Reset()

	gormSession := convert.CoreToSession(*info)
	if b.deps.DB != nil {
		created, err := gormSession.GetOrInsert(b.deps.DB)
		if err != nil {
			return fmt.Errorf("failed to get or insert session: %w", err)
		}
		if !created {
			b.deps.LogManager.WriteLog("StartSession", fmt.Sprintf("Resuming session %s", gormSession.SessionKey), "INFO")
		}
		b.sessionID.Store(uint64(gormSession.ID))
	}
	b.deps.SessionContext.Begin(&gormSession)

	return nil
}

// SetSessionID sets the current session ID for the DB writer (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// EndSession drains the queues and stamps the session row with its end time.
func (b *Backend) EndSession() error {
	sessionID := uint(b.sessionID.Load())

	if b.dbReady {
		b.writeAll(sessionID)
	}

	if b.deps.DB != nil && sessionID != 0 {
		err := b.deps.DB.Model(&model.Session{}).
			Where("id = ?", sessionID).
			Update("end_time", time.Now()).Error
		if err != nil {
			return fmt.Errorf("failed to close session record: %w", err)
		}
	}

	b.deps.SessionContext.End()
	return nil
}

// AddWaypoint inserts a waypoint synchronously (not queued) because waypoints
// are low-volume and need immediate ID assignment for the WaypointCache.
// Returns the DB-assigned ID (0 if no DB is configured).
func (b *Backend) AddWaypoint(wp *core.Waypoint) (uint, error) {
	gormObj := convert.CoreToWaypoint(*wp, uint(b.sessionID.Load()))
	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&gormObj).Error; err != nil {
			return 0, fmt.Errorf("failed to insert waypoint: %w", err)
		}
		b.deps.WaypointCache.Set(wp.Key, gormObj.ID)
		return gormObj.ID, nil
	}
	return 0, nil
}

// RemoveWaypoint stamps the waypoint row with its removal time and drops it
// from the cache so later projections for it are discarded.
func (b *Backend) RemoveWaypoint(key string, at time.Time) error {
	waypointID, ok := b.deps.WaypointCache.Get(key)
	if !ok {
		return nil
	}
	b.deps.WaypointCache.Delete(key)

	if b.deps.DB != nil {
		err := b.deps.DB.Model(&model.Waypoint{}).
			Where("id = ?", waypointID).
			Update("removed_at", at).Error
		if err != nil {
			return fmt.Errorf("failed to mark waypoint removed: %w", err)
		}
	}
	return nil
}

// RecordTrackPoint converts and queues an observer fix.
func (b *Backend) RecordTrackPoint(tp *core.TrackPoint) error {
	gormObj := convert.CoreToTrackPoint(*tp, 0)
	b.queues.TrackPoints.Push(gormObj)
	return nil
}

// RecordProjection converts and queues a waypoint placement. Projections for
// waypoints not in the cache (removed, or never registered) are dropped.
func (b *Backend) RecordProjection(p *core.Projection) error {
	waypointID, ok := b.deps.WaypointCache.Get(p.WaypointKey)
	if !ok {
		return nil
	}
	gormObj := convert.CoreToProjection(*p, 0, waypointID)
	b.queues.Projections.Push(gormObj)
	return nil
}

// RecordPerformance queues a gateway performance snapshot.
func (b *Backend) RecordPerformance(perf model.EnginePerformance) error {
	b.queues.Performance.Push(perf)
	return nil
}

// QueueLengths reports the current write queue depths.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		TrackPoints: uint16(b.queues.TrackPoints.Len()),
		Projections: uint16(b.queues.Projections.Len()),
	}
}

// LastWriteDuration returns how long the most recent non-empty write cycle took.
func (b *Backend) LastWriteDuration() time.Duration {
	return b.lastWriteDuration
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T), onSuccess func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
	if onSuccess != nil {
		onSuccess(items)
	}
}

// writeAll drains every queue into the DB, stamping rows with the given session ID.
func (b *Backend) writeAll(sessionID uint) {
	log := b.deps.LogManager.WriteLog

	stampTrackPoints := func(items []model.TrackPoint) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampProjections := func(items []model.ProjectionSample) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampPerformance := func(items []model.EnginePerformance) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}

	writeQueue(b.deps.DB, b.queues.TrackPoints, "track points", log, stampTrackPoints, nil)
	writeQueue(b.deps.DB, b.queues.Projections, "projections", log, stampProjections, nil)
	writeQueue(b.deps.DB, b.queues.Performance, "performance snapshots", log, stampPerformance, nil)
}

// startWriters starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startWriters() {
	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbReady {
				time.Sleep(1 * time.Second)
				continue
			}

			// Read sessionID once per write cycle
			sessionID := uint(b.sessionID.Load())

			busy := !b.queues.TrackPoints.Empty() || !b.queues.Projections.Empty() || !b.queues.Performance.Empty()
			start := time.Now()
			b.writeAll(sessionID)
			if busy {
				b.lastWriteDuration = time.Since(start)
			}

			time.Sleep(2 * time.Second)
		}
	}()
}
