// cmd/waypointd/export.go
package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/internal/database"
	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/internal/model/convert"
	v1 "github.com/arwaypoint/engine/internal/recorder/memory/export/v1"
	"github.com/arwaypoint/engine/pkg/core"
)

// runExport pulls one recorded session out of the database and writes it as
// a v1 JSON archive, the same format the memory backend writes at session
// end. It reads from the configured Postgres database, from the newest
// local SQLite dump when Postgres is unreachable, or from an explicit
// SQLite file.
func runExport(configDir, key, dbPath, outDir string) error {
	logMgr := logging.NewSlogManager()
	logMgr.Setup(nil, "info", nil)
	logger := logMgr.Logger()

	mgr, err := openRecordedDB(configDir, dbPath, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()
	logger.Info("Reading recorded session", "source", mgr.Source, "key", key)

	sess, err := findSession(mgr.DB, key)
	if err != nil {
		return err
	}

	data, err := loadSessionData(mgr.DB, sess)
	if err != nil {
		return err
	}
	export := v1.Build(data)

	if outDir == "" {
		outDir = config.GetString("storage.memory.outputDir")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	name := sess.Label
	if name == "" {
		name = sess.SessionKey
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	base := fmt.Sprintf("%s_%s", name, sess.StartTime.Format("20060102_150405"))
	outputPath := filepath.Join(outDir, base+".json.gz")

	if err := writeExportFile(outputPath, export); err != nil {
		return err
	}

	// A WKT sidecar of the walked path drops straight into GIS tooling.
	if line, err := geo.TrackLine(data.Track); err == nil {
		wktPath := filepath.Join(outDir, base+".track.wkt")
		if werr := os.WriteFile(wktPath, []byte(line.AsText()+"\n"), 0644); werr != nil {
			logger.Warn("Failed to write track WKT", "path", wktPath, "error", werr)
		} else {
			logger.Info("Wrote track geometry", "path", wktPath)
		}
	}

	logger.Info("Wrote session export", "path", outputPath,
		"waypoints", len(export.Waypoints),
		"trackPoints", len(export.Track),
		"projections", len(export.Projections))
	return nil
}

// runListSessions prints the sessions in the recorded database, newest first.
func runListSessions(configDir, dbPath string) error {
	logMgr := logging.NewSlogManager()
	logMgr.Setup(nil, "info", nil)
	logger := logMgr.Logger()

	mgr, err := openRecordedDB(configDir, dbPath, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()

	var sessions []model.Session
	if err := mgr.DB.Order("start_time DESC").Find(&sessions).Error; err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Printf("No recorded sessions in %s.\n", mgr.Source)
		return nil
	}

	fmt.Printf("%d recorded session(s) in %s:\n", len(sessions), mgr.Source)
	for _, sess := range sessions {
		end := "active"
		if sess.EndTime.Valid {
			end = sess.EndTime.Time.UTC().Format(time.RFC3339)
		}
		label := sess.Label
		if label == "" {
			label = "(unlabeled)"
		}
		fmt.Printf("  %s  %s  %s - %s  [%s]\n",
			sess.SessionKey, label,
			sess.StartTime.UTC().Format(time.RFC3339), end, sess.Tag)
	}
	return nil
}

// openRecordedDB loads config and opens the recorded-session database. A
// missing config file is fatal only when the database must come from it.
func openRecordedDB(configDir, dbPath string, logger *slog.Logger) (*database.Manager, error) {
	if err := config.Load(configDir); err != nil {
		if dbPath == "" {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	mgr := database.NewManager(zlog)
	if err := mgr.Open(dbPath, config.GetString("storage.sqlite.dataDir")); err != nil {
		return nil, err
	}
	return mgr, nil
}

// findSession resolves key as a session key, then as a label, with "latest"
// picking the most recently started session.
func findSession(db *gorm.DB, key string) (model.Session, error) {
	var sess model.Session
	if key == "latest" {
		if err := db.Order("start_time DESC").First(&sess).Error; err != nil {
			return sess, fmt.Errorf("no recorded sessions: %w", err)
		}
		return sess, nil
	}

	err := db.Where("session_key = ?", key).First(&sess).Error
	if err == nil {
		return sess, nil
	}
	if err != gorm.ErrRecordNotFound {
		return sess, fmt.Errorf("error getting session: %w", err)
	}
	if lerr := db.Where("label = ?", key).Order("start_time DESC").First(&sess).Error; lerr != nil {
		return sess, fmt.Errorf("session %q not found", key)
	}
	return sess, nil
}

// loadSessionData reads every row of the session back into the shape the
// archive builder expects.
func loadSessionData(db *gorm.DB, sess model.Session) (*v1.SessionData, error) {
	data := &v1.SessionData{
		Session:   convert.SessionToCore(sess),
		Waypoints: make(map[string]*v1.WaypointRecord),
	}
	if sess.EndTime.Valid {
		data.EndedAt = sess.EndTime.Time
	}

	var waypoints []model.Waypoint
	if err := db.Where("session_id = ?", sess.ID).Order("id").Find(&waypoints).Error; err != nil {
		return nil, fmt.Errorf("error getting waypoints: %w", err)
	}
	byID := make(map[uint]*v1.WaypointRecord, len(waypoints))
	for _, wp := range waypoints {
		record := &v1.WaypointRecord{
			ID:       wp.ID,
			Waypoint: convert.WaypointToCore(wp),
		}
		if wp.RemovedAt.Valid {
			record.RemovedAt = wp.RemovedAt.Time
		}
		// Re-adding a key replaces the earlier waypoint, like the live path.
		data.Waypoints[wp.WaypointKey] = record
		byID[wp.ID] = record
	}

	var track []model.TrackPoint
	if err := db.Where("session_id = ?", sess.ID).Order("time").Find(&track).Error; err != nil {
		return nil, fmt.Errorf("error getting track points: %w", err)
	}
	data.Track = make([]core.TrackPoint, 0, len(track))
	for _, tp := range track {
		data.Track = append(data.Track, convert.TrackPointToCore(tp))
	}

	var samples []model.ProjectionSample
	if err := db.Where("session_id = ?", sess.ID).Order("time").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("error getting projection samples: %w", err)
	}
	for _, s := range samples {
		record, ok := byID[s.WaypointID]
		if !ok {
			continue
		}
		record.Projections = append(record.Projections, convert.ProjectionToCore(s, record.Waypoint.Key))
	}

	return data, nil
}

func writeExportFile(path string, export v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	return json.NewEncoder(gz).Encode(export)
}
