// internal/recorder/memory/memory_test.go
package memory

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/pkg/core"
)

func testSession() *core.SessionInfo {
	return &core.SessionInfo{
		Key:       "11111111-2222-3333-4444-555555555555",
		Label:     "lakeside run",
		Tag:       "field-test",
		Device:    core.DeviceInfo{Platform: "iPhone", AppVersion: "1.4.0"},
		StartedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.waypoints == nil {
		t.Error("waypoints map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	// Add some data before starting
	if _, err := b.AddWaypoint(&core.Waypoint{Key: "old"}); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	// Start a new session - should reset collections
	info := testSession()
	if err := b.StartSession(info); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if b.session != info {
		t.Error("session not set")
	}
	if len(b.waypoints) != 0 {
		t.Error("waypoints not reset")
	}
	if b.idCounter != 0 {
		t.Error("idCounter not reset")
	}
}

func TestAddWaypoint(t *testing.T) {
	b := New(config.MemoryConfig{})

	id1, err := b.AddWaypoint(&core.Waypoint{
		Key:   "wp-1",
		Label: "Summit",
		Point: core.GeoPoint{Latitude: 47.6, Longitude: 8.0, Altitude: 820},
	})
	if err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	id2, err := b.AddWaypoint(&core.Waypoint{
		Key:   "wp-2",
		Label: "Hut",
		Point: core.GeoPoint{Latitude: 47.61, Longitude: 8.01, Altitude: 700},
	})
	if err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	if id1 != 1 || id2 != 2 {
		t.Errorf("expected IDs 1 and 2, got %d and %d", id1, id2)
	}

	// Check storage
	if len(b.waypoints) != 2 {
		t.Errorf("expected 2 waypoints, got %d", len(b.waypoints))
	}
	if b.waypoints["wp-1"].Waypoint.Label != "Summit" {
		t.Error("wp-1 not stored correctly")
	}
	if b.waypoints["wp-2"].Waypoint.Label != "Hut" {
		t.Error("wp-2 not stored correctly")
	}
}

func TestGetWaypoint(t *testing.T) {
	b := New(config.MemoryConfig{})

	if _, err := b.AddWaypoint(&core.Waypoint{Key: "wp-1", Label: "Summit"}); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	// Found case
	found, ok := b.GetWaypoint("wp-1")
	if !ok {
		t.Fatal("waypoint not found")
	}
	if found.Label != "Summit" {
		t.Errorf("expected Label=Summit, got %s", found.Label)
	}

	// Not found case
	_, ok = b.GetWaypoint("nonexistent")
	if ok {
		t.Error("expected not found for non-existent key")
	}
}

func TestRemoveWaypoint(t *testing.T) {
	b := New(config.MemoryConfig{})

	if _, err := b.AddWaypoint(&core.Waypoint{Key: "wp-1"}); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	removedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := b.RemoveWaypoint("wp-1", removedAt); err != nil {
		t.Fatalf("RemoveWaypoint failed: %v", err)
	}

	if !b.waypoints["wp-1"].RemovedAt.Equal(removedAt) {
		t.Errorf("expected RemovedAt=%v, got %v", removedAt, b.waypoints["wp-1"].RemovedAt)
	}

	// Removing a non-existent waypoint should not error
	if err := b.RemoveWaypoint("nonexistent", removedAt); err != nil {
		t.Errorf("RemoveWaypoint should not error for missing waypoint: %v", err)
	}
}

func TestRecordTrackPoint(t *testing.T) {
	b := New(config.MemoryConfig{})

	tp1 := &core.TrackPoint{
		Point:      core.GeoPoint{Latitude: 47.6, Longitude: 8.0, Altitude: 400},
		AccuracyM:  5,
		CapturedAt: time.Now(),
	}
	tp2 := &core.TrackPoint{
		Point:      core.GeoPoint{Latitude: 47.601, Longitude: 8.001, Altitude: 401},
		AccuracyM:  4,
		SpeedMPS:   1.4,
		HasSpeed:   true,
		CapturedAt: time.Now(),
	}

	if err := b.RecordTrackPoint(tp1); err != nil {
		t.Fatalf("RecordTrackPoint failed: %v", err)
	}
	if err := b.RecordTrackPoint(tp2); err != nil {
		t.Fatalf("RecordTrackPoint failed: %v", err)
	}

	if len(b.track) != 2 {
		t.Errorf("expected 2 track points, got %d", len(b.track))
	}
	if !b.track[1].HasSpeed {
		t.Error("second track point not recorded correctly")
	}
}

func TestRecordProjection(t *testing.T) {
	b := New(config.MemoryConfig{})

	if _, err := b.AddWaypoint(&core.Waypoint{Key: "wp-1"}); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}

	p1 := &core.Projection{
		WaypointKey: "wp-1",
		HeadingDeg:  120,
		Result:      core.BearingResult{RelativeBearingDeg: -15, HorizontalDistanceM: 250},
		ComputedAt:  time.Now(),
	}
	p2 := &core.Projection{
		WaypointKey: "wp-1",
		HeadingDeg:  121,
		Result:      core.BearingResult{RelativeBearingDeg: -14, HorizontalDistanceM: 248},
		ComputedAt:  time.Now(),
	}

	if err := b.RecordProjection(p1); err != nil {
		t.Fatalf("RecordProjection failed: %v", err)
	}
	if err := b.RecordProjection(p2); err != nil {
		t.Fatalf("RecordProjection failed: %v", err)
	}

	record := b.waypoints["wp-1"]
	if len(record.Projections) != 2 {
		t.Errorf("expected 2 projections, got %d", len(record.Projections))
	}
	if record.Projections[0].HeadingDeg != 120 {
		t.Error("first projection not recorded correctly")
	}

	// Recording a projection for a non-existent waypoint should not error
	orphan := &core.Projection{WaypointKey: "nonexistent"}
	if err := b.RecordProjection(orphan); err != nil {
		t.Errorf("RecordProjection should not error for missing waypoint: %v", err)
	}
}

func TestRecordProjection_RemovedWaypoint(t *testing.T) {
	b := New(config.MemoryConfig{})

	if _, err := b.AddWaypoint(&core.Waypoint{Key: "wp-1"}); err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if err := b.RemoveWaypoint("wp-1", time.Now()); err != nil {
		t.Fatalf("RemoveWaypoint failed: %v", err)
	}

	if err := b.RecordProjection(&core.Projection{WaypointKey: "wp-1"}); err != nil {
		t.Errorf("RecordProjection should not error for removed waypoint: %v", err)
	}
	if len(b.waypoints["wp-1"].Projections) != 0 {
		t.Error("projection recorded for removed waypoint")
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New(config.MemoryConfig{})

	var wg sync.WaitGroup
	numGoroutines := 10
	numOperationsPerGoroutine := 100

	// Concurrent writes
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperationsPerGoroutine; j++ {
				key := fmt.Sprintf("wp-%d-%d", id, j)
				_, _ = b.AddWaypoint(&core.Waypoint{Key: key})
			}
		}(i)
	}

	// Concurrent reads
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperationsPerGoroutine; j++ {
				key := fmt.Sprintf("wp-%d-%d", id, j)
				_, _ = b.GetWaypoint(key)
			}
		}(i)
	}

	wg.Wait()

	// Verify all waypoints were added
	expectedCount := numGoroutines * numOperationsPerGoroutine
	if len(b.waypoints) != expectedCount {
		t.Errorf("expected %d waypoints, got %d", expectedCount, len(b.waypoints))
	}
}

func TestStartSessionResetsEverything(t *testing.T) {
	b := New(config.MemoryConfig{})

	// Populate with data
	_, _ = b.AddWaypoint(&core.Waypoint{Key: "wp-1"})
	_ = b.RecordTrackPoint(&core.TrackPoint{CapturedAt: time.Now()})
	_ = b.RecordProjection(&core.Projection{WaypointKey: "wp-1"})

	// Start new session
	_ = b.StartSession(testSession())

	if len(b.waypoints) != 0 {
		t.Error("waypoints not reset")
	}
	if len(b.track) != 0 {
		t.Error("track not reset")
	}
}

func TestGetExportedFilePath(t *testing.T) {
	b := New(config.MemoryConfig{
		OutputDir:      t.TempDir(),
		CompressOutput: true,
	})

	// Before export, should return empty
	if path := b.GetExportedFilePath(); path != "" {
		t.Errorf("expected empty path before export, got %s", path)
	}
}

func TestGetExportedFilePath_AfterExport(t *testing.T) {
	tmpDir := t.TempDir()
	b := New(config.MemoryConfig{
		OutputDir:      tmpDir,
		CompressOutput: true,
	})

	if err := b.StartSession(testSession()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("expected non-empty path after export")
	}
	if !strings.HasPrefix(path, tmpDir) {
		t.Errorf("expected path to start with %s, got %s", tmpDir, path)
	}
	if !strings.HasSuffix(path, ".json.gz") {
		t.Errorf("expected path to end with .json.gz, got %s", path)
	}
}

func TestGetExportedFilePath_UncompressedExport(t *testing.T) {
	tmpDir := t.TempDir()
	b := New(config.MemoryConfig{
		OutputDir:      tmpDir,
		CompressOutput: false,
	})

	if err := b.StartSession(testSession()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("expected non-empty path after export")
	}
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("expected path to end with .json, got %s", path)
	}
	if strings.HasSuffix(path, ".json.gz") {
		t.Errorf("expected path to NOT end with .json.gz for uncompressed, got %s", path)
	}
}

func TestGetExportMetadata(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	if err := b.StartSession(testSession()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	meta := b.GetExportMetadata()

	if meta.SessionKey != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("expected SessionKey from session, got %s", meta.SessionKey)
	}
	if meta.Label != "lakeside run" {
		t.Errorf("expected Label=lakeside run, got %s", meta.Label)
	}
	if meta.Tag != "field-test" {
		t.Errorf("expected Tag=field-test, got %s", meta.Tag)
	}
	if meta.Duration <= 0 {
		t.Errorf("expected positive Duration, got %f", meta.Duration)
	}
}

func TestGetExportMetadataWithoutStartSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	// GetExportMetadata without StartSession should return empty metadata, not panic
	meta := b.GetExportMetadata()

	if meta.SessionKey != "" {
		t.Errorf("expected empty SessionKey, got %s", meta.SessionKey)
	}
	if meta.Label != "" {
		t.Errorf("expected empty Label, got %s", meta.Label)
	}
	if meta.Duration != 0 {
		t.Errorf("expected Duration=0, got %f", meta.Duration)
	}
}

func TestStartSessionResetsExportPath(t *testing.T) {
	b := New(config.MemoryConfig{
		OutputDir:      t.TempDir(),
		CompressOutput: true,
	})

	if err := b.StartSession(testSession()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if b.GetExportedFilePath() == "" {
		t.Fatal("expected non-empty path after export")
	}

	// Start new session - should reset path
	next := testSession()
	next.Key = "99999999-8888-7777-6666-555555555555"
	if err := b.StartSession(next); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if path := b.GetExportedFilePath(); path != "" {
		t.Errorf("expected empty path after StartSession, got %s", path)
	}
}

func TestEndSessionWithoutStartSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	// EndSession without StartSession should return an error, not panic
	err := b.EndSession()
	if err == nil {
		t.Error("expected error when ending session that was never started")
	}
	if !strings.Contains(err.Error(), "no session to end") {
		t.Errorf("expected error message to contain 'no session to end', got: %s", err.Error())
	}
}
