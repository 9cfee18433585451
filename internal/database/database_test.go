package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqliteDBStandalone_InMemory(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	sqlDB.Close()
}

func TestGetSqliteDBStandalone_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waypointd_test.db")

	db, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	sqlDB.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "file DB should exist on disk")
}

func TestGetLocalDBPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), []byte{}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.db"), []byte{}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte{}, 0644))

	paths, err := GetLocalDBPaths(dir)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, ".db", filepath.Ext(p))
	}
}

func TestNewestLocalDump(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "waypointd_20250101_000000.db")
	newer := filepath.Join(dir, "waypointd_20250601_000000.db")
	require.NoError(t, os.WriteFile(older, []byte{}, 0644))
	require.NoError(t, os.WriteFile(newer, []byte{}, 0644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))

	got, err := NewestLocalDump(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestNewestLocalDump_Empty(t *testing.T) {
	_, err := NewestLocalDump(t.TempDir())
	assert.Error(t, err)
}

func TestManagerOpen_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	m := NewManager(zerolog.Nop())
	require.NoError(t, m.Open(path, ""))
	defer m.Close()

	assert.True(t, m.FromDump)
	assert.Equal(t, path, m.Source)
	assert.NoError(t, m.SqlDB.Ping())
}

func TestManagerOpen_FallsBackToNewestDump(t *testing.T) {
	// Point Postgres at a dead port so the fallback path runs.
	viper.Set("db.host", "127.0.0.1")
	viper.Set("db.port", "1")
	defer viper.Reset()

	dir := t.TempDir()
	dump := filepath.Join(dir, "waypointd_dump.db")
	db, err := GetSqliteDBStandalone(dump)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.Close()

	m := NewManager(zerolog.Nop())
	require.NoError(t, m.Open("", dir))
	defer m.Close()

	assert.True(t, m.FromDump)
	assert.Equal(t, dump, m.Source)
}

func TestManagerClose_NeverOpened(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.NoError(t, m.Close())
}
