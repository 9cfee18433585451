package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/pkg/core"
)

// Bucket names for gateway metrics.
const (
	BucketSessions          = "waypoint_sessions"
	BucketEnginePerformance = "engine_performance"
)

// DefaultBucketNames are the InfluxDB buckets the gateway writes to.
var DefaultBucketNames = []string{
	BucketSessions,
	BucketEnginePerformance,
}

// Manager handles InfluxDB connections and writes. When the server is
// unreachable, points are appended to a gzipped line-protocol backup file
// instead.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	// mu guards IsValid, Writers, and BackupWriter. The health check
	// goroutine flips between direct and backup writes at runtime.
	mu sync.RWMutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.ensureBackupWriter(); err != nil {
			return err
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		if err := m.setupOrganizationAndBuckets(); err != nil {
			return err
		}
		m.createWriters()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

// ensureBackupWriter opens the gzipped backup file. Caller must hold m.mu.
func (m *Manager) ensureBackupWriter() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// get influxOrg
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90, // 90 days
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// createWriters creates write APIs for all configured buckets.
// Caller must hold m.mu.
func (m *Manager) createWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)

		m.Logger.Trace().Str("bucket", bucket).Msg("InfluxDB writer created")
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// Healthy reports whether points currently go to InfluxDB directly.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsValid
}

// StartHealthCheck re-pings InfluxDB on the given interval. A gateway runs
// for days at a time; a hub that was down at startup gets picked up when it
// returns, and writes fall back to the backup file when it drops out.
func (m *Manager) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkHealth()
			}
		}
	}()
}

func (m *Manager) checkHealth() {
	if m.Client == nil {
		return
	}

	running, err := m.Client.Ping(context.Background())
	healthy := err == nil && running

	if healthy == m.Healthy() {
		return
	}

	if healthy {
		if err := m.setupOrganizationAndBuckets(); err != nil {
			m.Logger.Error().Err(err).Msg("InfluxDB recovered but setup failed")
			return
		}
		m.mu.Lock()
		m.createWriters()
		m.IsValid = true
		m.mu.Unlock()
		m.Logger.Info().Msg("InfluxDB connection recovered")
		return
	}

	m.mu.Lock()
	m.IsValid = false
	err = m.ensureBackupWriter()
	m.mu.Unlock()
	if err != nil {
		m.Logger.Error().Err(err).Msg("InfluxDB connection lost and backup file unavailable")
		return
	}
	m.Logger.Warn().Msg("InfluxDB connection lost, using backup writer")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.IsValid {
		writer, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}

	return nil
}

// WriteEnginePerformance records one engine performance snapshot tagged with
// the session it was taken during.
func (m *Manager) WriteEnginePerformance(ctx context.Context, sessionKey string, perf model.EnginePerformance) error {
	point := influxdb2.NewPoint(
		"engine",
		map[string]string{"session": sessionKey},
		map[string]any{
			"fixes":               int64(perf.Counters.Fixes),
			"samples":             int64(perf.Counters.Samples),
			"rejected":            int64(perf.Counters.Rejected),
			"waypoints":           int64(perf.Counters.Waypoints),
			"queuedTrackPoints":   int64(perf.WriteQueueLengths.TrackPoints),
			"queuedProjections":   int64(perf.WriteQueueLengths.Projections),
			"lastWriteDurationMs": float64(perf.LastWriteDurationMs),
		},
		perf.Time,
	)
	return m.WritePoint(ctx, BucketEnginePerformance, point)
}

// WriteNavigationPoint records one projection result tagged with its session
// and waypoint. tp carries the fix that triggered the recompute; it may be
// nil when none is at hand.
func (m *Manager) WriteNavigationPoint(ctx context.Context, sessionKey string, tp *core.TrackPoint, p *core.Projection) error {
	fields := map[string]any{
		"distanceM":          p.Result.TotalDistanceM,
		"horizontalM":        p.Result.HorizontalDistanceM,
		"relativeBearingDeg": p.Result.RelativeBearingDeg,
		"elevationRad":       p.Result.ElevationRad,
		"headingDeg":         p.HeadingDeg,
	}
	if tp != nil && tp.HasSpeed {
		fields["speedMps"] = tp.SpeedMPS
	}
	point := influxdb2.NewPoint(
		"navigation",
		map[string]string{"session": sessionKey, "waypoint": p.WaypointKey},
		fields,
		p.ComputedAt,
	)
	return m.WritePoint(ctx, BucketSessions, point)
}

// WriteSessionEvent records one session lifecycle event (started, ended,
// waypoint_added, waypoint_removed).
func (m *Manager) WriteSessionEvent(ctx context.Context, sessionKey, event string) error {
	point := influxdb2.NewPoint(
		"session_event",
		map[string]string{"session": sessionKey, "event": event},
		map[string]any{"count": int64(1)},
		time.Now(),
	)
	return m.WritePoint(ctx, BucketSessions, point)
}

// Close flushes pending writes and shuts the client down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, writer := range m.Writers {
		writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			m.Logger.Error().Err(err).Msg("Error closing InfluxDB backup file")
		}
	}
}
