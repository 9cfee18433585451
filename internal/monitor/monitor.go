package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arwaypoint/engine/internal/cache"
	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/internal/engine"
	"github.com/arwaypoint/engine/internal/influx"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/internal/recorder"
	"github.com/arwaypoint/engine/internal/session"

	"go.opentelemetry.io/otel/metric"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager     *logging.SlogManager
	SessionContext *session.Context
	Engine         *engine.Engine
	Dispatcher     *dispatcher.Dispatcher

	// Queues and Performance are nil when the recording backend keeps
	// no write queues (memory, relay).
	Queues      recorder.QueueReporter
	Performance recorder.PerformanceRecorder

	// Influx is nil when metrics export is disabled.
	Influx *influx.Manager

	// Clients is the sensor socket slot counter shared with the server.
	// May be nil.
	Clients *cache.SafeCounter

	Interval time.Duration
}

// Status is the live gateway state served on /status.
type Status struct {
	Time             time.Time `json:"time"`
	SessionKey       string    `json:"sessionKey,omitempty"`
	SessionActive    bool      `json:"sessionActive"`
	ConnectedClients int       `json:"connectedClients"`

	EngineReady bool    `json:"engineReady"`
	HeadingDeg  float64 `json:"headingDeg"`
	Fixes       uint64  `json:"fixes"`
	Samples     uint64  `json:"samples"`
	Rejected    uint64  `json:"rejected"`
	Waypoints   int     `json:"waypoints"`

	DispatcherQueues map[string]int          `json:"dispatcherQueues,omitempty"`
	WriteQueues      model.WriteQueueLengths `json:"writeQueues"`
	LastWriteMs      float32                 `json:"lastWriteMs"`
	InfluxHealthy    bool                    `json:"influxHealthy"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	// OTEL metrics
	fixes     metric.Int64ObservableCounter
	samples   metric.Int64ObservableCounter
	rejected  metric.Int64ObservableCounter
	waypoints metric.Int64ObservableGauge
	heading   metric.Float64ObservableGauge
}

// NewService creates a new monitor service.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewService(deps Dependencies) (*Service, error) {
	if deps.Interval <= 0 {
		deps.Interval = 1000 * time.Millisecond
	}
	s := &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}

	m := meter()

	var err error

	s.fixes, err = m.Int64ObservableCounter(
		"engine.fixes",
		metric.WithDescription("Total position fixes accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fixes counter: %w", err)
	}

	s.samples, err = m.Int64ObservableCounter(
		"engine.samples",
		metric.WithDescription("Total orientation samples accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating samples counter: %w", err)
	}

	s.rejected, err = m.Int64ObservableCounter(
		"engine.rejected",
		metric.WithDescription("Total sensor payloads rejected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	s.waypoints, err = m.Int64ObservableGauge(
		"engine.waypoints",
		metric.WithDescription("Waypoints currently tracked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating waypoints gauge: %w", err)
	}

	s.heading, err = m.Float64ObservableGauge(
		"engine.heading.degrees",
		metric.WithDescription("Smoothed compass heading"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating heading gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			es := s.deps.Engine.Snapshot()
			o.ObserveInt64(s.fixes, int64(es.Fixes))
			o.ObserveInt64(s.samples, int64(es.Samples))
			o.ObserveInt64(s.rejected, int64(es.Rejected))
			o.ObserveInt64(s.waypoints, int64(es.Waypoints))
			o.ObserveFloat64(s.heading, es.HeadingDeg)
			return nil
		},
		s.fixes, s.samples, s.rejected, s.waypoints, s.heading,
	)
	if err != nil {
		return nil, fmt.Errorf("registering engine callback: %w", err)
	}

	return s, nil
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current gateway status
func (s *Service) Status() Status {
	es := s.deps.Engine.Snapshot()

	st := Status{
		Time:        time.Now(),
		EngineReady: es.Ready,
		HeadingDeg:  es.HeadingDeg,
		Fixes:       es.Fixes,
		Samples:     es.Samples,
		Rejected:    es.Rejected,
		Waypoints:   es.Waypoints,
	}

	if sess, active := s.deps.SessionContext.Current(); active {
		st.SessionKey = sess.SessionKey
		st.SessionActive = true
	}

	if s.deps.Clients != nil {
		st.ConnectedClients = s.deps.Clients.Value()
	}

	if s.deps.Dispatcher != nil {
		st.DispatcherQueues = s.deps.Dispatcher.QueueDepths()
	}

	if s.deps.Queues != nil {
		st.WriteQueues = s.deps.Queues.QueueLengths()
		st.LastWriteMs = float32(s.deps.Queues.LastWriteDuration().Milliseconds())
	}

	if s.deps.Influx != nil {
		st.InfluxHealthy = s.deps.Influx.Healthy()
	}

	return st
}

// perfModel converts a status snapshot into the persisted performance row
func perfModel(st Status) model.EnginePerformance {
	return model.EnginePerformance{
		Time: st.Time,
		Counters: model.EngineCounters{
			Fixes:     uint32(st.Fixes),
			Samples:   uint32(st.Samples),
			Rejected:  uint32(st.Rejected),
			Waypoints: uint16(st.Waypoints),
		},
		WriteQueueLengths:   st.WriteQueues,
		LastWriteDurationMs: st.LastWriteMs,
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(s.deps.Interval)

				sess, active := s.deps.SessionContext.Current()
				if !active {
					continue
				}

				st := s.Status()

				logger.Debug("Gateway status",
					"session", st.SessionKey,
					"fixes", st.Fixes,
					"samples", st.Samples,
					"rejected", st.Rejected,
					"waypoints", st.Waypoints,
					"trackQueue", st.WriteQueues.TrackPoints,
					"projectionQueue", st.WriteQueues.Projections,
					"lastWriteMs", st.LastWriteMs,
				)

				perf := perfModel(st)

				if s.deps.Performance != nil {
					if err := s.deps.Performance.RecordPerformance(perf); err != nil {
						logger.Error("Error recording performance snapshot", "error", err)
					}
				}

				if s.deps.Influx != nil {
					if err := s.deps.Influx.WriteEnginePerformance(context.Background(), sess.SessionKey, perf); err != nil {
						logger.Error("Error writing performance to InfluxDB", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
