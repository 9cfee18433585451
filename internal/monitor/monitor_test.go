package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/arwaypoint/engine/internal/engine"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/model"
	"github.com/arwaypoint/engine/internal/session"
	"github.com/arwaypoint/engine/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueues struct {
	lengths  model.WriteQueueLengths
	duration time.Duration
}

func (f *fakeQueues) QueueLengths() model.WriteQueueLengths { return f.lengths }
func (f *fakeQueues) LastWriteDuration() time.Duration      { return f.duration }

type fakePerformance struct {
	mu    sync.Mutex
	perfs []model.EnginePerformance
}

func (f *fakePerformance) RecordPerformance(perf model.EnginePerformance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perfs = append(f.perfs, perf)
	return nil
}

func (f *fakePerformance) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.perfs)
}

func (f *fakePerformance) last() model.EnginePerformance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perfs[len(f.perfs)-1]
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestStatusSnapshot(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.SetTarget(core.GeoPoint{Latitude: 40.0, Longitude: -74.0}))

	_, err := e.OnPositionFix(core.GeoPoint{Latitude: 40.001, Longitude: -74.001})
	require.NoError(t, err)
	_, err = e.OnOrientationSample(core.OrientationSample{
		CompassHeading:    90,
		HasCompassHeading: true,
		CapturedAt:        time.Now(),
	})
	require.NoError(t, err)

	sc := session.NewContext()
	sc.Begin(&model.Session{SessionKey: "abc-123", Label: "harbor loop"})

	queues := &fakeQueues{
		lengths:  model.WriteQueueLengths{TrackPoints: 4, Projections: 9},
		duration: 15 * time.Millisecond,
	}

	svc, err := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		SessionContext: sc,
		Engine:         e,
		Queues:         queues,
	})
	require.NoError(t, err)

	st := svc.Status()

	assert.True(t, st.SessionActive)
	assert.Equal(t, "abc-123", st.SessionKey)
	assert.True(t, st.EngineReady)
	assert.Equal(t, uint64(1), st.Fixes)
	assert.Equal(t, uint64(1), st.Samples)
	assert.Equal(t, 1, st.Waypoints)
	assert.Equal(t, uint16(4), st.WriteQueues.TrackPoints)
	assert.Equal(t, uint16(9), st.WriteQueues.Projections)
	assert.Equal(t, float32(15), st.LastWriteMs)
	assert.False(t, st.InfluxHealthy)
}

func TestStatusNoSession(t *testing.T) {
	svc, err := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		SessionContext: session.NewContext(),
		Engine:         testEngine(t),
	})
	require.NoError(t, err)

	st := svc.Status()

	assert.False(t, st.SessionActive)
	assert.Empty(t, st.SessionKey)
	assert.False(t, st.EngineReady)
	assert.Zero(t, st.WriteQueues.TrackPoints)
}

func TestStartRecordsPerformance(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.SetTarget(core.GeoPoint{Latitude: 51.5, Longitude: -0.12}))
	_, err := e.OnPositionFix(core.GeoPoint{Latitude: 51.501, Longitude: -0.121})
	require.NoError(t, err)

	sc := session.NewContext()
	sc.Begin(&model.Session{SessionKey: "44444444-5555-6666-7777-888888888888"})

	perf := &fakePerformance{}

	svc, err := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		SessionContext: sc,
		Engine:         e,
		Queues:         &fakeQueues{lengths: model.WriteQueueLengths{TrackPoints: 2}},
		Performance:    perf,
		Interval:       10 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return perf.count() >= 2
	}, 5*time.Second, 10*time.Millisecond, "expected periodic performance snapshots")

	assert.True(t, svc.IsRunning())

	got := perf.last()
	assert.Equal(t, uint32(1), got.Counters.Fixes)
	assert.Equal(t, uint16(1), got.Counters.Waypoints)
	assert.Equal(t, uint16(2), got.WriteQueueLengths.TrackPoints)
	assert.False(t, got.Time.IsZero())
}

func TestStartSkipsWithoutSession(t *testing.T) {
	perf := &fakePerformance{}

	svc, err := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		SessionContext: session.NewContext(),
		Engine:         testEngine(t),
		Performance:    perf,
		Interval:       5 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	time.Sleep(50 * time.Millisecond)
	svc.Stop()

	assert.Zero(t, perf.count())
}

func TestStartStopLifecycle(t *testing.T) {
	svc, err := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		SessionContext: session.NewContext(),
		Engine:         testEngine(t),
		Interval:       5 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.False(t, svc.IsRunning())

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	// Second Start while running is a no-op.
	require.NoError(t, svc.Start())

	svc.Stop()
	require.Eventually(t, func() bool {
		return !svc.IsRunning()
	}, 5*time.Second, 5*time.Millisecond, "monitor goroutine should exit after Stop")
}
