package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/models"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type mockProber struct {
	mock.Mock
}

func (p *mockProber) Probe(ctx context.Context, server string) (models.Measurement, error) {
	args := p.Called(ctx, server)
	return args.Get(0).(models.Measurement), args.Error(1)
}

type memStore struct {
	mu      sync.Mutex
	results []models.ProbeResult
	fail    error
}

func (s *memStore) Append(_ context.Context, r models.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.results = append(s.results, r)
	return nil
}

func (s *memStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *memStore) byServer() map[string][]models.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]models.ProbeResult{}
	for _, r := range s.results {
		out[r.Server] = append(out[r.Server], r)
	}
	return out
}

func (s *memStore) LatestPerServer(context.Context) ([]models.ProbeResult, error) { return nil, nil }

func (s *memStore) History(context.Context, string, int) ([]models.ProbeResult, error) {
	return nil, nil
}

func (s *memStore) Check(context.Context) error { return nil }

func (s *memStore) Close() error { return nil }

type countingRecorder struct {
	results       atomic.Int32
	cycles        atomic.Int32
	skipped       atomic.Int32
	storageErrors atomic.Int32
}

func (r *countingRecorder) ObserveResult(models.ProbeResult) { r.results.Add(1) }
func (r *countingRecorder) ObserveCycle(time.Duration)       { r.cycles.Add(1) }
func (r *countingRecorder) CycleSkipped()                    { r.skipped.Add(1) }
func (r *countingRecorder) StorageError()                    { r.storageErrors.Add(1) }

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[time.Duration]*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, tickers: map[time.Duration]*fakeTicker{}}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	return c.ticker(d)
}

func (c *fakeClock) ticker(d time.Duration) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tickers[d]
	if !ok {
		t = &fakeTicker{ch: make(chan time.Time, 1)}
		c.tickers[d] = t
	}
	return t
}

func (c *fakeClock) tick(d time.Duration) {
	c.ticker(d).ch <- c.Now()
}

func testConfig(timeout time.Duration, servers ...string) config.Config {
	return config.Config{
		Servers:  servers,
		Interval: time.Minute,
		Timeout:  timeout,
		Workers:  len(servers),
	}
}

var googleMeasurement = models.Measurement{
	OffsetMS:         2.145,
	DelayMS:          12.004,
	RootDelayMS:      0.0,
	RootDispersionMS: 0.015,
	ResponseTimeMS:   0.031,
	PrecisionMS:      0.000954,
	Stratum:          1,
}

func TestRunCycleRecordsOnlineAndTimeout(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "time.google.com").Return(googleMeasurement, nil)
	// ignores its context entirely
	prober.On("Probe", mock.Anything, "time.nplindia.in").
		Run(func(mock.Arguments) { <-hang }).
		Return(models.Measurement{}, nil)

	store := &memStore{}
	m := New(testConfig(100*time.Millisecond, "time.google.com", "time.nplindia.in"), store, prober)

	start := time.Now()
	summary, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)

	require.Equal(t, 2, summary.Probed)
	require.Equal(t, 1, summary.Online)
	require.Equal(t, 1, summary.Errors)
	require.Zero(t, summary.StorageFailures)
	require.NotEmpty(t, summary.ID)

	results := store.byServer()
	require.Len(t, results, 2)

	require.Len(t, results["time.google.com"], 1)
	google := results["time.google.com"][0]
	require.Equal(t, models.StatusOnline, google.Status)
	require.Equal(t, 2.145, google.OffsetMS)
	require.Equal(t, 12.004, google.DelayMS)
	require.Empty(t, google.ErrorDetail)

	require.Len(t, results["time.nplindia.in"], 1)
	india := results["time.nplindia.in"][0]
	require.Equal(t, models.StatusError, india.Status)
	require.Equal(t, "timeout: no response from time.nplindia.in within 100ms", india.ErrorDetail)
}

func TestRunCycleProbeErrors(t *testing.T) {
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").Return(models.Measurement{}, errors.New("read udp: connection refused"))
	prober.On("Probe", mock.Anything, "b.example").Panic("nil response")
	prober.On("Probe", mock.Anything, "c.example").Return(googleMeasurement, nil)

	store := &memStore{}
	m := New(testConfig(time.Second, "a.example", "b.example", "c.example"), store, prober)

	summary, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Online)
	require.Equal(t, 2, summary.Errors)

	results := store.byServer()
	require.Equal(t, "read udp: connection refused", results["a.example"][0].ErrorDetail)
	require.Equal(t, models.StatusError, results["b.example"][0].Status)
	require.Contains(t, results["b.example"][0].ErrorDetail, "nil response")
	require.Equal(t, models.StatusOnline, results["c.example"][0].Status)

	// results keep configured order
	require.Equal(t, "a.example", summary.Results[0].Server)
	require.Equal(t, "b.example", summary.Results[1].Server)
	require.Equal(t, "c.example", summary.Results[2].Server)
}

func TestRunCycleProbesInParallel(t *testing.T) {
	prober := &mockProber{}
	servers := []string{"a.example", "b.example", "c.example", "d.example"}
	for _, s := range servers {
		prober.On("Probe", mock.Anything, s).
			Run(func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }).
			Return(googleMeasurement, nil)
	}

	m := New(testConfig(2*time.Second, servers...), &memStore{}, prober)

	start := time.Now()
	summary, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, summary.Online)
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})

	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").
		Run(func(mock.Arguments) {
			close(started)
			<-gate
		}).
		Return(googleMeasurement, nil).Once()

	store := &memStore{}
	m := New(testConfig(5*time.Second, "a.example"), store, prober)

	done := make(chan error)
	go func() {
		_, err := m.RunCycle(context.Background())
		done <- err
	}()

	<-started
	_, err := m.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleRunning)

	close(gate)
	require.NoError(t, <-done)
	require.Len(t, store.byServer()["a.example"], 1)
}

func TestRunCycleStorageFailureDoesNotHalt(t *testing.T) {
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, mock.Anything).Return(googleMeasurement, nil)

	store := &memStore{}
	store.setFail(errors.New("database is locked"))
	rec := &countingRecorder{}
	m := New(testConfig(time.Second, "a.example", "b.example"), store, prober, WithStats(rec))

	summary, err := m.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, 2, summary.StorageFailures)
	require.Equal(t, 2, summary.Online)
	require.Equal(t, int32(2), rec.storageErrors.Load())

	store.setFail(nil)
	summary, err = m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.StorageFailures)
	require.Len(t, store.byServer(), 2)
	require.Equal(t, int32(2), rec.cycles.Load())
	require.Equal(t, int32(4), rec.results.Load())
}

func TestRunCycleWithoutStore(t *testing.T) {
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").Return(googleMeasurement, nil)

	m := New(testConfig(time.Second, "a.example"), nil, prober)
	summary, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.StorageFailures)
	require.Len(t, summary.Results, 1)
}

func TestRunCycleUsesClock(t *testing.T) {
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").Return(googleMeasurement, nil)

	store := &memStore{}
	m := New(testConfig(time.Second, "a.example"), store, prober, WithClock(newFakeClock(base)))
	summary, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Start.Equal(base))
	require.True(t, store.byServer()["a.example"][0].Timestamp.Equal(base))
}

func TestSchedulerSkipsOverrunTicks(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32

	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").
		Run(func(mock.Arguments) {
			if calls.Add(1) == 1 {
				<-gate
			}
		}).
		Return(googleMeasurement, nil)

	clock := newFakeClock(base)
	rec := &countingRecorder{}
	store := &memStore{}
	cfg := testConfig(5*time.Second, "a.example")
	m := New(cfg, store, prober, WithClock(clock), WithStats(rec))
	require.NoError(t, m.Start())

	// first cycle runs immediately
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// a tick during the running cycle is skipped, not queued
	clock.tick(cfg.Interval)
	close(gate)
	require.Eventually(t, func() bool { return rec.skipped.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	clock.tick(cfg.Interval)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Wait()
	require.Equal(t, int32(1), rec.skipped.Load())
	require.Len(t, store.byServer()["a.example"], 2)
}

func TestStopCancelsInFlightProbe(t *testing.T) {
	started := make(chan struct{})
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, "a.example").
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).Once().
		Return(models.Measurement{}, context.Canceled)

	store := &memStore{}
	m := New(testConfig(time.Minute, "a.example"), store, prober, WithClock(newFakeClock(base)))
	require.NoError(t, m.Start())

	<-started

	m.Stop()
	waited := make(chan struct{})
	go func() {
		m.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	// the interrupted attempt is still recorded
	results := store.byServer()["a.example"]
	require.Len(t, results, 1)
	require.Equal(t, models.StatusError, results[0].Status)
}

func TestSummarize(t *testing.T) {
	s := CycleSummary{
		Results: []models.ProbeResult{
			models.OnlineResult("a", base, models.Measurement{OffsetMS: 1, DelayMS: 10}),
			models.OnlineResult("b", base, models.Measurement{OffsetMS: 2, DelayMS: 12}),
			models.OnlineResult("c", base, models.Measurement{OffsetMS: 6, DelayMS: 14}),
			models.ErrorResult("d", base, "timeout"),
		},
	}
	summarize(&s, make([]error, 4))

	require.Equal(t, 3, s.Online)
	require.Equal(t, 1, s.Errors)
	require.InDelta(t, 3.0, s.MeanOffsetMS, 1e-9)
	require.InDelta(t, 2.0, s.JitterMS, 1e-9)

	single := CycleSummary{
		Results: []models.ProbeResult{
			models.OnlineResult("a", base, models.Measurement{OffsetMS: 4, DelayMS: 10}),
		},
	}
	summarize(&single, []error{errors.New("locked")})
	require.Equal(t, 4.0, single.MeanOffsetMS)
	require.Zero(t, single.JitterMS)
	require.Equal(t, 1, single.StorageFailures)
}
