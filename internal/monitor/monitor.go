package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/models"
)

// Recorder receives scheduler events for metrics
type Recorder interface {
	ObserveResult(result models.ProbeResult)
	ObserveCycle(d time.Duration)
	CycleSkipped()
	StorageError()
}

type nopRecorder struct{}

func (nopRecorder) ObserveResult(models.ProbeResult) {}
func (nopRecorder) ObserveCycle(time.Duration)       {}
func (nopRecorder) CycleSkipped()                    {}
func (nopRecorder) StorageError()                    {}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithStats reports scheduler events to r
func WithStats(r Recorder) Option {
	return func(m *Monitor) {
		m.stats = r
	}
}

// Monitor coordinates NTP probe cycles
type Monitor struct {
	config  config.Config
	store   models.Store
	prober  models.Prober
	clock   Clock
	stats   Recorder
	running atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new Monitor. A nil store runs cycles without persisting them.
func New(cfg config.Config, store models.Store, prober models.Prober, opts ...Option) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		config: cfg,
		store:  store,
		prober: prober,
		clock:  realClock{},
		stats:  nopRecorder{},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the monitoring process
func (m *Monitor) Start() error {
	log.Infof("Starting monitor with %d servers", len(m.config.Servers))

	m.wg.Add(1)
	go m.schedulerLoop()

	if _, ok := m.store.(maintainer); ok {
		m.wg.Add(1)
		go m.maintenanceWorker()
	}

	log.Infof("Monitor started. Probing %v every %v", m.config.Servers, m.config.Interval)
	return nil
}

// Stop cancels the running cycle and the scheduler loop
func (m *Monitor) Stop() {
	log.Info("Stopping monitor...")
	m.cancel()
}

// Wait blocks until all goroutines finish
func (m *Monitor) Wait() {
	m.wg.Wait()
	log.Info("Monitor stopped")
}
