package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eclesh/welford"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ntp-monitor/internal/models"
)

var (
	// ErrCycleRunning is returned when RunCycle is called while a cycle is in progress
	ErrCycleRunning = errors.New("probe cycle already running")
	// ErrStoreUnavailable is returned when no result of a cycle could be stored
	ErrStoreUnavailable = errors.New("result store unavailable")
)

// CycleSummary describes one completed probe cycle
type CycleSummary struct {
	ID              string
	Start           time.Time
	Duration        time.Duration
	Probed          int
	Online          int
	Errors          int
	StorageFailures int
	MeanOffsetMS    float64
	JitterMS        float64
	Results         []models.ProbeResult
}

// RunCycle probes every configured server once, in parallel, and records one
// result per server. It returns after every probe has finished or timed out.
func (m *Monitor) RunCycle(ctx context.Context) (CycleSummary, error) {
	if !m.running.CompareAndSwap(false, true) {
		return CycleSummary{}, ErrCycleRunning
	}
	defer m.running.Store(false)

	servers := m.config.Servers
	summary := CycleSummary{
		ID:      uuid.NewString(),
		Start:   m.clock.Now(),
		Probed:  len(servers),
		Results: make([]models.ProbeResult, len(servers)),
	}
	storeErrs := make([]error, len(servers))

	var eg errgroup.Group
	workers := m.config.Workers
	if workers <= 0 {
		workers = len(servers)
	}
	if workers > 0 {
		eg.SetLimit(workers)
	}

	for i, server := range servers {
		i, server := i, server
		eg.Go(func() error {
			result := m.probe(ctx, server)
			summary.Results[i] = result
			m.stats.ObserveResult(result)

			if m.store == nil {
				return nil
			}
			// a finished observation is still recorded during shutdown
			if err := m.store.Append(context.WithoutCancel(ctx), result); err != nil {
				log.Warningf("Failed to store result for %s: %v", server, err)
				m.stats.StorageError()
				storeErrs[i] = err
			}
			return nil
		})
	}
	_ = eg.Wait()

	summary.Duration = m.clock.Now().Sub(summary.Start)
	summarize(&summary, storeErrs)
	m.stats.ObserveCycle(summary.Duration)

	if m.store != nil && summary.Probed > 0 && summary.StorageFailures == summary.Probed {
		return summary, ErrStoreUnavailable
	}
	return summary, nil
}

// probe runs a single probe under the per-probe timeout and always yields a result
func (m *Monitor) probe(ctx context.Context, server string) models.ProbeResult {
	pctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	type outcome struct {
		measurement models.Measurement
		err         error
	}
	// buffered so an abandoned probe can still finish and exit
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("probe panic: %v", r)}
			}
		}()
		measurement, err := m.prober.Probe(pctx, server)
		done <- outcome{measurement: measurement, err: err}
	}()

	select {
	case o := <-done:
		now := m.clock.Now()
		if o.err != nil {
			if errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return models.ErrorResult(server, now, m.timeoutDetail(server))
			}
			log.Warningf("Probe of %s failed: %v", server, o.err)
			return models.ErrorResult(server, now, o.err.Error())
		}
		return models.OnlineResult(server, now, o.measurement)
	case <-pctx.Done():
		now := m.clock.Now()
		if err := ctx.Err(); err != nil {
			return models.ErrorResult(server, now, fmt.Sprintf("cancelled: %v", err))
		}
		log.Warningf("Probe of %s timed out after %v", server, m.config.Timeout)
		return models.ErrorResult(server, now, m.timeoutDetail(server))
	}
}

func (m *Monitor) timeoutDetail(server string) string {
	return fmt.Sprintf("timeout: no response from %s within %v", server, m.config.Timeout)
}

// summarize fills the counters, mean offset and jitter; jitter is the sample
// standard deviation of delay across online servers
func summarize(s *CycleSummary, storeErrs []error) {
	offsets := welford.New()
	delays := welford.New()
	for i, r := range s.Results {
		if storeErrs[i] != nil {
			s.StorageFailures++
		}
		if !r.Online() {
			s.Errors++
			continue
		}
		s.Online++
		offsets.Add(r.OffsetMS)
		delays.Add(r.DelayMS)
	}
	if s.Online > 0 {
		s.MeanOffsetMS = offsets.Mean()
	}
	if s.Online > 1 {
		s.JitterMS = delays.Stddev()
	}
}
