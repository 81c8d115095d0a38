package monitor

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// schedulerLoop runs a cycle immediately and then once per tick. Cycles never
// overlap: ticks that arrive while a cycle runs are dropped and counted.
func (m *Monitor) schedulerLoop() {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.runScheduledCycle(ticker)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C():
			m.runScheduledCycle(ticker)
		}
	}
}

func (m *Monitor) runScheduledCycle(ticker Ticker) {
	summary, err := m.RunCycle(m.ctx)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		log.Errorf("Cycle %s: result store unavailable, %d results not stored", summary.ID, summary.StorageFailures)
	case err != nil:
		log.Errorf("Cycle failed: %v", err)
		return
	}

	if m.ctx.Err() == nil {
		log.WithFields(log.Fields{
			"cycle":       summary.ID,
			"online":      summary.Online,
			"errors":      summary.Errors,
			"duration":    summary.Duration,
			"mean_offset": summary.MeanOffsetMS,
			"jitter":      summary.JitterMS,
		}).Infof("Cycle complete: %d/%d servers online, mean offset %.3f ms, jitter %.3f ms",
			summary.Online, summary.Probed, summary.MeanOffsetMS, summary.JitterMS)
	}

	m.skipMissedTicks(ticker)
}

// skipMissedTicks drains ticks that fired during the cycle that just finished
func (m *Monitor) skipMissedTicks(ticker Ticker) {
	for {
		select {
		case <-ticker.C():
			m.stats.CycleSkipped()
			log.Warningf("Probe cycle overran the %v interval, skipping tick", m.config.Interval)
		default:
			return
		}
	}
}
