package monitor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// maintenanceInterval is how often hourly roll-ups are refreshed
const maintenanceInterval = time.Hour

type maintainer interface {
	AggregateHourlyStats(ctx context.Context) error
}

// maintenanceWorker runs periodic maintenance tasks
func (m *Monitor) maintenanceWorker() {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	// Run immediately on start
	m.performMaintenance()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C():
			m.performMaintenance()
		}
	}
}

// performMaintenance refreshes the hourly roll-ups; raw results are never removed
func (m *Monitor) performMaintenance() {
	mt, ok := m.store.(maintainer)
	if !ok {
		return
	}

	log.Debug("Running maintenance tasks...")
	if err := mt.AggregateHourlyStats(m.ctx); err != nil {
		if m.ctx.Err() == nil {
			log.Warningf("Failed to aggregate hourly stats: %v", err)
		}
		return
	}
	log.Debug("Maintenance complete")
}
