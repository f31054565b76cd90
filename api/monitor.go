/*
monitor.go - Overdue payment monitor

PURPOSE:
  Periodically counts payments that are past due and unsettled, and
  publishes the count as the pardna_overdue_payments gauge. Overdue is a
  derived field, so nothing is written; this is observability only.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start
  - Needs a store implementing pardna.OverdueCounter; all bundled stores do

USAGE:
  monitor := api.NewOverdueMonitor(store)
  monitor.Start()
  // ... later
  monitor.Stop()
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pardna/ledger-engine/pardna"
)

// OverdueMonitor refreshes the overdue gauge on a ticker.
type OverdueMonitor struct {
	Counter       pardna.OverdueCounter
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueMonitor creates a monitor checking every 5 minutes.
func NewOverdueMonitor(counter pardna.OverdueCounter) *OverdueMonitor {
	return &OverdueMonitor{
		Counter:       counter,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the monitor.
func (m *OverdueMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled || m.Counter == nil {
		log.Println("[Monitor] Disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	log.Printf("[Monitor] Started with check interval: %v", m.CheckInterval)
}

// Stop stops the monitor and waits for an in-flight check.
func (m *OverdueMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		log.Println("[Monitor] Stopped")
	}
}

func (m *OverdueMonitor) run() {
	defer m.wg.Done()

	m.Check(context.Background())

	for {
		select {
		case <-m.ticker.C:
			m.Check(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Check counts overdue payments once and updates the gauge.
func (m *OverdueMonitor) Check(ctx context.Context) (int, error) {
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	n, err := m.Counter.CountOverdue(ctx, now)
	if err != nil {
		log.Printf("[Monitor] Error counting overdue payments: %v", err)
		return 0, err
	}
	overduePayments.Set(float64(n))
	log.Printf("[Monitor] %d overdue payments at %s", n, now.Format(time.RFC3339))
	return n, nil
}
