package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
	"github.com/pardna/ledger-engine/store/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCounter records how often it was asked.
type countingCounter struct {
	calls atomic.Int32
	n     int
	err   error
}

func (c *countingCounter) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func TestOverdueMonitor_Check(t *testing.T) {
	// GIVEN: A plan with payments due 2024-02-01, 2024-03-01, 2024-04-01
	// WHEN: Checking on 2024-03-15
	// THEN: Four payments are overdue and the gauge says so

	store := memory.New()
	manager := pardna.NewManager(store)
	manager.Now = func() time.Time { return day(2023, time.December, 1) }
	duration := 3
	_, err := manager.CreatePlanLedger(context.Background(), pardna.CreatePlanRequest{
		BankerID:  testBanker,
		Name:      "Monitored",
		Frequency: generic.FrequencyMonthly,
		Participants: []pardna.ParticipantInput{
			{Name: "A", Email: "a@example.com"},
			{Name: "B", Email: "b@example.com"},
		},
		StartDate: day(2024, time.January, 1),
		Duration:  &duration,
	})
	require.NoError(t, err)

	monitor := NewOverdueMonitor(store)
	monitor.Now = func() time.Time { return day(2024, time.March, 15) }

	n, err := monitor.Check(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, float64(4), testutil.ToFloat64(overduePayments))
}

func TestOverdueMonitor_CheckError(t *testing.T) {
	overduePayments.Set(3)
	monitor := NewOverdueMonitor(&countingCounter{err: errors.New("db down")})

	_, err := monitor.Check(context.Background())

	assert.Error(t, err)
	assert.Equal(t, float64(3), testutil.ToFloat64(overduePayments), "gauge keeps the last good value")
}

func TestOverdueMonitor_StartStop(t *testing.T) {
	counter := &countingCounter{n: 2}
	monitor := NewOverdueMonitor(counter)
	monitor.CheckInterval = 5 * time.Millisecond

	monitor.Start()
	assert.Eventually(t, func() bool { return counter.calls.Load() >= 3 }, time.Second, time.Millisecond)
	monitor.Stop()

	stopped := counter.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, counter.calls.Load(), "no checks after Stop")

	// Restartable
	monitor.Start()
	assert.Eventually(t, func() bool { return counter.calls.Load() > stopped }, time.Second, time.Millisecond)
	monitor.Stop()
	monitor.Stop()
}

func TestOverdueMonitor_Disabled(t *testing.T) {
	counter := &countingCounter{}
	monitor := NewOverdueMonitor(counter)
	monitor.Enabled = false
	monitor.CheckInterval = time.Millisecond

	monitor.Start()
	time.Sleep(10 * time.Millisecond)
	monitor.Stop()

	assert.Zero(t, counter.calls.Load())
}
