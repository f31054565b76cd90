// Package storetest is a conformance suite run against every pardna.TxStore.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) pardna.TxStore

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("PlanRoundTrip", func(t *testing.T) { testPlanRoundTrip(t, newStore(t)) })
	t.Run("GetPlanNotFound", func(t *testing.T) { testGetPlanNotFound(t, newStore(t)) })
	t.Run("LedgerConnectOrCreate", func(t *testing.T) { testConnectOrCreate(t, newStore(t)) })
	t.Run("DeletePlanCascades", func(t *testing.T) { testDeletePlanCascades(t, newStore(t)) })
	t.Run("DeleteLedgerCascades", func(t *testing.T) { testDeleteLedgerCascades(t, newStore(t)) })
	t.Run("RemoveParticipantCascades", func(t *testing.T) { testRemoveParticipantCascades(t, newStore(t)) })
	t.Run("DuplicateParticipant", func(t *testing.T) { testDuplicateParticipant(t, newStore(t)) })
	t.Run("UpdatePlanVersion", func(t *testing.T) { testUpdatePlanVersion(t, newStore(t)) })
	t.Run("SettlePayment", func(t *testing.T) { testSettlePayment(t, newStore(t)) })
	t.Run("WithTxRollback", func(t *testing.T) { testWithTxRollback(t, newStore(t)) })
	t.Run("CountOverdue", func(t *testing.T) { testCountOverdue(t, newStore(t)) })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newPlan(bankerID string) *pardna.Plan {
	created := day(2023, time.December, 1)
	return &pardna.Plan{
		Name:               "Test plan",
		BankerID:           bankerID,
		ContributionAmount: generic.MustAmount("100.50"),
		StartDate:          day(2024, time.January, 1),
		Duration:           2,
		Version:            1,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func draft(emails ...string) pardna.LedgerDraft {
	d, err := pardna.GenerateLedger(pardna.LedgerParams{
		Frequency:          generic.FrequencyMonthly,
		Participants:       inputs(emails...),
		StartDate:          day(2024, time.January, 1),
		Duration:           intPtr(2),
		ContributionAmount: generic.MustAmount("100.50"),
	})
	if err != nil {
		panic(err)
	}
	d.CreatedAt = time.Date(2023, time.December, 1, 9, 30, 0, 0, time.UTC)
	return d
}

func inputs(emails ...string) []pardna.ParticipantInput {
	out := make([]pardna.ParticipantInput, 0, len(emails))
	for _, e := range emails {
		out = append(out, pardna.ParticipantInput{Name: e, Email: e + "@example.com"})
	}
	return out
}

func intPtr(n int) *int { return &n }

// seed creates a plan with participants and a ledger.
func seed(t *testing.T, s pardna.TxStore, emails ...string) *pardna.Plan {
	t.Helper()
	ctx := context.Background()
	plan := newPlan("banker-1")
	require.NoError(t, s.CreatePlan(ctx, plan))
	_, err := s.AddParticipants(ctx, plan.ID, inputs(emails...))
	require.NoError(t, err)
	_, err = s.CreateLedger(ctx, plan.ID, draft(emails...))
	require.NoError(t, err)

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	return loaded
}

// =============================================================================
// TESTS
// =============================================================================

func testPlanRoundTrip(t *testing.T, s pardna.TxStore) {
	plan := seed(t, s, "a", "b")

	assert.Equal(t, "Test plan", plan.Name)
	assert.Equal(t, "banker-1", plan.BankerID)
	assert.Equal(t, "100.5", generic.FormatAmount(plan.ContributionAmount))
	assert.False(t, plan.BankerFee.Valid)
	assert.True(t, day(2024, time.January, 1).Equal(plan.StartDate))
	assert.Equal(t, 2, plan.Duration)
	assert.Equal(t, 1, plan.Version)

	require.Len(t, plan.Participants, 2)
	assert.Equal(t, "a@example.com", plan.Participants[0].Email)
	assert.Equal(t, "b@example.com", plan.Participants[1].Email)

	require.NotNil(t, plan.Ledger)
	assert.Equal(t, generic.FrequencyMonthly, plan.Ledger.Frequency)
	assert.True(t, time.Date(2023, time.December, 1, 9, 30, 0, 0, time.UTC).Equal(plan.Ledger.CreatedAt),
		"ledger created_at comes from the draft: %v", plan.Ledger.CreatedAt)
	require.Len(t, plan.Ledger.Periods, 2)
	for i, period := range plan.Ledger.Periods {
		assert.Equal(t, i+1, period.Number)
		assert.Equal(t, generic.PeriodMonth, period.Type)
		require.Len(t, period.Payments, 2)
		assert.Equal(t, plan.Participants[0].ID, period.Payments[0].ParticipantID)
		assert.Equal(t, plan.Participants[1].ID, period.Payments[1].ParticipantID)
	}
	first := plan.Ledger.Periods[0].Payments[0]
	assert.Equal(t, pardna.PaymentContribution, first.Type)
	assert.True(t, day(2024, time.February, 1).Equal(first.DueDate))
	assert.Equal(t, "100.5", generic.FormatAmount(first.Amount))
	assert.Equal(t, plan.ID, first.PlanID)
	assert.False(t, first.Settled)

	plans, err := s.ListPlans(context.Background(), "banker-1")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, plan.ID, plans[0].ID)
	assert.Equal(t, 4, plans[0].Ledger.PaymentCount())

	other, err := s.ListPlans(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testGetPlanNotFound(t *testing.T, s pardna.TxStore) {
	_, err := s.GetPlan(context.Background(), "missing")
	var nf *pardna.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "plan", nf.Kind)

	_, err = s.GetPayment(context.Background(), "missing")
	assert.True(t, pardna.IsNotFound(err))
}

func testConnectOrCreate(t *testing.T, s pardna.TxStore) {
	// GIVEN: A plan with participant a only
	// WHEN: Creating a ledger whose payments reference a and c
	// THEN: a is reused and c is created

	ctx := context.Background()
	plan := newPlan("banker-1")
	require.NoError(t, s.CreatePlan(ctx, plan))
	added, err := s.AddParticipants(ctx, plan.ID, inputs("a"))
	require.NoError(t, err)

	_, err = s.CreateLedger(ctx, plan.ID, draft("a", "c"))
	require.NoError(t, err)

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Participants, 2)
	assert.Equal(t, added[0].ID, loaded.Participants[0].ID)
	assert.Equal(t, "c@example.com", loaded.Participants[1].Email)

	_, err = s.CreateLedger(ctx, plan.ID, draft("a"))
	assert.Error(t, err, "a plan has at most one ledger")
}

func testDeletePlanCascades(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a")
	paymentID := plan.Ledger.Periods[0].Payments[0].ID

	require.NoError(t, s.DeletePlan(ctx, plan.ID))

	_, err := s.GetPlan(ctx, plan.ID)
	assert.True(t, pardna.IsNotFound(err))
	_, err = s.GetPayment(ctx, paymentID)
	assert.True(t, pardna.IsNotFound(err))
	assert.True(t, pardna.IsNotFound(s.DeletePlan(ctx, plan.ID)))
}

func testDeleteLedgerCascades(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a", "b")
	paymentID := plan.Ledger.Periods[1].Payments[1].ID

	require.NoError(t, s.DeleteLedger(ctx, plan.Ledger.ID))

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Ledger)
	assert.Len(t, loaded.Participants, 2, "participants outlive the ledger")
	_, err = s.GetPayment(ctx, paymentID)
	assert.True(t, pardna.IsNotFound(err))
	assert.True(t, pardna.IsNotFound(s.DeleteLedger(ctx, plan.Ledger.ID)))
}

func testRemoveParticipantCascades(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a", "b")

	require.NoError(t, s.RemoveParticipants(ctx, plan.ID, []pardna.ParticipantID{plan.Participants[1].ID}))

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Participants, 1)
	assert.Equal(t, 2, loaded.Ledger.PaymentCount())
	for _, p := range loaded.Ledger.Payments() {
		assert.Equal(t, plan.Participants[0].ID, p.ParticipantID)
	}

	err = s.RemoveParticipants(ctx, plan.ID, []pardna.ParticipantID{"missing"})
	assert.True(t, pardna.IsNotFound(err))
}

func testDuplicateParticipant(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a")

	_, err := s.AddParticipants(ctx, plan.ID, []pardna.ParticipantInput{{Name: "A", Email: "A@example.com"}})
	assert.True(t, errors.Is(err, pardna.ErrValidation))

	// The same email in another plan is fine
	other := newPlan("banker-1")
	require.NoError(t, s.CreatePlan(ctx, other))
	_, err = s.AddParticipants(ctx, other.ID, inputs("a"))
	assert.NoError(t, err)
}

func testUpdatePlanVersion(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a")

	plan.Name = "Renamed"
	plan.BankerFee = generic.MustAmount("5")
	plan.Version = 2
	require.NoError(t, s.UpdatePlan(ctx, plan))

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, "5", generic.FormatAmount(loaded.BankerFee))
	assert.Equal(t, 2, loaded.Version)

	// Writing version 2 again is stale
	plan.Name = "Again"
	err = s.UpdatePlan(ctx, plan)
	var conflict *pardna.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Actual)

	missing := newPlan("banker-1")
	missing.ID = "missing"
	missing.Version = 2
	assert.True(t, pardna.IsNotFound(s.UpdatePlan(ctx, missing)))
}

func testSettlePayment(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a")
	payment, err := s.GetPayment(ctx, plan.Ledger.Periods[0].Payments[0].ID)
	require.NoError(t, err)

	payment.SetSettled(true, day(2024, time.February, 3))
	require.NoError(t, s.UpdatePayment(ctx, payment))

	loaded, err := s.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Settled)
	require.NotNil(t, loaded.SettledDate)
	assert.True(t, day(2024, time.February, 3).Equal(*loaded.SettledDate))

	loaded.SetSettled(false, time.Time{})
	require.NoError(t, s.UpdatePayment(ctx, loaded))
	again, err := s.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.False(t, again.Settled)
	assert.Nil(t, again.SettledDate)
}

func testWithTxRollback(t *testing.T, s pardna.TxStore) {
	ctx := context.Background()
	plan := seed(t, s, "a")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx pardna.Store) error {
		if err := tx.DeleteLedger(ctx, plan.Ledger.ID); err != nil {
			return err
		}
		if _, err := tx.AddParticipants(ctx, plan.ID, inputs("z")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Ledger)
	assert.Equal(t, plan.Ledger.ID, loaded.Ledger.ID)
	assert.Len(t, loaded.Participants, 1)

	// Committed work is visible afterwards
	err = s.WithTx(ctx, func(tx pardna.Store) error {
		return tx.DeleteLedger(ctx, plan.Ledger.ID)
	})
	require.NoError(t, err)
	loaded, err = s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Ledger)
}

func testCountOverdue(t *testing.T, s pardna.TxStore) {
	counter, ok := s.(pardna.OverdueCounter)
	if !ok {
		t.Skip("store does not count overdue payments")
	}
	ctx := context.Background()
	plan := seed(t, s, "a", "b")

	// Payments due 2024-02-01 and 2024-03-01, two each
	n, err := counter.CountOverdue(ctx, day(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = counter.CountOverdue(ctx, day(2024, time.February, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	payment := plan.Ledger.Periods[0].Payments[0]
	payment.SetSettled(true, day(2024, time.February, 2))
	require.NoError(t, s.UpdatePayment(ctx, &payment))

	n, err = counter.CountOverdue(ctx, day(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
