package pardna_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

func people(emails ...string) []pardna.ParticipantInput {
	out := make([]pardna.ParticipantInput, 0, len(emails))
	for _, e := range emails {
		out = append(out, pardna.ParticipantInput{Name: e, Email: e + "@example.com"})
	}
	return out
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerateLedger_MonthlyTwoParticipants(t *testing.T) {
	// GIVEN: MONTHLY, [p1, p2], start 2024-01-01, duration 3
	// WHEN: Generating the ledger
	// THEN: 3 periods numbered 1..3, each with 2 CONTRIBUTION payments,
	//       due one month apart starting a month after the start date

	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Frequency:    generic.FrequencyMonthly,
		Participants: people("p1", "p2"),
		StartDate:    day(2024, time.January, 1),
		Duration:     intPtr(3),
	})
	require.NoError(t, err)

	assert.Equal(t, generic.FrequencyMonthly, draft.Frequency)
	require.Len(t, draft.Periods, 3)
	wantDue := []time.Time{day(2024, time.February, 1), day(2024, time.March, 1), day(2024, time.April, 1)}
	for i, period := range draft.Periods {
		assert.Equal(t, i+1, period.Number)
		assert.Equal(t, generic.PeriodMonth, period.Type)
		require.Len(t, period.Payments, 2)
		for _, payment := range period.Payments {
			assert.Equal(t, pardna.PaymentContribution, payment.Type)
			assert.Equal(t, wantDue[i], payment.DueDate)
		}
		assert.Equal(t, "p1@example.com", period.Payments[0].Participant.Email)
		assert.Equal(t, "p2@example.com", period.Payments[1].Participant.Email)
	}
	assert.Equal(t, 6, draft.PaymentCount())
}

func TestGenerateLedger_WeeklyNoParticipants(t *testing.T) {
	// GIVEN: WEEKLY, no participants, duration 4
	// THEN: 4 WEEK periods with zero payments

	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Frequency: generic.FrequencyWeekly,
		StartDate: day(2024, time.January, 1),
		Duration:  intPtr(4),
	})
	require.NoError(t, err)

	require.Len(t, draft.Periods, 4)
	for i, period := range draft.Periods {
		assert.Equal(t, i+1, period.Number)
		assert.Equal(t, generic.PeriodWeek, period.Type)
		assert.Empty(t, period.Payments)
	}
	assert.Zero(t, draft.PaymentCount())
}

func TestGenerateLedger_Defaults(t *testing.T) {
	// No frequency, no duration: MONTHLY for 12 periods
	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Participants: people("a"),
		StartDate:    day(2024, time.January, 15),
	})
	require.NoError(t, err)

	assert.Equal(t, generic.FrequencyMonthly, draft.Frequency)
	require.Len(t, draft.Periods, pardna.DefaultDuration)
	last := draft.Periods[len(draft.Periods)-1]
	assert.Equal(t, 12, last.Number)
	assert.Equal(t, day(2025, time.January, 15), last.Payments[0].DueDate)
}

func TestGenerateLedger_PaymentCountIsParticipantsTimesDuration(t *testing.T) {
	for _, f := range []generic.Frequency{generic.FrequencyDaily, generic.FrequencyWeekly, generic.FrequencyMonthly} {
		for _, n := range []int{1, 3, 12} {
			draft, err := pardna.GenerateLedger(pardna.LedgerParams{
				Frequency:    f,
				Participants: people("a", "b", "c"),
				StartDate:    day(2024, time.January, 31),
				Duration:     intPtr(n),
			})
			require.NoError(t, err)
			assert.Equal(t, 3*n, draft.PaymentCount(), "%s x %d", f, n)
			assert.Len(t, draft.Periods, n)
		}
	}
}

func TestGenerateLedger_ZeroDuration(t *testing.T) {
	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Participants: people("a"),
		StartDate:    day(2024, time.January, 1),
		Duration:     intPtr(0),
	})
	require.NoError(t, err)
	assert.Empty(t, draft.Periods)
}

func TestGenerateLedger_Deterministic(t *testing.T) {
	params := pardna.LedgerParams{
		Frequency:          generic.FrequencyDaily,
		Participants:       people("a", "b"),
		StartDate:          day(2024, time.February, 27),
		Duration:           intPtr(5),
		ContributionAmount: generic.MustAmount("50"),
	}

	first, err := pardna.GenerateLedger(params)
	require.NoError(t, err)
	second, err := pardna.GenerateLedger(params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateLedger_CopiesContributionAmount(t *testing.T) {
	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Participants:       people("a"),
		StartDate:          day(2024, time.January, 1),
		Duration:           intPtr(2),
		ContributionAmount: generic.MustAmount("25.00"),
	})
	require.NoError(t, err)

	for _, period := range draft.Periods {
		assert.Equal(t, "25", generic.FormatAmount(period.Payments[0].Amount))
	}
}

func TestGenerateLedger_NormalizesParticipants(t *testing.T) {
	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Participants: []pardna.ParticipantInput{{Name: "  Ann ", Email: " Ann@Example.COM "}},
		StartDate:    day(2024, time.January, 1),
		Duration:     intPtr(1),
	})
	require.NoError(t, err)

	assert.Equal(t, pardna.ParticipantInput{Name: "Ann", Email: "ann@example.com"}, draft.Periods[0].Payments[0].Participant)
}

func TestGenerateLedger_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		params pardna.LedgerParams
	}{
		{"missing start date", pardna.LedgerParams{}},
		{"negative duration", pardna.LedgerParams{StartDate: day(2024, time.January, 1), Duration: intPtr(-1)}},
		{"unknown frequency", pardna.LedgerParams{StartDate: day(2024, time.January, 1), Frequency: "HOURLY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pardna.GenerateLedger(tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pardna.ErrValidation))
			assert.False(t, errors.Is(err, pardna.ErrBoundaryUnavailable))
		})
	}
}

func TestGenerateLedger_EndOfMonthStart(t *testing.T) {
	// GIVEN: A monthly plan starting 2024-01-31
	// THEN: Payments clamp to month ends without drifting

	draft, err := pardna.GenerateLedger(pardna.LedgerParams{
		Participants: people("a"),
		StartDate:    day(2024, time.January, 31),
		Duration:     intPtr(3),
	})
	require.NoError(t, err)

	var due []time.Time
	for _, p := range draft.Periods {
		due = append(due, p.Payments[0].DueDate)
	}
	assert.Equal(t, []time.Time{day(2024, time.February, 29), day(2024, time.March, 31), day(2024, time.April, 30)}, due)
}
