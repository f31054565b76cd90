/*
ledger.go - Ledger generation

PURPOSE:
  Turns plan parameters into a LedgerDraft: Duration periods, each with one
  CONTRIBUTION payment per participant. Pure computation. No I/O, no clock,
  no shared state, so it is safe to call from any number of goroutines.

ALGORITHM:
  1. endDate   = AddInterval(startDate, frequency, duration)
  2. bounds    = EnumerateIntervals(startDate, endDate, frequency)
  3. period i  (1..duration) gets payments due on bounds[i]

  So a MONTHLY plan starting 2024-01-01 for 3 periods has payments due
  2024-02-01, 2024-03-01 and 2024-04-01, and ends on 2024-04-01.

DEFAULTS:
  frequency MONTHLY, duration 12, participants none. startDate is required.

EXAMPLE:
  draft, err := pardna.GenerateLedger(pardna.LedgerParams{
      Frequency:    generic.FrequencyWeekly,
      Participants: []pardna.ParticipantInput{{Name: "Ann", Email: "ann@example.com"}},
      StartDate:    start,
  })
*/
package pardna

import (
	"fmt"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// LedgerParams are the inputs of GenerateLedger.
type LedgerParams struct {
	Frequency    generic.Frequency
	Participants []ParticipantInput
	StartDate    time.Time

	// Duration is the number of periods. nil means DefaultDuration.
	Duration *int

	// ContributionAmount is copied onto every contribution payment.
	ContributionAmount decimal.NullDecimal
}

// GenerateLedger builds the full draft ledger for a plan.
// Identical params always produce an identical draft.
func GenerateLedger(params LedgerParams) (LedgerDraft, error) {
	frequency := params.Frequency.OrDefault()
	if !frequency.Valid() {
		return LedgerDraft{}, Validation("unknown frequency %q", params.Frequency)
	}
	if params.StartDate.IsZero() {
		return LedgerDraft{}, Validation("start date is required")
	}
	duration := DefaultDuration
	if params.Duration != nil {
		duration = *params.Duration
	}
	if duration < 0 {
		return LedgerDraft{}, Validation("duration must not be negative, got %d", duration)
	}

	endDate := generic.AddInterval(params.StartDate, frequency, duration)
	periodType := generic.PeriodTypeFor(frequency)
	boundaries := generic.EnumerateIntervals(params.StartDate, endDate, frequency)

	periods := make([]PeriodDraft, 0, duration)
	for i := 1; i <= duration; i++ {
		if i >= len(boundaries) {
			return LedgerDraft{}, fmt.Errorf("%w: period %d of %d, %d boundaries",
				ErrBoundaryUnavailable, i, duration, len(boundaries))
		}
		periods = append(periods, PeriodDraft{
			Type:     periodType,
			Number:   i,
			Payments: contributions(params.Participants, boundaries[i], params.ContributionAmount),
		})
	}

	return LedgerDraft{Frequency: frequency, Periods: periods}, nil
}

func contributions(participants []ParticipantInput, due time.Time, amount decimal.NullDecimal) []PaymentDraft {
	payments := make([]PaymentDraft, 0, len(participants))
	for _, p := range participants {
		payments = append(payments, PaymentDraft{
			Type:        PaymentContribution,
			DueDate:     due,
			Amount:      amount,
			Participant: p.Normalized(),
		})
	}
	return payments
}

// PaymentCount returns the number of payments across all periods.
func (d LedgerDraft) PaymentCount() int {
	n := 0
	for _, p := range d.Periods {
		n += len(p.Payments)
	}
	return n
}
