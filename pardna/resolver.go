package pardna

import (
	"time"

	"github.com/pardna/ledger-engine/generic"
)

// =============================================================================
// DERIVED FIELDS - Computed on read, never stored
// =============================================================================

// Frequency is the frequency of the current ledger, empty when there is
// no ledger or it predates stored frequencies.
func (p Plan) Frequency() generic.Frequency {
	if p.Ledger == nil {
		return ""
	}
	return p.Ledger.Frequency
}

// EndDate is StartDate plus Duration units of the ledger's frequency.
// Ledgers without a recorded frequency are treated as MONTHLY.
func (p Plan) EndDate() time.Time {
	return generic.AddInterval(p.StartDate, p.Frequency().OrDefault(), p.Duration)
}

// HasStarted reports whether the start date is before now.
func (p Plan) HasStarted(now time.Time) bool {
	return p.StartDate.Before(now)
}

// ParticipantByEmail looks a participant up by normalised email.
func (p Plan) ParticipantByEmail(email string) (Participant, bool) {
	email = NormalizeEmail(email)
	for _, participant := range p.Participants {
		if participant.Email == email {
			return participant, true
		}
	}
	return Participant{}, false
}

func (p Plan) hasParticipant(id ParticipantID) bool {
	for _, participant := range p.Participants {
		if participant.ID == id {
			return true
		}
	}
	return false
}

// Overdue is true when the payment is due before now and not settled.
func (p Payment) Overdue(now time.Time) bool {
	return !p.Settled && p.DueDate.Before(now)
}

// SetSettled flips the settled flag and keeps SettledDate in step.
func (p *Payment) SetSettled(settled bool, at time.Time) {
	if settled == p.Settled {
		return
	}
	p.Settled = settled
	if settled {
		p.SettledDate = &at
	} else {
		p.SettledDate = nil
	}
}

// PaymentCount returns the number of payments across all periods.
func (l Ledger) PaymentCount() int {
	n := 0
	for _, p := range l.Periods {
		n += len(p.Payments)
	}
	return n
}

// Payments flattens the ledger's payments in period order.
func (l Ledger) Payments() []Payment {
	payments := make([]Payment, 0, l.PaymentCount())
	for _, p := range l.Periods {
		payments = append(payments, p.Payments...)
	}
	return payments
}
