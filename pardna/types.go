/*
Package pardna implements the rotating-savings-club ledger engine.

PURPOSE:
  A plan ("pardna") collects a contribution from every participant each
  period. The engine turns a plan's parameters into a ledger: an ordered
  list of periods, each holding the payments due in it. Any financially
  impacting edit throws the ledger away and generates a new one.

OBJECT GRAPH:
  Plan (1) ── (1) Ledger (1) ── (N) Period (1) ── (N) Payment (N) ── (1) Participant
                                                                          │
  Plan (1) ──────────────────────────────────────────────── (N) ──────────┘

KEY CONCEPTS IN THIS FILE (types.go):
  - Plan, Ledger, Period, Payment, Participant: persisted records
  - LedgerDraft: a generated, not yet persisted ledger
  - ID types: type-safe identifiers

REGENERATION:
  Ledgers are destroy-and-recreate. Payments are never patched across a
  regeneration, so settlement history on a discarded ledger is lost.

SEE ALSO:
  - ledger.go: GenerateLedger
  - lifecycle.go: Manager (create / update / delete)
  - resolver.go: derived fields (end date, overdue)
  - store.go: persistence contract
*/
package pardna

import (
	"strings"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type LedgerID string
type PeriodID string
type PaymentID string
type ParticipantID string

// =============================================================================
// PAYMENT TYPE
// =============================================================================

type PaymentType string

const (
	PaymentContribution PaymentType = "CONTRIBUTION"
	PaymentPayout       PaymentType = "PAYOUT"
	PaymentBankerFee    PaymentType = "BANKERFEE"
)

// DefaultDuration is the number of periods when a plan does not say.
const DefaultDuration = 12

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

// Plan is a savings club run by a banker.
type Plan struct {
	ID                 PlanID
	Name               string
	BankerID           string
	ContributionAmount decimal.NullDecimal
	BankerFee          decimal.NullDecimal
	StartDate          time.Time
	Duration           int

	// Version increments on every update. See UpdatePlanRequest.ExpectedVersion.
	Version int

	Participants []Participant
	Ledger       *Ledger

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant is a member of exactly one plan. Email is unique within the plan.
type Participant struct {
	ID     ParticipantID
	PlanID PlanID
	Name   string
	Email  string
}

// Ledger is the generated schedule for a plan.
// Frequency is empty for ledgers written before it was recorded.
type Ledger struct {
	ID        LedgerID
	PlanID    PlanID
	Frequency generic.Frequency
	Periods   []Period
	CreatedAt time.Time
}

// Period is one scheduled interval, numbered from 1.
type Period struct {
	ID       PeriodID
	LedgerID LedgerID
	Type     generic.PeriodType
	Number   int
	Payments []Payment
}

// Payment is one obligation owed by a participant within a period.
//
// INVARIANT: SettledDate != nil iff Settled.
type Payment struct {
	ID            PaymentID
	PeriodID      PeriodID
	ParticipantID ParticipantID
	PlanID        PlanID
	Type          PaymentType
	Amount        decimal.NullDecimal
	DueDate       time.Time
	Settled       bool
	SettledDate   *time.Time
}

// =============================================================================
// DRAFTS - Generated, not yet persisted
// =============================================================================

// LedgerDraft is the output of GenerateLedger. CreatedAt is left zero by
// the generator and stamped by the Manager from its clock.
type LedgerDraft struct {
	Frequency generic.Frequency
	Periods   []PeriodDraft
	CreatedAt time.Time
}

type PeriodDraft struct {
	Type     generic.PeriodType
	Number   int
	Payments []PaymentDraft
}

// PaymentDraft references its participant by email. The store attaches it
// to the plan's existing participant with that email, or creates one.
type PaymentDraft struct {
	Type        PaymentType
	DueDate     time.Time
	Amount      decimal.NullDecimal
	Participant ParticipantInput
}

// ParticipantInput is a participant as supplied by a caller.
type ParticipantInput struct {
	Name  string
	Email string
}

// NormalizeEmail is the key participants are matched on.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalized returns a copy with trimmed name and normalised email.
func (p ParticipantInput) Normalized() ParticipantInput {
	return ParticipantInput{Name: strings.TrimSpace(p.Name), Email: NormalizeEmail(p.Email)}
}

// Input converts a stored participant back into generator input.
func (p Participant) Input() ParticipantInput {
	return ParticipantInput{Name: p.Name, Email: p.Email}
}
