/*
lifecycle.go - Ledger lifecycle (create, regenerate, delete)

PURPOSE:
  Orchestrates generation against the store. Every operation runs inside a
  single store transaction: either all of its writes land or none do.

CREATE:
  validate -> generate draft -> insert plan, participants, ledger -> reload

UPDATE:
  1. Load the plan (NotFoundError if missing)
  2. Reject a stale ExpectedVersion (ConflictError)
  3. Reject financially impacting changes once the start date has passed
     (PastStartDateError). Name changes are always allowed.
  4. Write scalar fields, remove then add participants
  5. If financially impacting: delete the ledger (cascading to periods and
     payments) and generate a new one from the updated plan
  6. Reload and return the plan

  Regeneration discards settlement state on the old payments. That is the
  current contract, not an accident of this code.

CONCURRENCY:
  Two updates to one plan are ordered only by the store transaction.
  Callers that care pass ExpectedVersion.
*/
package pardna

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pardna/ledger-engine/generic"
)

// Manager runs plan operations against an injected store.
type Manager struct {
	Store TxStore

	// Now is the clock used for start-date checks and settlement dates.
	Now func() time.Time

	// OnLedgerGenerated, when set, is called after a committed transaction
	// wrote a new ledger. reason is LedgerCreated or LedgerRegenerated.
	OnLedgerGenerated func(reason string)
}

// Reasons passed to OnLedgerGenerated.
const (
	LedgerCreated     = "create"
	LedgerRegenerated = "regenerate"
)

// NewManager creates a manager using the wall clock.
func NewManager(store TxStore) *Manager {
	return &Manager{Store: store, Now: time.Now}
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Manager) ledgerGenerated(reason string) {
	if m.OnLedgerGenerated != nil {
		m.OnLedgerGenerated(reason)
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreatePlanLedger creates a plan, its participants and its first ledger
// as one atomic unit.
func (m *Manager) CreatePlanLedger(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	draft, err := GenerateLedger(LedgerParams{
		Frequency:          req.Frequency,
		Participants:       req.Participants,
		StartDate:          req.StartDate,
		Duration:           req.Duration,
		ContributionAmount: req.ContributionAmount,
	})
	if err != nil {
		return nil, err
	}

	now := m.now()
	draft.CreatedAt = now
	plan := &Plan{
		ID:                 PlanID(uuid.NewString()),
		Name:               req.Name,
		BankerID:           req.BankerID,
		ContributionAmount: req.ContributionAmount,
		BankerFee:          req.BankerFee,
		StartDate:          req.StartDate,
		Duration:           len(draft.Periods),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var created *Plan
	err = m.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreatePlan(ctx, plan); err != nil {
			return err
		}
		if _, err := s.AddParticipants(ctx, plan.ID, req.Participants); err != nil {
			return err
		}
		if _, err := s.CreateLedger(ctx, plan.ID, draft); err != nil {
			return err
		}
		var err error
		created, err = s.GetPlan(ctx, plan.ID)
		return err
	})
	if err != nil {
		return nil, persistence("create plan", err)
	}

	log.Printf("[Lifecycle] Created plan %s: %d %s periods, %d payments",
		created.ID, len(draft.Periods), draft.Frequency, draft.PaymentCount())
	m.ledgerGenerated(LedgerCreated)
	return created, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateResult reports what an update did alongside the reloaded plan.
type UpdateResult struct {
	Plan        *Plan
	Regenerated bool
}

// UpdatePlanLedger applies an update and regenerates the ledger when the
// update is financially impacting.
func (m *Manager) UpdatePlanLedger(ctx context.Context, req UpdatePlanRequest) (*Plan, error) {
	res, err := m.UpdatePlan(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Plan, nil
}

// UpdatePlan is UpdatePlanLedger that also reports whether the ledger
// was regenerated.
func (m *Manager) UpdatePlan(ctx context.Context, req UpdatePlanRequest) (UpdateResult, error) {
	if err := req.Validate(); err != nil {
		return UpdateResult{}, err
	}
	now := m.now()
	financial := req.FinanciallyImpacting()

	var res UpdateResult
	err := m.Store.WithTx(ctx, func(s Store) error {
		plan, err := s.GetPlan(ctx, req.ID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != plan.Version {
			return &ConflictError{PlanID: plan.ID, Expected: *req.ExpectedVersion, Actual: plan.Version}
		}
		if financial && plan.HasStarted(now) {
			return &PastStartDateError{PlanID: plan.ID, StartDate: plan.StartDate, Fields: req.FinancialChanges()}
		}
		if err := checkMembership(plan, req); err != nil {
			return err
		}

		applyFields(plan, req, now)
		if err := s.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		if len(req.RemoveParticipants) > 0 {
			if err := s.RemoveParticipants(ctx, plan.ID, req.RemoveParticipants); err != nil {
				return err
			}
		}
		if len(req.AddParticipants) > 0 {
			if _, err := s.AddParticipants(ctx, plan.ID, req.AddParticipants); err != nil {
				return err
			}
		}

		if financial {
			if err := regenerate(ctx, s, plan.ID, req.Frequency, now); err != nil {
				return err
			}
			res.Regenerated = true
		}

		res.Plan, err = s.GetPlan(ctx, plan.ID)
		return err
	})
	if err != nil {
		return UpdateResult{}, persistence("update plan", err)
	}

	if res.Regenerated {
		log.Printf("[Lifecycle] Regenerated ledger for plan %s (%v)", res.Plan.ID, req.FinancialChanges())
		m.ledgerGenerated(LedgerRegenerated)
	}
	return res, nil
}

// checkMembership validates participant removals and additions against the
// plan as loaded.
func checkMembership(plan *Plan, req UpdatePlanRequest) error {
	removing := make(map[ParticipantID]bool, len(req.RemoveParticipants))
	for _, id := range req.RemoveParticipants {
		if !plan.hasParticipant(id) {
			return &NotFoundError{Kind: "participant", ID: string(id)}
		}
		removing[id] = true
	}

	taken := make(map[string]bool, len(plan.Participants))
	for _, p := range plan.Participants {
		if !removing[p.ID] {
			taken[p.Email] = true
		}
	}
	var problems []string
	for _, in := range req.AddParticipants {
		if taken[in.Email] {
			problems = append(problems, "participant "+in.Email+" is already in the plan")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func applyFields(plan *Plan, req UpdatePlanRequest, now time.Time) {
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.StartDate != nil {
		plan.StartDate = *req.StartDate
	}
	if req.Duration != nil {
		plan.Duration = *req.Duration
	}
	if req.ContributionAmount != nil {
		plan.ContributionAmount = *req.ContributionAmount
	}
	if req.BankerFee != nil {
		plan.BankerFee = *req.BankerFee
	}
	plan.Version++
	plan.UpdatedAt = now
}

// regenerate replaces the plan's ledger with one built from its current
// state. The frequency is the requested one, else the old ledger's.
func regenerate(ctx context.Context, s Store, id PlanID, frequency *generic.Frequency, now time.Time) error {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}

	var freq generic.Frequency
	if plan.Ledger != nil {
		freq = plan.Ledger.Frequency
		if err := s.DeleteLedger(ctx, plan.Ledger.ID); err != nil {
			return err
		}
	}
	if frequency != nil {
		freq = *frequency
	}

	participants := make([]ParticipantInput, 0, len(plan.Participants))
	for _, p := range plan.Participants {
		participants = append(participants, p.Input())
	}
	duration := plan.Duration
	draft, err := GenerateLedger(LedgerParams{
		Frequency:          freq,
		Participants:       participants,
		StartDate:          plan.StartDate,
		Duration:           &duration,
		ContributionAmount: plan.ContributionAmount,
	})
	if err != nil {
		return err
	}
	draft.CreatedAt = now
	_, err = s.CreateLedger(ctx, plan.ID, draft)
	return err
}

// =============================================================================
// DELETE AND READS
// =============================================================================

// DeletePlan removes a plan. The store cascades to its ledger, periods,
// payments and participants.
func (m *Manager) DeletePlan(ctx context.Context, id PlanID) error {
	if id == "" {
		return Validation("id is required")
	}
	if err := m.Store.DeletePlan(ctx, id); err != nil {
		return persistence("delete plan", err)
	}
	log.Printf("[Lifecycle] Deleted plan %s", id)
	return nil
}

// GetPlan loads a plan with participants and ledger.
func (m *Manager) GetPlan(ctx context.Context, id PlanID) (*Plan, error) {
	plan, err := m.Store.GetPlan(ctx, id)
	if err != nil {
		return nil, persistence("get plan", err)
	}
	return plan, nil
}

// ListPlans returns a banker's plans.
func (m *Manager) ListPlans(ctx context.Context, bankerID string) ([]Plan, error) {
	plans, err := m.Store.ListPlans(ctx, bankerID)
	if err != nil {
		return nil, persistence("list plans", err)
	}
	return plans, nil
}

// GetPayment loads a single payment.
func (m *Manager) GetPayment(ctx context.Context, id PaymentID) (*Payment, error) {
	payment, err := m.Store.GetPayment(ctx, id)
	if err != nil {
		return nil, persistence("get payment", err)
	}
	return payment, nil
}

// SetPaymentSettled marks a payment settled (stamping the settled date) or
// unsettled (clearing it).
func (m *Manager) SetPaymentSettled(ctx context.Context, id PaymentID, settled bool) (*Payment, error) {
	now := m.now()
	var payment *Payment
	err := m.Store.WithTx(ctx, func(s Store) error {
		var err error
		payment, err = s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		payment.SetSettled(settled, now)
		return s.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, persistence("settle payment", err)
	}
	return payment, nil
}
