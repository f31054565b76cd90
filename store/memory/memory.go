// Package memory provides an in-memory pardna.TxStore for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pardna/ledger-engine/pardna"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps every record in flat maps, the way the SQL stores keep
// them in tables. Nested plans are assembled on read, so callers never
// share memory with the store.
type Store struct {
	mu sync.RWMutex
	state
}

type state struct {
	plans        map[pardna.PlanID]pardna.Plan
	participants map[pardna.ParticipantID]pardna.Participant
	ledgers      map[pardna.LedgerID]pardna.Ledger
	ledgerByPlan map[pardna.PlanID]pardna.LedgerID
	periods      map[pardna.PeriodID]pardna.Period
	payments     map[pardna.PaymentID]pardna.Payment

	// seq records insertion order for stable listings.
	seq  map[string]uint64
	next uint64
}

func New() *Store {
	return &Store{state: state{
		plans:        make(map[pardna.PlanID]pardna.Plan),
		participants: make(map[pardna.ParticipantID]pardna.Participant),
		ledgers:      make(map[pardna.LedgerID]pardna.Ledger),
		ledgerByPlan: make(map[pardna.PlanID]pardna.LedgerID),
		periods:      make(map[pardna.PeriodID]pardna.Period),
		payments:     make(map[pardna.PaymentID]pardna.Payment),
		seq:          make(map[string]uint64),
	}}
}

var (
	_ pardna.TxStore        = (*Store)(nil)
	_ pardna.OverdueCounter = (*Store)(nil)
)

func (s *Store) CreatePlan(ctx context.Context, plan *pardna.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPlan(plan)
}

func (s *Store) GetPlan(ctx context.Context, id pardna.PlanID) (*pardna.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPlan(id)
}

func (s *Store) ListPlans(ctx context.Context, bankerID string) ([]pardna.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPlans(bankerID)
}

func (s *Store) UpdatePlan(ctx context.Context, plan *pardna.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePlan(plan)
}

func (s *Store) DeletePlan(ctx context.Context, id pardna.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePlan(id)
}

func (s *Store) AddParticipants(ctx context.Context, planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addParticipants(planID, inputs)
}

func (s *Store) RemoveParticipants(ctx context.Context, planID pardna.PlanID, ids []pardna.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeParticipants(planID, ids)
}

func (s *Store) CreateLedger(ctx context.Context, planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLedger(planID, draft)
}

func (s *Store) DeleteLedger(ctx context.Context, id pardna.LedgerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLedger(id)
}

func (s *Store) GetPayment(ctx context.Context, id pardna.PaymentID) (*pardna.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPayment(id)
}

func (s *Store) UpdatePayment(ctx context.Context, payment *pardna.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePayment(payment)
}

// CountOverdue counts unsettled payments due before now.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.payments {
		if p.Overdue(now) {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store lock is held for the whole of fn.
func (s *Store) WithTx(ctx context.Context, fn func(pardna.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(&txView{state: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (st *state) snapshot() state {
	return state{
		plans:        maps.Clone(st.plans),
		participants: maps.Clone(st.participants),
		ledgers:      maps.Clone(st.ledgers),
		ledgerByPlan: maps.Clone(st.ledgerByPlan),
		periods:      maps.Clone(st.periods),
		payments:     maps.Clone(st.payments),
		seq:          maps.Clone(st.seq),
		next:         st.next,
	}
}

// txView is the Store handed to WithTx callbacks. It works on the state
// directly because the caller already holds the lock.
type txView struct {
	state *state
}

func (tv *txView) CreatePlan(_ context.Context, plan *pardna.Plan) error {
	return tv.state.createPlan(plan)
}

func (tv *txView) GetPlan(_ context.Context, id pardna.PlanID) (*pardna.Plan, error) {
	return tv.state.getPlan(id)
}

func (tv *txView) ListPlans(_ context.Context, bankerID string) ([]pardna.Plan, error) {
	return tv.state.listPlans(bankerID)
}

func (tv *txView) UpdatePlan(_ context.Context, plan *pardna.Plan) error {
	return tv.state.updatePlan(plan)
}

func (tv *txView) DeletePlan(_ context.Context, id pardna.PlanID) error {
	return tv.state.deletePlan(id)
}

func (tv *txView) AddParticipants(_ context.Context, planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	return tv.state.addParticipants(planID, inputs)
}

func (tv *txView) RemoveParticipants(_ context.Context, planID pardna.PlanID, ids []pardna.ParticipantID) error {
	return tv.state.removeParticipants(planID, ids)
}

func (tv *txView) CreateLedger(_ context.Context, planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	return tv.state.createLedger(planID, draft)
}

func (tv *txView) DeleteLedger(_ context.Context, id pardna.LedgerID) error {
	return tv.state.deleteLedger(id)
}

func (tv *txView) GetPayment(_ context.Context, id pardna.PaymentID) (*pardna.Payment, error) {
	return tv.state.getPayment(id)
}

func (tv *txView) UpdatePayment(_ context.Context, payment *pardna.Payment) error {
	return tv.state.updatePayment(payment)
}

// =============================================================================
// LOCKED OPERATIONS - Caller holds the lock
// =============================================================================

func (st *state) stamp(id string) {
	st.next++
	st.seq[id] = st.next
}

func (st *state) createPlan(plan *pardna.Plan) error {
	if plan.ID == "" {
		plan.ID = pardna.PlanID(uuid.NewString())
	}
	if _, ok := st.plans[plan.ID]; ok {
		return fmt.Errorf("plan %s already exists", plan.ID)
	}
	row := *plan
	row.Participants = nil
	row.Ledger = nil
	st.plans[plan.ID] = row
	st.stamp(string(plan.ID))
	return nil
}

func (st *state) getPlan(id pardna.PlanID) (*pardna.Plan, error) {
	row, ok := st.plans[id]
	if !ok {
		return nil, &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	plan := row

	for _, p := range st.participants {
		if p.PlanID == id {
			plan.Participants = append(plan.Participants, p)
		}
	}
	sort.Slice(plan.Participants, func(i, j int) bool {
		return st.seq[string(plan.Participants[i].ID)] < st.seq[string(plan.Participants[j].ID)]
	})

	if ledgerID, ok := st.ledgerByPlan[id]; ok {
		ledger := st.assembleLedger(ledgerID)
		plan.Ledger = &ledger
	}
	return &plan, nil
}

func (st *state) assembleLedger(id pardna.LedgerID) pardna.Ledger {
	ledger := st.ledgers[id]
	ledger.Periods = nil
	for _, period := range st.periods {
		if period.LedgerID != id {
			continue
		}
		period.Payments = nil
		for _, payment := range st.payments {
			if payment.PeriodID == period.ID {
				period.Payments = append(period.Payments, copyPayment(payment))
			}
		}
		sort.Slice(period.Payments, func(i, j int) bool {
			return st.seq[string(period.Payments[i].ID)] < st.seq[string(period.Payments[j].ID)]
		})
		ledger.Periods = append(ledger.Periods, period)
	}
	sort.Slice(ledger.Periods, func(i, j int) bool {
		return ledger.Periods[i].Number < ledger.Periods[j].Number
	})
	return ledger
}

func (st *state) listPlans(bankerID string) ([]pardna.Plan, error) {
	var ids []pardna.PlanID
	for id, row := range st.plans {
		if bankerID == "" || row.BankerID == bankerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return st.seq[string(ids[i])] < st.seq[string(ids[j])] })

	plans := make([]pardna.Plan, 0, len(ids))
	for _, id := range ids {
		plan, err := st.getPlan(id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, nil
}

func (st *state) updatePlan(plan *pardna.Plan) error {
	row, ok := st.plans[plan.ID]
	if !ok {
		return &pardna.NotFoundError{Kind: "plan", ID: string(plan.ID)}
	}
	if plan.Version != row.Version+1 {
		return &pardna.ConflictError{PlanID: plan.ID, Expected: plan.Version - 1, Actual: row.Version}
	}
	row.Name = plan.Name
	row.ContributionAmount = plan.ContributionAmount
	row.BankerFee = plan.BankerFee
	row.StartDate = plan.StartDate
	row.Duration = plan.Duration
	row.Version = plan.Version
	row.UpdatedAt = plan.UpdatedAt
	st.plans[plan.ID] = row
	return nil
}

func (st *state) deletePlan(id pardna.PlanID) error {
	if _, ok := st.plans[id]; !ok {
		return &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	if ledgerID, ok := st.ledgerByPlan[id]; ok {
		if err := st.deleteLedger(ledgerID); err != nil {
			return err
		}
	}
	for pid, p := range st.participants {
		if p.PlanID == id {
			st.deleteParticipant(pid)
		}
	}
	delete(st.plans, id)
	delete(st.seq, string(id))
	return nil
}

func (st *state) addParticipants(planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	if _, ok := st.plans[planID]; !ok {
		return nil, &pardna.NotFoundError{Kind: "plan", ID: string(planID)}
	}
	added := make([]pardna.Participant, 0, len(inputs))
	for _, in := range inputs {
		in = in.Normalized()
		if _, exists := st.participantByEmail(planID, in.Email); exists {
			return nil, pardna.Validation("participant %s is already in the plan", in.Email)
		}
		added = append(added, st.insertParticipant(planID, in))
	}
	return added, nil
}

func (st *state) insertParticipant(planID pardna.PlanID, in pardna.ParticipantInput) pardna.Participant {
	p := pardna.Participant{
		ID:     pardna.ParticipantID(uuid.NewString()),
		PlanID: planID,
		Name:   in.Name,
		Email:  in.Email,
	}
	st.participants[p.ID] = p
	st.stamp(string(p.ID))
	return p
}

func (st *state) participantByEmail(planID pardna.PlanID, email string) (pardna.Participant, bool) {
	for _, p := range st.participants {
		if p.PlanID == planID && p.Email == email {
			return p, true
		}
	}
	return pardna.Participant{}, false
}

func (st *state) removeParticipants(planID pardna.PlanID, ids []pardna.ParticipantID) error {
	for _, id := range ids {
		p, ok := st.participants[id]
		if !ok || p.PlanID != planID {
			return &pardna.NotFoundError{Kind: "participant", ID: string(id)}
		}
	}
	for _, id := range ids {
		st.deleteParticipant(id)
	}
	return nil
}

// deleteParticipant removes the participant and, by cascade, its payments.
func (st *state) deleteParticipant(id pardna.ParticipantID) {
	for pid, payment := range st.payments {
		if payment.ParticipantID == id {
			delete(st.payments, pid)
			delete(st.seq, string(pid))
		}
	}
	delete(st.participants, id)
	delete(st.seq, string(id))
}

func (st *state) createLedger(planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	if _, ok := st.plans[planID]; !ok {
		return nil, &pardna.NotFoundError{Kind: "plan", ID: string(planID)}
	}
	if existing, ok := st.ledgerByPlan[planID]; ok {
		return nil, fmt.Errorf("plan %s already has ledger %s", planID, existing)
	}

	ledger := pardna.Ledger{
		ID:        pardna.LedgerID(uuid.NewString()),
		PlanID:    planID,
		Frequency: draft.Frequency,
		CreatedAt: draft.CreatedAt,
	}
	st.ledgers[ledger.ID] = ledger
	st.ledgerByPlan[planID] = ledger.ID
	st.stamp(string(ledger.ID))

	for _, pd := range draft.Periods {
		period := pardna.Period{
			ID:       pardna.PeriodID(uuid.NewString()),
			LedgerID: ledger.ID,
			Type:     pd.Type,
			Number:   pd.Number,
		}
		st.periods[period.ID] = period
		st.stamp(string(period.ID))

		for _, d := range pd.Payments {
			in := d.Participant.Normalized()
			participant, ok := st.participantByEmail(planID, in.Email)
			if !ok {
				participant = st.insertParticipant(planID, in)
			}
			payment := pardna.Payment{
				ID:            pardna.PaymentID(uuid.NewString()),
				PeriodID:      period.ID,
				ParticipantID: participant.ID,
				PlanID:        planID,
				Type:          d.Type,
				Amount:        d.Amount,
				DueDate:       d.DueDate,
			}
			st.payments[payment.ID] = payment
			st.stamp(string(payment.ID))
		}
	}

	created := st.assembleLedger(ledger.ID)
	return &created, nil
}

// deleteLedger removes the ledger with its periods and payments.
func (st *state) deleteLedger(id pardna.LedgerID) error {
	ledger, ok := st.ledgers[id]
	if !ok {
		return &pardna.NotFoundError{Kind: "ledger", ID: string(id)}
	}
	for periodID, period := range st.periods {
		if period.LedgerID != id {
			continue
		}
		for paymentID, payment := range st.payments {
			if payment.PeriodID == periodID {
				delete(st.payments, paymentID)
				delete(st.seq, string(paymentID))
			}
		}
		delete(st.periods, periodID)
		delete(st.seq, string(periodID))
	}
	delete(st.ledgers, id)
	delete(st.ledgerByPlan, ledger.PlanID)
	delete(st.seq, string(id))
	return nil
}

func (st *state) getPayment(id pardna.PaymentID) (*pardna.Payment, error) {
	payment, ok := st.payments[id]
	if !ok {
		return nil, &pardna.NotFoundError{Kind: "payment", ID: string(id)}
	}
	payment = copyPayment(payment)
	return &payment, nil
}

func (st *state) updatePayment(payment *pardna.Payment) error {
	row, ok := st.payments[payment.ID]
	if !ok {
		return &pardna.NotFoundError{Kind: "payment", ID: string(payment.ID)}
	}
	row.Settled = payment.Settled
	row.SettledDate = nil
	if payment.SettledDate != nil {
		at := *payment.SettledDate
		row.SettledDate = &at
	}
	st.payments[payment.ID] = row
	return nil
}

func copyPayment(p pardna.Payment) pardna.Payment {
	if p.SettledDate != nil {
		at := *p.SettledDate
		p.SettledDate = &at
	}
	return p
}
