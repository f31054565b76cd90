/*
store.go - Persistence contract for plans and ledgers

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never holds a global client: a Store is injected into the Manager.

REQUIREMENTS ON IMPLEMENTATIONS:
  - Unique lookup by id, and by (plan, email) for participants
  - Cascade delete Plan -> Ledger -> Period -> Payment, and
    Participant -> Payment
  - Atomic multi-record writes through TxStore.WithTx

NOT FOUND:
  Lookups and deletes by id return *NotFoundError when nothing matches.

IMPLEMENTATIONS:
  - store/memory:   in-memory, snapshot + rollback
  - store/sqlite:   database/sql over mattn/go-sqlite3
  - store/postgres: pgx connection pool
*/
package pardna

import (
	"context"
	"time"
)

// Store is the persistence surface the engine depends on.
type Store interface {
	// CreatePlan inserts the plan row only (no participants, no ledger).
	CreatePlan(ctx context.Context, plan *Plan) error

	// GetPlan loads the plan with participants and its ledger
	// (periods ordered by number, payments in insertion order).
	GetPlan(ctx context.Context, id PlanID) (*Plan, error)

	// ListPlans returns every plan of a banker, or all plans for "".
	ListPlans(ctx context.Context, bankerID string) ([]Plan, error)

	// UpdatePlan writes the scalar fields of the plan. plan.Version must be
	// the stored version plus one, otherwise it returns *ConflictError.
	UpdatePlan(ctx context.Context, plan *Plan) error

	// DeletePlan removes the plan and, by cascade, everything it owns.
	DeletePlan(ctx context.Context, id PlanID) error

	// AddParticipants creates participant rows linked to the plan.
	AddParticipants(ctx context.Context, planID PlanID, inputs []ParticipantInput) ([]Participant, error)

	// RemoveParticipants deletes participant rows (and their payments).
	RemoveParticipants(ctx context.Context, planID PlanID, ids []ParticipantID) error

	// CreateLedger persists a draft for the plan. Each payment's participant
	// is connect-or-create on (plan, email).
	CreateLedger(ctx context.Context, planID PlanID, draft LedgerDraft) (*Ledger, error)

	// DeleteLedger removes a ledger with its periods and payments.
	DeleteLedger(ctx context.Context, id LedgerID) error

	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)

	// UpdatePayment writes the settlement fields of a payment.
	UpdatePayment(ctx context.Context, payment *Payment) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// OverdueCounter is an optional Store capability used for monitoring.
type OverdueCounter interface {
	// CountOverdue counts unsettled payments due before now.
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}
