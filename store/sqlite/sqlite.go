/*
Package sqlite provides a SQLite-backed implementation of pardna.TxStore.

PURPOSE:
  Persists plans, participants, ledgers, periods and payments with
  database/sql over mattn/go-sqlite3. store/postgres implements the same
  schema for PostgreSQL; the two differ only in dialect.

KEY TABLES:
  plans:        Scalar plan fields, version for optimistic checks
  participants: Members of a plan, UNIQUE(plan_id, email)
  ledgers:      One per plan, UNIQUE(plan_id)
  periods:      Numbered intervals of a ledger, UNIQUE(ledger_id, number)
  payments:     One obligation per participant per period

CASCADES:
  Foreign keys carry ON DELETE CASCADE, so deleting a plan removes its
  ledger, periods, payments and participants, deleting a ledger removes its
  periods and payments, and deleting a participant removes its payments.
  Foreign keys are only enforced because the DSN sets _foreign_keys=on.

STORAGE FORMATS:
  Times:   TEXT, UTC, fixed-width nanosecond layout (sorts lexically)
  Amounts: TEXT decimal strings, NULL when absent

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection.
  ":memory:" gives every connection its own database, and SQLite allows
  only one writer anyway.

USAGE:
  store, err := sqlite.New("./data/pardna.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  manager := pardna.NewManager(store)

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
)

// timeLayout is fixed width so TEXT comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements pardna.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ pardna.TxStore        = (*Store)(nil)
	_ pardna.OverdueCounter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		banker_id TEXT NOT NULL,
		contribution_amount TEXT,
		banker_fee TEXT,
		start_date TEXT NOT NULL,
		duration INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_banker
		ON plans(banker_id);

	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		UNIQUE(plan_id, email)
	);

	CREATE TABLE IF NOT EXISTS ledgers (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL UNIQUE REFERENCES plans(id) ON DELETE CASCADE,
		frequency TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		ledger_id TEXT NOT NULL REFERENCES ledgers(id) ON DELETE CASCADE,
		period_type TEXT NOT NULL,
		number INTEGER NOT NULL,
		UNIQUE(ledger_id, number)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		payment_type TEXT NOT NULL,
		amount TEXT,
		due_date TEXT NOT NULL,
		settled INTEGER NOT NULL DEFAULT 0,
		settled_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payments_period
		ON payments(period_id);
	CREATE INDEX IF NOT EXISTS idx_payments_participant
		ON payments(participant_id);

	-- Overdue scans (monitor)
	CREATE INDEX IF NOT EXISTS idx_payments_unsettled_due
		ON payments(settled, due_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (pardna.Store interface)
// =============================================================================

func (s *Store) CreatePlan(ctx context.Context, plan *pardna.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.createPlan(ctx, plan)
}

func (s *Store) GetPlan(ctx context.Context, id pardna.PlanID) (*pardna.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.getPlan(ctx, id)
}

func (s *Store) ListPlans(ctx context.Context, bankerID string) ([]pardna.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.listPlans(ctx, bankerID)
}

func (s *Store) UpdatePlan(ctx context.Context, plan *pardna.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.updatePlan(ctx, plan)
}

func (s *Store) DeletePlan(ctx context.Context, id pardna.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.deletePlan(ctx, id)
}

func (s *Store) AddParticipants(ctx context.Context, planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	var added []pardna.Participant
	err := s.WithTx(ctx, func(tx pardna.Store) error {
		var err error
		added, err = tx.AddParticipants(ctx, planID, inputs)
		return err
	})
	return added, err
}

func (s *Store) RemoveParticipants(ctx context.Context, planID pardna.PlanID, ids []pardna.ParticipantID) error {
	return s.WithTx(ctx, func(tx pardna.Store) error {
		return tx.RemoveParticipants(ctx, planID, ids)
	})
}

func (s *Store) CreateLedger(ctx context.Context, planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	var ledger *pardna.Ledger
	err := s.WithTx(ctx, func(tx pardna.Store) error {
		var err error
		ledger, err = tx.CreateLedger(ctx, planID, draft)
		return err
	})
	return ledger, err
}

func (s *Store) DeleteLedger(ctx context.Context, id pardna.LedgerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.deleteLedger(ctx, id)
}

func (s *Store) GetPayment(ctx context.Context, id pardna.PaymentID) (*pardna.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.getPayment(ctx, id)
}

func (s *Store) UpdatePayment(ctx context.Context, payment *pardna.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.updatePayment(ctx, payment)
}

// CountOverdue counts unsettled payments due before now.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE settled = 0 AND due_date < ?`,
		formatTime(now)).Scan(&n)
	return n, err
}

// =============================================================================
// TRANSACTIONAL STORE (pardna.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store pardna.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: queries{sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open *sql.Tx. With one pooled
// connection, touching s.db here would block forever.
type txStore struct {
	q queries
}

func (ts *txStore) CreatePlan(ctx context.Context, plan *pardna.Plan) error {
	return ts.q.createPlan(ctx, plan)
}

func (ts *txStore) GetPlan(ctx context.Context, id pardna.PlanID) (*pardna.Plan, error) {
	return ts.q.getPlan(ctx, id)
}

func (ts *txStore) ListPlans(ctx context.Context, bankerID string) ([]pardna.Plan, error) {
	return ts.q.listPlans(ctx, bankerID)
}

func (ts *txStore) UpdatePlan(ctx context.Context, plan *pardna.Plan) error {
	return ts.q.updatePlan(ctx, plan)
}

func (ts *txStore) DeletePlan(ctx context.Context, id pardna.PlanID) error {
	return ts.q.deletePlan(ctx, id)
}

func (ts *txStore) AddParticipants(ctx context.Context, planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	return ts.q.addParticipants(ctx, planID, inputs)
}

func (ts *txStore) RemoveParticipants(ctx context.Context, planID pardna.PlanID, ids []pardna.ParticipantID) error {
	return ts.q.removeParticipants(ctx, planID, ids)
}

func (ts *txStore) CreateLedger(ctx context.Context, planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	return ts.q.createLedger(ctx, planID, draft)
}

func (ts *txStore) DeleteLedger(ctx context.Context, id pardna.LedgerID) error {
	return ts.q.deleteLedger(ctx, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id pardna.PaymentID) (*pardna.Payment, error) {
	return ts.q.getPayment(ctx, id)
}

func (ts *txStore) UpdatePayment(ctx context.Context, payment *pardna.Payment) error {
	return ts.q.updatePayment(ctx, payment)
}

// =============================================================================
// QUERIES - Shared by *sql.DB and *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func (q queries) createPlan(ctx context.Context, plan *pardna.Plan) error {
	if plan.ID == "" {
		plan.ID = pardna.PlanID(uuid.NewString())
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO plans
			(id, name, banker_id, contribution_amount, banker_fee, start_date,
			 duration, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.Name, plan.BankerID,
		generic.AmountPtr(plan.ContributionAmount), generic.AmountPtr(plan.BankerFee),
		formatTime(plan.StartDate), plan.Duration, plan.Version,
		formatTime(plan.CreatedAt), formatTime(plan.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

const planColumns = `id, name, banker_id, contribution_amount, banker_fee, start_date,
	duration, version, created_at, updated_at`

func (q queries) getPlan(ctx context.Context, id pardna.PlanID) (*pardna.Plan, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	if err := q.loadChildren(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (q queries) listPlans(ctx context.Context, bankerID string) ([]pardna.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	var args []any
	if bankerID != "" {
		query += ` WHERE banker_id = ?`
		args = append(args, bankerID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var plans []pardna.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		plans = append(plans, *plan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Children are loaded after the cursor is closed: the single
	// connection cannot serve a second query while rows are open.
	for i := range plans {
		if err := q.loadChildren(ctx, &plans[i]); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (q queries) loadChildren(ctx context.Context, plan *pardna.Plan) error {
	participants, err := q.participants(ctx, plan.ID)
	if err != nil {
		return err
	}
	plan.Participants = participants

	ledger, err := q.ledgerForPlan(ctx, plan.ID)
	if err != nil {
		return err
	}
	plan.Ledger = ledger
	return nil
}

func (q queries) updatePlan(ctx context.Context, plan *pardna.Plan) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE plans SET
			name = ?, contribution_amount = ?, banker_fee = ?, start_date = ?,
			duration = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		plan.Name, generic.AmountPtr(plan.ContributionAmount), generic.AmountPtr(plan.BankerFee),
		formatTime(plan.StartDate), plan.Duration, plan.Version, formatTime(plan.UpdatedAt),
		plan.ID, plan.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	var actual int
	err = q.db.QueryRowContext(ctx, `SELECT version FROM plans WHERE id = ?`, plan.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return &pardna.NotFoundError{Kind: "plan", ID: string(plan.ID)}
	}
	if err != nil {
		return err
	}
	return &pardna.ConflictError{PlanID: plan.ID, Expected: plan.Version - 1, Actual: actual}
}

func (q queries) deletePlan(ctx context.Context, id pardna.PlanID) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	return nil
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func (q queries) participants(ctx context.Context, planID pardna.PlanID) ([]pardna.Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, plan_id, name, email FROM participants WHERE plan_id = ? ORDER BY rowid`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []pardna.Participant
	for rows.Next() {
		var p pardna.Participant
		if err := rows.Scan(&p.ID, &p.PlanID, &p.Name, &p.Email); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (q queries) addParticipants(ctx context.Context, planID pardna.PlanID, inputs []pardna.ParticipantInput) ([]pardna.Participant, error) {
	if err := q.requirePlan(ctx, planID); err != nil {
		return nil, err
	}
	added := make([]pardna.Participant, 0, len(inputs))
	for _, in := range inputs {
		p, err := q.insertParticipant(ctx, planID, in.Normalized())
		if err != nil {
			return nil, err
		}
		added = append(added, p)
	}
	return added, nil
}

func (q queries) insertParticipant(ctx context.Context, planID pardna.PlanID, in pardna.ParticipantInput) (pardna.Participant, error) {
	p := pardna.Participant{
		ID:     pardna.ParticipantID(uuid.NewString()),
		PlanID: planID,
		Name:   in.Name,
		Email:  in.Email,
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO participants (id, plan_id, name, email) VALUES (?, ?, ?, ?)`,
		p.ID, p.PlanID, p.Name, p.Email)
	if isUniqueConstraintError(err) {
		return pardna.Participant{}, pardna.Validation("participant %s is already in the plan", in.Email)
	}
	if err != nil {
		return pardna.Participant{}, fmt.Errorf("insert participant: %w", err)
	}
	return p, nil
}

func (q queries) removeParticipants(ctx context.Context, planID pardna.PlanID, ids []pardna.ParticipantID) error {
	for _, id := range ids {
		result, err := q.db.ExecContext(ctx,
			`DELETE FROM participants WHERE id = ? AND plan_id = ?`, id, planID)
		if err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return &pardna.NotFoundError{Kind: "participant", ID: string(id)}
		}
	}
	return nil
}

func (q queries) requirePlan(ctx context.Context, id pardna.PlanID) error {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM plans WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	return err
}

// =============================================================================
// LEDGERS
// =============================================================================

func (q queries) createLedger(ctx context.Context, planID pardna.PlanID, draft pardna.LedgerDraft) (*pardna.Ledger, error) {
	existing, err := q.participants(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := q.requirePlan(ctx, planID); err != nil {
		return nil, err
	}
	byEmail := make(map[string]pardna.ParticipantID, len(existing))
	for _, p := range existing {
		byEmail[p.Email] = p.ID
	}

	ledgerID := pardna.LedgerID(uuid.NewString())
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO ledgers (id, plan_id, frequency, created_at) VALUES (?, ?, ?, ?)`,
		ledgerID, planID, string(draft.Frequency), formatTime(draft.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert ledger: %w", err)
	}

	for _, pd := range draft.Periods {
		periodID := pardna.PeriodID(uuid.NewString())
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO periods (id, ledger_id, period_type, number) VALUES (?, ?, ?, ?)`,
			periodID, ledgerID, string(pd.Type), pd.Number)
		if err != nil {
			return nil, fmt.Errorf("insert period %d: %w", pd.Number, err)
		}

		for _, d := range pd.Payments {
			in := d.Participant.Normalized()
			participantID, ok := byEmail[in.Email]
			if !ok {
				p, err := q.insertParticipant(ctx, planID, in)
				if err != nil {
					return nil, err
				}
				participantID = p.ID
				byEmail[in.Email] = p.ID
			}
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO payments
					(id, period_id, participant_id, plan_id, payment_type, amount, due_date, settled)
				VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
				uuid.NewString(), periodID, participantID, planID, string(d.Type),
				generic.AmountPtr(d.Amount), formatTime(d.DueDate))
			if err != nil {
				return nil, fmt.Errorf("insert payment: %w", err)
			}
		}
	}

	return q.ledgerForPlan(ctx, planID)
}

// ledgerForPlan returns the plan's ledger, or nil when it has none.
func (q queries) ledgerForPlan(ctx context.Context, planID pardna.PlanID) (*pardna.Ledger, error) {
	var (
		ledger    pardna.Ledger
		frequency string
		createdAt string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, plan_id, frequency, created_at FROM ledgers WHERE plan_id = ?`, planID,
	).Scan(&ledger.ID, &ledger.PlanID, &frequency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ledger.Frequency = generic.Frequency(frequency)
	if ledger.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	periods, err := q.periods(ctx, ledger.ID)
	if err != nil {
		return nil, err
	}
	payments, err := q.ledgerPayments(ctx, ledger.ID)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		periods[i].Payments = payments[periods[i].ID]
	}
	ledger.Periods = periods
	return &ledger, nil
}

func (q queries) periods(ctx context.Context, ledgerID pardna.LedgerID) ([]pardna.Period, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, ledger_id, period_type, number FROM periods WHERE ledger_id = ? ORDER BY number`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []pardna.Period
	for rows.Next() {
		var (
			p          pardna.Period
			periodType string
		)
		if err := rows.Scan(&p.ID, &p.LedgerID, &periodType, &p.Number); err != nil {
			return nil, err
		}
		p.Type = generic.PeriodType(periodType)
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

const paymentColumns = `p.id, p.period_id, p.participant_id, p.plan_id, p.payment_type,
	p.amount, p.due_date, p.settled, p.settled_date`

// ledgerPayments loads every payment of a ledger grouped by period.
func (q queries) ledgerPayments(ctx context.Context, ledgerID pardna.LedgerID) (map[pardna.PeriodID][]pardna.Payment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p JOIN periods pe ON pe.id = p.period_id
		WHERE pe.ledger_id = ?
		ORDER BY pe.number, p.rowid`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPeriod := make(map[pardna.PeriodID][]pardna.Payment)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		byPeriod[payment.PeriodID] = append(byPeriod[payment.PeriodID], *payment)
	}
	return byPeriod, rows.Err()
}

func (q queries) deleteLedger(ctx context.Context, id pardna.LedgerID) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM ledgers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ledger: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &pardna.NotFoundError{Kind: "ledger", ID: string(id)}
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (q queries) getPayment(ctx context.Context, id pardna.PaymentID) (*pardna.Payment, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`, id)
	payment, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &pardna.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return payment, err
}

func (q queries) updatePayment(ctx context.Context, payment *pardna.Payment) error {
	var settledDate sql.NullString
	if payment.SettledDate != nil {
		settledDate = sql.NullString{String: formatTime(*payment.SettledDate), Valid: true}
	}
	result, err := q.db.ExecContext(ctx,
		`UPDATE payments SET settled = ?, settled_date = ? WHERE id = ?`,
		payment.Settled, settledDate, payment.ID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &pardna.NotFoundError{Kind: "payment", ID: string(payment.ID)}
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*pardna.Plan, error) {
	var (
		plan                        pardna.Plan
		contribution, fee           sql.NullString
		startDate, created, updated string
	)
	err := row.Scan(&plan.ID, &plan.Name, &plan.BankerID, &contribution, &fee,
		&startDate, &plan.Duration, &plan.Version, &created, &updated)
	if err != nil {
		return nil, err
	}
	if plan.ContributionAmount, err = generic.ParseAmount(contribution.String); err != nil {
		return nil, err
	}
	if plan.BankerFee, err = generic.ParseAmount(fee.String); err != nil {
		return nil, err
	}
	if plan.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if plan.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if plan.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &plan, nil
}

func scanPayment(row scanner) (*pardna.Payment, error) {
	var (
		p                   pardna.Payment
		paymentType, due    string
		amount, settledDate sql.NullString
	)
	err := row.Scan(&p.ID, &p.PeriodID, &p.ParticipantID, &p.PlanID, &paymentType,
		&amount, &due, &p.Settled, &settledDate)
	if err != nil {
		return nil, err
	}
	p.Type = pardna.PaymentType(paymentType)
	if p.Amount, err = generic.ParseAmount(amount.String); err != nil {
		return nil, err
	}
	if p.DueDate, err = parseTime(due); err != nil {
		return nil, err
	}
	if settledDate.Valid {
		at, err := parseTime(settledDate.String)
		if err != nil {
			return nil, err
		}
		p.SettledDate = &at
	}
	return &p, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
