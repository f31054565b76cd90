/*
handlers.go - HTTP API handlers for the pardna ledger engine

PURPOSE:
  Exposes the ledger lifecycle via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to pardna.Manager.

ENDPOINTS:
  Plans:
    POST   /api/plans                  Create plan and first ledger
    GET    /api/plans                  List the caller's plans
    GET    /api/plans/{id}             Plan with ledger and derived fields
    PATCH  /api/plans/{id}             Update (regenerates when financial)
    DELETE /api/plans/{id}             Delete plan and everything it owns

  Payments:
    GET    /api/payments/{id}          Single payment
    POST   /api/payments/{id}/settle   Mark settled / unsettled

REQUEST FLOW:
  1. Resolve the banker from the IdentityProvider
  2. Decode and convert the DTO into a pardna request
  3. Call the Manager
  4. Serialize response (derived fields computed here)
  5. Map errors to status codes

OWNERSHIP:
  A plan owned by another banker is reported as not found.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No banker identity
  - 404: Plan, participant or payment not found
  - 409: Stale expected_version
  - 422: Financial change after the start date
  - 500: Persistence and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pardna/ledger-engine/pardna"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager  *pardna.Manager
	Identity IdentityProvider

	// Now is the clock for derived fields. Defaults to the manager's clock.
	Now func() time.Time
}

// NewHandler creates a handler reading identity from X-Banker-ID. It also
// hooks the ledger counter into the manager unless a hook is already set.
func NewHandler(manager *pardna.Manager) *Handler {
	if manager != nil && manager.OnLedgerGenerated == nil {
		manager.OnLedgerGenerated = countLedgerGenerated
	}
	return &Handler{
		Manager:  manager,
		Identity: HeaderIdentity{Header: DefaultIdentityHeader},
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	if h.Manager != nil && h.Manager.Now != nil {
		return h.Manager.Now()
	}
	return time.Now()
}

// banker resolves the caller, writing 401 when there is none.
func (h *Handler) banker(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := h.Identity.BankerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing banker identity", err)
		return "", false
	}
	return id, true
}

// ownedPlan loads a plan and hides plans of other bankers behind 404.
func (h *Handler) ownedPlan(r *http.Request, bankerID string, id pardna.PlanID) (*pardna.Plan, error) {
	plan, err := h.Manager.GetPlan(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if plan.BankerID != bankerID {
		return nil, &pardna.NotFoundError{Kind: "plan", ID: string(id)}
	}
	return plan, nil
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// CreatePlan creates a plan with its first ledger.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}

	var body CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := body.toCreateRequest(bankerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	plan, err := h.Manager.CreatePlanLedger(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanDTO(*plan, h.now()))
}

// ListPlans returns the caller's plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}

	plans, err := h.Manager.ListPlans(r.Context(), bankerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.now()
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p, now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns one plan with its ledger.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}

	plan, err := h.ownedPlan(r, bankerID, pardna.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*plan, h.now()))
}

// UpdatePlan applies a partial update. Financially impacting updates
// replace the ledger, discarding its settlement state.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}
	id := pardna.PlanID(chi.URLParam(r, "id"))

	var body UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := body.toUpdateRequest(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := h.ownedPlan(r, bankerID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.Manager.UpdatePlan(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(*res.Plan, h.now()))
}

// DeletePlan removes a plan and, by cascade, its ledger and participants.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}
	id := pardna.PlanID(chi.URLParam(r, "id"))

	if _, err := h.ownedPlan(r, bankerID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Manager.DeletePlan(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}

	payment, err := h.ownedPayment(r, bankerID, pardna.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment, h.now()))
}

// SettlePayment sets or clears the settled flag of a payment.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}
	id := pardna.PaymentID(chi.URLParam(r, "id"))

	var body SettlePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settled := true
	if body.Settled != nil {
		settled = *body.Settled
	}

	if _, err := h.ownedPayment(r, bankerID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	payment, err := h.Manager.SetPaymentSettled(r.Context(), id, settled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment, h.now()))
}

func (h *Handler) ownedPayment(r *http.Request, bankerID string, id pardna.PaymentID) (*pardna.Payment, error) {
	payment, err := h.Manager.GetPayment(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if _, err := h.ownedPlan(r, bankerID, payment.PlanID); err != nil {
		return nil, &pardna.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return payment, nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps pardna errors onto status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var validation *pardna.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Validation failed",
			Details:  err.Error(),
			Problems: validation.Problems,
		})
	case errors.Is(err, pardna.ErrPastStartDate):
		writeError(w, http.StatusUnprocessableEntity, "Plan has already started", err)
	case pardna.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, pardna.ErrConflict):
		writeError(w, http.StatusConflict, "Plan was modified", err)
	default:
		log.Printf("[API] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}
