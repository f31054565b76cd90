/*
scenarios.go - Demo plans for trying the API

PURPOSE:

	Creates ready-made plans for the calling banker so a frontend has
	something to show. Each scenario goes through the Manager exactly like
	a client request, so the plans are ordinary plans afterwards.

AVAILABLE SCENARIOS:

	monthly-circle: Three-person monthly pardna starting next month
	weekly-empty:   Weekly plan with no members yet
	running-plan:   Started three months ago, first round settled,
	                later payments overdue
	daily-sprint:   Short daily plan starting tomorrow

DATES:

	Start dates are relative to the handler clock. running-plan is created
	with its start date in the past, which create allows and update does not.

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "running-plan"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, bankerID, now)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: Plan handlers the loaded plans are read through
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-circle",
		Name:        "Monthly Circle",
		Description: "Three members paying 100 a month for three months, starting next month",
	},
	{
		ID:          "weekly-empty",
		Name:        "Weekly, No Members",
		Description: "Four weekly periods with no payments until members are added",
	},
	{
		ID:          "running-plan",
		Name:        "Running Plan",
		Description: "Started three months ago: first round settled, the rest overdue",
	},
	{
		ID:          "daily-sprint",
		Name:        "Daily Sprint",
		Description: "Two members, five daily contributions, starting tomorrow",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario creates the plans of a scenario for the caller.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	bankerID, ok := h.banker(w, r)
	if !ok {
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	now := h.now()

	var (
		plan *pardna.Plan
		err  error
	)
	switch req.ScenarioID {
	case "monthly-circle":
		plan, err = h.loadMonthlyCircleScenario(ctx, bankerID, now)
	case "weekly-empty":
		plan, err = h.loadWeeklyEmptyScenario(ctx, bankerID, now)
	case "running-plan":
		plan, err = h.loadRunningPlanScenario(ctx, bankerID, now)
	case "daily-sprint":
		plan, err = h.loadDailySprintScenario(ctx, bankerID, now)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanDTO(*plan, now))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyCircleScenario(ctx context.Context, bankerID string, now time.Time) (*pardna.Plan, error) {
	start := generic.StartOfDay(generic.AddInterval(now, generic.FrequencyMonthly, 1))
	duration := 3
	return h.Manager.CreatePlanLedger(ctx, pardna.CreatePlanRequest{
		BankerID:  bankerID,
		Name:      "Monthly Circle",
		Frequency: generic.FrequencyMonthly,
		Participants: []pardna.ParticipantInput{
			{Name: "Alice Johnson", Email: "alice@example.com"},
			{Name: "Marcus Brown", Email: "marcus@example.com"},
			{Name: "Grace Campbell", Email: "grace@example.com"},
		},
		StartDate:          start,
		Duration:           &duration,
		ContributionAmount: generic.MustAmount("100"),
		BankerFee:          generic.MustAmount("10"),
	})
}

func (h *Handler) loadWeeklyEmptyScenario(ctx context.Context, bankerID string, now time.Time) (*pardna.Plan, error) {
	duration := 4
	return h.Manager.CreatePlanLedger(ctx, pardna.CreatePlanRequest{
		BankerID:           bankerID,
		Name:               "Weekly Savers",
		Frequency:          generic.FrequencyWeekly,
		StartDate:          generic.StartOfDay(generic.AddInterval(now, generic.FrequencyWeekly, 1)),
		Duration:           &duration,
		ContributionAmount: generic.MustAmount("20"),
	})
}

// loadRunningPlanScenario backdates the start, then settles every payment
// of the first period so the plan shows a mix of settled and overdue.
func (h *Handler) loadRunningPlanScenario(ctx context.Context, bankerID string, now time.Time) (*pardna.Plan, error) {
	duration := 6
	plan, err := h.Manager.CreatePlanLedger(ctx, pardna.CreatePlanRequest{
		BankerID:  bankerID,
		Name:      "Running Plan",
		Frequency: generic.FrequencyMonthly,
		Participants: []pardna.ParticipantInput{
			{Name: "Devon Reid", Email: "devon@example.com"},
			{Name: "Simone Clarke", Email: "simone@example.com"},
		},
		StartDate:          generic.StartOfDay(generic.AddInterval(now, generic.FrequencyMonthly, -3)),
		Duration:           &duration,
		ContributionAmount: generic.MustAmount("250"),
	})
	if err != nil {
		return nil, err
	}

	for _, payment := range plan.Ledger.Periods[0].Payments {
		if _, err := h.Manager.SetPaymentSettled(ctx, payment.ID, true); err != nil {
			return nil, err
		}
	}
	return h.Manager.GetPlan(ctx, plan.ID)
}

func (h *Handler) loadDailySprintScenario(ctx context.Context, bankerID string, now time.Time) (*pardna.Plan, error) {
	duration := 5
	return h.Manager.CreatePlanLedger(ctx, pardna.CreatePlanRequest{
		BankerID:  bankerID,
		Name:      "Daily Sprint",
		Frequency: generic.FrequencyDaily,
		Participants: []pardna.ParticipantInput{
			{Name: "Kemar Lewis", Email: "kemar@example.com"},
			{Name: "Tanya Morgan", Email: "tanya@example.com"},
		},
		StartDate:          generic.StartOfDay(generic.AddInterval(now, generic.FrequencyDaily, 1)),
		Duration:           &duration,
		ContributionAmount: generic.MustAmount("5"),
	})
}
