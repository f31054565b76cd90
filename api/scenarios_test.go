package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	api := newTestAPI(t, day(2024, time.June, 15))

	rec := api.do(t, http.MethodGet, "/api/scenarios", testBanker, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	api := newTestAPI(t, day(2024, time.June, 15))

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/scenarios/load", testBanker, map[string]string{"scenario_id": s.ID})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			plan := decode[PlanDTO](t, rec)
			assert.Equal(t, testBanker, plan.BankerID)
			assert.NotNil(t, plan.Ledger)
		})
	}

	plans := decode[[]PlanDTO](t, api.do(t, http.MethodGet, "/api/plans", testBanker, nil))
	assert.Len(t, plans, len(scenarios))
}

func TestScenario_RunningPlan(t *testing.T) {
	// GIVEN: The running-plan scenario loaded on 2024-06-15
	// THEN: It started 2024-03-15, the first round is settled, the second
	//       is overdue and the third falls due today

	api := newTestAPI(t, day(2024, time.June, 15))

	rec := api.do(t, http.MethodPost, "/api/scenarios/load", testBanker, map[string]string{"scenario_id": "running-plan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[PlanDTO](t, rec)

	assert.Equal(t, "2024-03-15", plan.StartDate)
	assert.Equal(t, "2024-09-15", plan.EndDate)
	require.Len(t, plan.Ledger.Periods, 6)

	for _, p := range plan.Ledger.Periods[0].Payments {
		assert.True(t, p.Settled)
		assert.False(t, p.Overdue)
	}
	for _, p := range plan.Ledger.Periods[1].Payments {
		assert.False(t, p.Settled)
		assert.True(t, p.Overdue)
	}
	for _, p := range plan.Ledger.Periods[2].Payments {
		assert.Equal(t, "2024-06-15", p.DueDate)
		assert.False(t, p.Overdue)
	}

	// Financial edits are refused on a running plan
	rec = api.do(t, http.MethodPatch, "/api/plans/"+plan.ID, testBanker, map[string]any{"duration": 12})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoadScenario_Errors(t *testing.T) {
	api := newTestAPI(t, day(2024, time.June, 15))

	rec := api.do(t, http.MethodPost, "/api/scenarios/load", testBanker, map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/scenarios/load", "", map[string]string{"scenario_id": "daily-sprint"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/scenarios/load", testBanker, `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
