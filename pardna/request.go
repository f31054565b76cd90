/*
request.go - Typed operation inputs

PURPOSE:
  Every engine operation takes an explicit request struct. Optional fields
  are pointers (or decimal.NullDecimal) so "not supplied" is distinct from
  a zero value. Validate() runs before anything touches the store.

FINANCIALLY IMPACTING:
  An update is financially impacting when it supplies any of
  frequency, start date, contribution amount, banker fee, duration,
  or adds/removes participants. Supplying a field counts as changing it,
  even if the value is the same. Name is cosmetic.

DATES:
  Start dates are held in UTC. The stores reload them in UTC, so a date
  left in another zone would generate a different schedule on
  regeneration than it did on create.
*/
package pardna

import (
	"fmt"
	"strings"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// CreatePlanRequest creates a plan with its first ledger.
type CreatePlanRequest struct {
	BankerID           string
	Name               string
	Frequency          generic.Frequency
	Participants       []ParticipantInput
	StartDate          time.Time
	Duration           *int
	ContributionAmount decimal.NullDecimal
	BankerFee          decimal.NullDecimal
}

// Validate checks the request and normalises participant emails and the
// start date (to UTC) in place.
func (r *CreatePlanRequest) Validate() error {
	r.StartDate = r.StartDate.UTC()
	var problems []string
	if strings.TrimSpace(r.BankerID) == "" {
		problems = append(problems, "banker is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.Frequency != "" && !r.Frequency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown frequency %q", r.Frequency))
	}
	if r.StartDate.IsZero() {
		problems = append(problems, "start date is required")
	}
	if r.Duration != nil && *r.Duration < 1 {
		problems = append(problems, "duration must be at least 1")
	}
	problems = append(problems, amountProblems("contribution amount", r.ContributionAmount)...)
	problems = append(problems, amountProblems("banker fee", r.BankerFee)...)

	var participantProblems []string
	r.Participants, participantProblems = normalizeParticipants(r.Participants, nil)
	problems = append(problems, participantProblems...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// UpdatePlanRequest edits a plan. Nil fields are left alone. A non-nil
// amount that is not Valid clears the stored amount.
type UpdatePlanRequest struct {
	ID PlanID

	// ExpectedVersion, when set, must equal the plan's current version.
	ExpectedVersion *int

	Name               *string
	Frequency          *generic.Frequency
	StartDate          *time.Time
	Duration           *int
	ContributionAmount *decimal.NullDecimal
	BankerFee          *decimal.NullDecimal
	AddParticipants    []ParticipantInput
	RemoveParticipants []ParticipantID
}

// Validate checks the request and normalises added participants and the
// start date in place.
func (r *UpdatePlanRequest) Validate() error {
	if r.StartDate != nil {
		start := r.StartDate.UTC()
		r.StartDate = &start
	}
	var problems []string
	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if r.Frequency != nil && !r.Frequency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown frequency %q", *r.Frequency))
	}
	if r.StartDate != nil && r.StartDate.IsZero() {
		problems = append(problems, "start date must not be empty")
	}
	if r.Duration != nil && *r.Duration < 1 {
		problems = append(problems, "duration must be at least 1")
	}
	if r.ContributionAmount != nil {
		problems = append(problems, amountProblems("contribution amount", *r.ContributionAmount)...)
	}
	if r.BankerFee != nil {
		problems = append(problems, amountProblems("banker fee", *r.BankerFee)...)
	}
	seen := make(map[ParticipantID]bool)
	for _, id := range r.RemoveParticipants {
		if id == "" {
			problems = append(problems, "participant id to remove must not be empty")
			continue
		}
		if seen[id] {
			problems = append(problems, fmt.Sprintf("participant %s listed twice for removal", id))
		}
		seen[id] = true
	}

	var participantProblems []string
	r.AddParticipants, participantProblems = normalizeParticipants(r.AddParticipants, nil)
	problems = append(problems, participantProblems...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// FinancialChanges names the financially impacting fields the request sets.
func (r UpdatePlanRequest) FinancialChanges() []string {
	var fields []string
	if r.Frequency != nil {
		fields = append(fields, "frequency")
	}
	if r.StartDate != nil {
		fields = append(fields, "start date")
	}
	if r.ContributionAmount != nil {
		fields = append(fields, "contribution amount")
	}
	if r.BankerFee != nil {
		fields = append(fields, "banker fee")
	}
	if r.Duration != nil {
		fields = append(fields, "duration")
	}
	if len(r.AddParticipants) > 0 || len(r.RemoveParticipants) > 0 {
		fields = append(fields, "participants")
	}
	return fields
}

// FinanciallyImpacting reports whether the update forces a new ledger.
func (r UpdatePlanRequest) FinanciallyImpacting() bool {
	return len(r.FinancialChanges()) > 0
}

func amountProblems(field string, a decimal.NullDecimal) []string {
	if a.Valid && a.Decimal.IsNegative() {
		return []string{field + " must not be negative"}
	}
	return nil
}

// normalizeParticipants trims names, normalises emails and rejects
// blanks and duplicates. existing holds emails already taken.
func normalizeParticipants(inputs []ParticipantInput, existing map[string]bool) ([]ParticipantInput, []string) {
	var problems []string
	seen := make(map[string]bool, len(inputs))
	for email := range existing {
		seen[email] = true
	}
	out := make([]ParticipantInput, 0, len(inputs))
	for i, in := range inputs {
		p := in.Normalized()
		switch {
		case p.Name == "":
			problems = append(problems, fmt.Sprintf("participant %d: name is required", i+1))
		case p.Email == "" || !strings.Contains(p.Email, "@"):
			problems = append(problems, fmt.Sprintf("participant %d: valid email is required", i+1))
		case seen[p.Email]:
			problems = append(problems, fmt.Sprintf("participant %s is listed more than once", p.Email))
		}
		seen[p.Email] = true
		out = append(out, p)
	}
	return out, problems
}
