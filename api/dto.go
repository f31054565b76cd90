/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the pardna domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DERIVED FIELDS:
  end_date and overdue are never stored. They are computed when a DTO is
  built, from the plan's ledger frequency and the handler clock.

FORMATS:
  Dates:   "2006-01-02" on output. Input accepts that or RFC 3339
           (converted to UTC).
  Amounts: decimal strings ("25.50"). Input also accepts JSON numbers.
           On PATCH an explicit null clears the amount; omitting it
           leaves it unchanged.

VALIDATION:
  Validation is done by the pardna request types, not in DTOs. DTOs are
  pure data carriers; toCreateRequest/toUpdateRequest only parse formats.

SEE ALSO:
  - handlers.go: Uses these types
  - pardna/request.go: Domain request types
*/
package api

import (
	"strings"
	"time"

	"github.com/pardna/ledger-engine/generic"
	"github.com/pardna/ledger-engine/pardna"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type ParticipantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreatePlanRequest is the body of POST /api/plans.
type CreatePlanRequest struct {
	Name               string               `json:"name"`
	Frequency          string               `json:"frequency,omitempty"`
	Participants       []ParticipantRequest `json:"participants"`
	StartDate          string               `json:"start_date"`
	Duration           *int                 `json:"duration,omitempty"`
	ContributionAmount decimal.NullDecimal  `json:"contribution_amount"`
	BankerFee          decimal.NullDecimal  `json:"banker_fee"`
}

// UpdatePlanRequest is the body of PATCH /api/plans/{id}. Omitted fields
// are left unchanged.
type UpdatePlanRequest struct {
	ExpectedVersion    *int                 `json:"expected_version,omitempty"`
	Name               *string              `json:"name,omitempty"`
	Frequency          *string              `json:"frequency,omitempty"`
	StartDate          *string              `json:"start_date,omitempty"`
	Duration           *int                 `json:"duration,omitempty"`
	ContributionAmount OptionalAmount       `json:"contribution_amount"`
	BankerFee          OptionalAmount       `json:"banker_fee"`
	AddParticipants    []ParticipantRequest `json:"add_participants,omitempty"`
	RemoveParticipants []string             `json:"remove_participants,omitempty"`
}

// OptionalAmount tells an omitted amount from an explicit null.
type OptionalAmount struct {
	Set   bool
	Value decimal.NullDecimal
}

// UnmarshalJSON is only called when the field is present, null included.
func (o *OptionalAmount) UnmarshalJSON(b []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(b)
}

func (o OptionalAmount) ptr() *decimal.NullDecimal {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// SettlePaymentRequest is the body of POST /api/payments/{id}/settle.
// An empty body settles the payment.
type SettlePaymentRequest struct {
	Settled *bool `json:"settled"`
}

func (r CreatePlanRequest) toCreateRequest(bankerID string) (pardna.CreatePlanRequest, error) {
	req := pardna.CreatePlanRequest{
		BankerID:           bankerID,
		Name:               r.Name,
		Participants:       toParticipantInputs(r.Participants),
		Duration:           r.Duration,
		ContributionAmount: r.ContributionAmount,
		BankerFee:          r.BankerFee,
	}

	var problems []string
	frequency, err := generic.ParseFrequency(r.Frequency)
	if err != nil {
		problems = append(problems, err.Error())
	}
	req.Frequency = frequency

	if strings.TrimSpace(r.StartDate) != "" {
		start, err := parseDate(r.StartDate)
		if err != nil {
			problems = append(problems, err.Error())
		}
		req.StartDate = start
	}

	if len(problems) > 0 {
		return req, &pardna.ValidationError{Problems: problems}
	}
	return req, nil
}

func (r UpdatePlanRequest) toUpdateRequest(id pardna.PlanID) (pardna.UpdatePlanRequest, error) {
	req := pardna.UpdatePlanRequest{
		ID:                 id,
		ExpectedVersion:    r.ExpectedVersion,
		Name:               r.Name,
		Duration:           r.Duration,
		ContributionAmount: r.ContributionAmount.ptr(),
		BankerFee:          r.BankerFee.ptr(),
		AddParticipants:    toParticipantInputs(r.AddParticipants),
	}
	for _, id := range r.RemoveParticipants {
		req.RemoveParticipants = append(req.RemoveParticipants, pardna.ParticipantID(id))
	}

	var problems []string
	if r.Frequency != nil {
		frequency, err := generic.ParseFrequency(*r.Frequency)
		if err != nil {
			problems = append(problems, err.Error())
		} else if frequency != "" {
			req.Frequency = &frequency
		}
	}
	if r.StartDate != nil {
		start, err := parseDate(*r.StartDate)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			req.StartDate = &start
		}
	}

	if len(problems) > 0 {
		return req, &pardna.ValidationError{Problems: problems}
	}
	return req, nil
}

func toParticipantInputs(in []ParticipantRequest) []pardna.ParticipantInput {
	out := make([]pardna.ParticipantInput, 0, len(in))
	for _, p := range in {
		out = append(out, pardna.ParticipantInput{Name: p.Name, Email: p.Email})
	}
	return out
}

// parseDate accepts a calendar date (UTC midnight) or an RFC 3339
// timestamp, which is converted to UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(generic.DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, pardna.Validation("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PlanDTO represents a plan in API responses.
type PlanDTO struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	BankerID           string           `json:"banker_id"`
	Frequency          string           `json:"frequency"`
	StartDate          string           `json:"start_date"`
	EndDate            string           `json:"end_date"`
	Duration           int              `json:"duration"`
	ContributionAmount *string          `json:"contribution_amount"`
	BankerFee          *string          `json:"banker_fee"`
	Version            int              `json:"version"`
	Participants       []ParticipantDTO `json:"participants"`
	Ledger             *LedgerDTO       `json:"ledger"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type ParticipantDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LedgerDTO struct {
	ID           string      `json:"id"`
	Frequency    string      `json:"frequency"`
	PaymentCount int         `json:"payment_count"`
	Periods      []PeriodDTO `json:"periods"`
}

type PeriodDTO struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Number   int          `json:"number"`
	Payments []PaymentDTO `json:"payments"`
}

// PaymentDTO represents a payment. Overdue is computed at read time.
type PaymentDTO struct {
	ID            string     `json:"id"`
	PlanID        string     `json:"plan_id"`
	PeriodID      string     `json:"period_id"`
	ParticipantID string     `json:"participant_id"`
	Type          string     `json:"type"`
	Amount        *string    `json:"amount"`
	DueDate       string     `json:"due_date"`
	Settled       bool       `json:"settled"`
	SettledDate   *time.Time `json:"settled_date"`
	Overdue       bool       `json:"overdue"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPlanDTO(p pardna.Plan, now time.Time) PlanDTO {
	dto := PlanDTO{
		ID:                 string(p.ID),
		Name:               p.Name,
		BankerID:           p.BankerID,
		Frequency:          string(p.Frequency().OrDefault()),
		StartDate:          generic.FormatDate(p.StartDate),
		EndDate:            generic.FormatDate(p.EndDate()),
		Duration:           p.Duration,
		ContributionAmount: generic.AmountPtr(p.ContributionAmount),
		BankerFee:          generic.AmountPtr(p.BankerFee),
		Version:            p.Version,
		Participants:       make([]ParticipantDTO, 0, len(p.Participants)),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	for _, participant := range p.Participants {
		dto.Participants = append(dto.Participants, ParticipantDTO{
			ID:    string(participant.ID),
			Name:  participant.Name,
			Email: participant.Email,
		})
	}
	if p.Ledger != nil {
		ledger := toLedgerDTO(*p.Ledger, now)
		dto.Ledger = &ledger
	}
	return dto
}

func toLedgerDTO(l pardna.Ledger, now time.Time) LedgerDTO {
	dto := LedgerDTO{
		ID:           string(l.ID),
		Frequency:    string(l.Frequency),
		PaymentCount: l.PaymentCount(),
		Periods:      make([]PeriodDTO, 0, len(l.Periods)),
	}
	for _, period := range l.Periods {
		pd := PeriodDTO{
			ID:       string(period.ID),
			Type:     string(period.Type),
			Number:   period.Number,
			Payments: make([]PaymentDTO, 0, len(period.Payments)),
		}
		for _, payment := range period.Payments {
			pd.Payments = append(pd.Payments, toPaymentDTO(payment, now))
		}
		dto.Periods = append(dto.Periods, pd)
	}
	return dto
}

func toPaymentDTO(p pardna.Payment, now time.Time) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		PlanID:        string(p.PlanID),
		PeriodID:      string(p.PeriodID),
		ParticipantID: string(p.ParticipantID),
		Type:          string(p.Type),
		Amount:        generic.AmountPtr(p.Amount),
		DueDate:       generic.FormatDate(p.DueDate),
		Settled:       p.Settled,
		SettledDate:   p.SettledDate,
		Overdue:       p.Overdue(now),
	}
}
