package generic

// =============================================================================
// PERIOD TYPE - The unit a single ledger period covers
// =============================================================================

// PeriodType mirrors the frequency a ledger was generated with.
type PeriodType string

const (
	PeriodDay   PeriodType = "DAY"
	PeriodWeek  PeriodType = "WEEK"
	PeriodMonth PeriodType = "MONTH"
)

// PeriodTypeFor maps a frequency onto its period type.
// Empty or unknown frequencies map to MONTH, matching AddInterval.
func PeriodTypeFor(f Frequency) PeriodType {
	switch f {
	case FrequencyDaily:
		return PeriodDay
	case FrequencyWeekly:
		return PeriodWeek
	default:
		return PeriodMonth
	}
}

// Frequency is the inverse of PeriodTypeFor.
func (p PeriodType) Frequency() Frequency {
	switch p {
	case PeriodDay:
		return FrequencyDaily
	case PeriodWeek:
		return FrequencyWeekly
	default:
		return FrequencyMonthly
	}
}
