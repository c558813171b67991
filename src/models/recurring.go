package models

import "time"

// Frequency is the cadence of a recurring transaction series.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTransaction is a series definition that materializes concrete
// transactions when it fires.
type RecurringTransaction struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BankAccountID int64     `json:"bank_account_id"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	Type          string    `json:"type"`
	Value         float64   `json:"value"`
	Description   string    `json:"description"`
	Frequency     Frequency `json:"frequency"`
	StartDate     string    `json:"start_date"` // YYYY-MM-DD

	// EndDate pauses the series once it is on or before today. Empty means
	// the series runs until deleted.
	EndDate string `json:"end_date,omitempty"`

	// NextOccurrenceDate is the next date a materialized transaction should
	// be created. It is strictly advanced on every fire, never repeated.
	NextOccurrenceDate string `json:"next_occurrence_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the series may still fire: no end date, or an end
// date that has not yet passed relative to today.
func (rt *RecurringTransaction) IsActive(today time.Time) bool {
	if rt.EndDate == "" {
		return true
	}
	end, err := time.Parse(DateLayout, rt.EndDate)
	if err != nil {
		return false
	}
	return !end.Before(truncateToDay(today))
}

// DaysOverdue returns how many days the next occurrence is behind today.
// Zero when the series is on schedule. Display-only; an overdue series never
// fires on its own.
func (rt *RecurringTransaction) DaysOverdue(today time.Time) int {
	next, err := time.Parse(DateLayout, rt.NextOccurrenceDate)
	if err != nil {
		return 0
	}
	days := int(truncateToDay(today).Sub(next).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
