package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		frequency models.Frequency
		want      string
	}{
		{"daily", "2024-03-01", models.FrequencyDaily, "2024-03-02"},
		{"weekly", "2024-03-01", models.FrequencyWeekly, "2024-03-08"},
		{"monthly", "2024-03-01", models.FrequencyMonthly, "2024-04-01"},
		{"monthly rolls over short months", "2024-01-31", models.FrequencyMonthly, "2024-03-02"},
		{"yearly", "2024-03-01", models.FrequencyYearly, "2025-03-01"},
		{"yearly from leap day", "2024-02-29", models.FrequencyYearly, "2025-03-01"},
		{"unknown falls back to monthly", "2024-03-01", models.Frequency("biweekly"), "2024-04-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, err := time.Parse(models.DateLayout, tt.date)
			assert.NoError(t, err)
			got := Advance(date, tt.frequency)
			assert.Equal(t, tt.want, got.Format(models.DateLayout))
		})
	}
}

type RecurringSuite struct {
	suite.Suite
	db  *sql.DB
	svc RecurringService
}

func (s *RecurringSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.svc = NewRecurringService(s.db)
}

func newSeries(startDate string, frequency models.Frequency) *models.RecurringTransaction {
	return &models.RecurringTransaction{
		UserID:        1,
		BankAccountID: 7,
		Type:          models.TypeExpense,
		Value:         50,
		Description:   "Gym membership",
		Frequency:     frequency,
		StartDate:     startDate,
	}
}

func (s *RecurringSuite) TestCreateWithDueStartFiresImmediately() {
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)

	firstTx, err := s.svc.Create(series, today)
	s.Require().NoError(err)
	s.Require().NotNil(firstTx)

	s.Equal("2024-01-01", firstTx.TransactionDate, "first occurrence is dated at the start date")
	s.Equal("Gym membership (first occurrence)", firstTx.Description)
	s.Equal("2024-02-01", series.NextOccurrenceDate)
	s.NotZero(series.ID)
	s.Equal(1, countRows(s.T(), s.db, "transactions"))
	s.Equal(1, countRows(s.T(), s.db, "recurring_transactions"))
}

func (s *RecurringSuite) TestCreateWithFutureStartDoesNotFire() {
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-02-01", models.FrequencyMonthly)

	firstTx, err := s.svc.Create(series, today)
	s.Require().NoError(err)

	s.Nil(firstTx)
	s.Equal("2024-02-01", series.NextOccurrenceDate, "a future start simply becomes the next occurrence")
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
	s.Equal(1, countRows(s.T(), s.db, "recurring_transactions"))
}

func (s *RecurringSuite) TestCreateWithPassedEndDateDoesNotFire() {
	today := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.EndDate = "2024-02-01"

	firstTx, err := s.svc.Create(series, today)
	s.Require().NoError(err)

	s.Nil(firstTx)
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
}

func (s *RecurringSuite) TestCreateRejections() {
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.Value = 0
	_, err := s.svc.Create(series, today)
	s.ErrorIs(err, ErrInvalidValue)

	series = newSeries("2024-01-01", models.FrequencyMonthly)
	series.Type = "transfer"
	_, err = s.svc.Create(series, today)
	s.ErrorIs(err, ErrInvalidType)

	series = newSeries("2024-01-01", models.Frequency("fortnightly"))
	_, err = s.svc.Create(series, today)
	s.ErrorIs(err, ErrInvalidFrequency)

	series = newSeries("2024-01-01", models.FrequencyMonthly)
	series.BankAccountID = 0
	_, err = s.svc.Create(series, today)
	s.ErrorIs(err, ErrNoBankAccount)

	series = newSeries("01/01/2024", models.FrequencyMonthly)
	_, err = s.svc.Create(series, today)
	s.ErrorIs(err, ErrInvalidDate)

	s.Equal(0, countRows(s.T(), s.db, "transactions"))
	s.Equal(0, countRows(s.T(), s.db, "recurring_transactions"))
}

func (s *RecurringSuite) TestExecuteNowAdvancesFromStoredNext() {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-03-01", models.FrequencyWeekly)
	series.NextOccurrenceDate = "2024-03-01"

	tx, err := s.svc.ExecuteNow(series, today)
	s.Require().NoError(err)
	s.Require().NotNil(tx)

	s.Equal("2024-03-05", tx.TransactionDate, "manual execution is dated today")
	s.Equal("Gym membership (executed manually)", tx.Description)
	s.Equal("2024-03-08", series.NextOccurrenceDate, "schedule advances from the stored next, not from today")
}

func (s *RecurringSuite) TestExecuteNowTwiceSameDayFiresTwice() {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-03-01", models.FrequencyWeekly)
	series.NextOccurrenceDate = "2024-03-01"

	_, err := s.svc.ExecuteNow(series, today)
	s.Require().NoError(err)
	_, err = s.svc.ExecuteNow(series, today)
	s.Require().NoError(err)

	s.Equal(2, countRows(s.T(), s.db, "transactions"))
	s.Equal("2024-03-15", series.NextOccurrenceDate)
}

func (s *RecurringSuite) TestExecuteNowRejectsInactiveSeries() {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.NextOccurrenceDate = "2024-03-01"
	series.EndDate = "2024-02-01"

	tx, err := s.svc.ExecuteNow(series, today)
	s.ErrorIs(err, ErrSeriesInactive)
	s.Nil(tx)
	s.Equal(0, countRows(s.T(), s.db, "transactions"))
}

func (s *RecurringSuite) TestPauseAndReactivate() {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)
	_, err := s.svc.Create(series, today.AddDate(0, -1, 0))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Pause(series, today))
	s.Equal("2024-03-05", series.EndDate)
	s.False(series.IsActive(today.AddDate(0, 0, 1)), "paused series is inactive from tomorrow")

	later := today.AddDate(0, 0, 10)
	s.Require().NoError(s.svc.Reactivate(series, later))
	s.Empty(series.EndDate)
	s.Equal("2024-03-15", series.NextOccurrenceDate, "reactivation resets the schedule to today")
	s.True(series.IsActive(later))
}

func (s *RecurringSuite) TestUpdateFrequencyChangeRebasesFromToday() {
	today := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.ID = 1
	series.NextOccurrenceDate = "2024-07-01"

	err := s.svc.Update(series, RecurringUpdate{
		BankAccountID: 7,
		Type:          models.TypeExpense,
		Value:         60,
		Description:   "Gym membership",
		Frequency:     models.FrequencyWeekly,
		StartDate:     "2024-01-01",
	}, today)
	s.Require().NoError(err)

	s.Equal(models.FrequencyWeekly, series.Frequency)
	s.Equal(60.0, series.Value)
	s.Equal("2024-06-17", series.NextOccurrenceDate, "frequency change discards the old phase")
}

func (s *RecurringSuite) TestUpdateLiftingEndDateBumpsDueNextToTomorrow() {
	today := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.ID = 1
	series.EndDate = "2024-05-01"
	series.NextOccurrenceDate = "2024-05-01"

	err := s.svc.Update(series, RecurringUpdate{
		BankAccountID: 7,
		Type:          models.TypeExpense,
		Value:         50,
		Description:   "Gym membership",
		Frequency:     models.FrequencyMonthly,
		StartDate:     "2024-01-01",
	}, today)
	s.Require().NoError(err)

	s.Empty(series.EndDate)
	s.Equal("2024-06-11", series.NextOccurrenceDate, "an overdue schedule never fires retroactively")
}

func TestRecurringService(t *testing.T) {
	suite.Run(t, new(RecurringSuite))
}

func TestRecurringIsActive(t *testing.T) {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	series := newSeries("2024-01-01", models.FrequencyMonthly)
	assert.True(t, series.IsActive(today), "no end date means always active")

	series.EndDate = "2024-03-05"
	assert.True(t, series.IsActive(today), "end date today is still active")

	series.EndDate = "2024-03-04"
	assert.False(t, series.IsActive(today))
}

func TestRecurringDaysOverdue(t *testing.T) {
	today := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	series := newSeries("2024-01-01", models.FrequencyMonthly)
	series.NextOccurrenceDate = "2024-03-01"
	assert.Equal(t, 4, series.DaysOverdue(today))

	series.NextOccurrenceDate = "2024-03-10"
	assert.Equal(t, 0, series.DaysOverdue(today), "a future occurrence is never overdue")
}
