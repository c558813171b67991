package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/models"
)

type recurringServiceImpl struct {
	db *sql.DB
}

// NewRecurringService creates a new instance of RecurringService.
func NewRecurringService(db *sql.DB) RecurringService {
	return &recurringServiceImpl{db: db}
}

// Advance returns the occurrence date that follows date for the given
// frequency. Monthly and yearly steps follow calendar rollover rules (e.g.
// Jan 31 + 1 month = Mar 2/3). An unknown frequency is treated as monthly.
func Advance(date time.Time, frequency models.Frequency) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return date.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return date.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		return date.AddDate(0, 1, 0)
	case models.FrequencyYearly:
		return date.AddDate(1, 0, 0)
	default:
		return date.AddDate(0, 1, 0)
	}
}

func (s *recurringServiceImpl) validate(series *models.RecurringTransaction) error {
	if series.Value <= 0 {
		return ErrInvalidValue
	}
	if !models.IsValidTransactionType(series.Type) {
		return ErrInvalidType
	}
	if !series.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if series.BankAccountID == 0 {
		return ErrNoBankAccount
	}
	return nil
}

// Create persists a new series. When the start date is already due (start on
// or before today, and the end date, if any, is after today) the first
// occurrence fires immediately: one transaction dated at the start date is
// inserted and the schedule advances one step past it. A future start date
// simply becomes the next occurrence, with no transaction yet.
//
// The first-occurrence insert and the series insert are two independent
// writes; a failure between them leaves the transaction recorded without a
// series row.
func (s *recurringServiceImpl) Create(series *models.RecurringTransaction, today time.Time) (*models.Transaction, error) {
	if err := s.validate(series); err != nil {
		return nil, err
	}

	start, err := time.Parse(models.DateLayout, series.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date %q", ErrInvalidDate, series.StartDate)
	}
	day := dateOnly(today)

	fireNow := !start.After(day)
	if series.EndDate != "" {
		end, err := time.Parse(models.DateLayout, series.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date %q", ErrInvalidDate, series.EndDate)
		}
		if !end.After(day) {
			fireNow = false
		}
	}

	var firstTx *models.Transaction
	if fireNow {
		firstTx = s.materialize(series, start, series.Description+" (first occurrence)", today)
		if err := insertTransaction(s.db, firstTx); err != nil {
			logger.L.Error("Failed to insert first occurrence for recurring series", "userID", series.UserID, "error", err)
			return nil, fmt.Errorf("inserting first occurrence: %w", err)
		}
		series.NextOccurrenceDate = Advance(start, series.Frequency).Format(models.DateLayout)
	} else {
		series.NextOccurrenceDate = series.StartDate
	}

	series.CreatedAt = today
	series.UpdatedAt = today
	if err := s.insertSeries(series); err != nil {
		if firstTx != nil {
			// The first occurrence is already recorded with no series row
			// behind it. Surfaced, not compensated.
			logger.L.Error("Series insert failed after first occurrence was recorded",
				"userID", series.UserID, "transactionID", firstTx.ID, "error", err)
		}
		return nil, fmt.Errorf("inserting recurring series: %w", err)
	}

	logger.L.Info("Recurring series created",
		"seriesID", series.ID, "userID", series.UserID, "frequency", series.Frequency,
		"firedImmediately", fireNow, "nextOccurrence", series.NextOccurrenceDate)
	return firstTx, nil
}

// ExecuteNow fires the series manually: it inserts one transaction dated
// today and advances the schedule one step past the stored next occurrence.
// Calling this twice in one day creates two transactions; that is accepted
// UI-triggered behavior.
func (s *recurringServiceImpl) ExecuteNow(series *models.RecurringTransaction, today time.Time) (*models.Transaction, error) {
	if !series.IsActive(today) {
		return nil, ErrSeriesInactive
	}

	next, err := time.Parse(models.DateLayout, series.NextOccurrenceDate)
	if err != nil {
		return nil, fmt.Errorf("%w: next_occurrence_date %q", ErrInvalidDate, series.NextOccurrenceDate)
	}

	tx := s.materialize(series, dateOnly(today), series.Description+" (executed manually)", today)
	if err := insertTransaction(s.db, tx); err != nil {
		logger.L.Error("Failed to insert manual occurrence", "seriesID", series.ID, "error", err)
		return nil, fmt.Errorf("inserting manual occurrence: %w", err)
	}

	series.NextOccurrenceDate = Advance(next, series.Frequency).Format(models.DateLayout)
	series.UpdatedAt = today
	if err := s.updateSchedule(series, today); err != nil {
		logger.L.Error("Schedule advance failed after manual occurrence was recorded",
			"seriesID", series.ID, "transactionID", tx.ID, "error", err)
		return nil, fmt.Errorf("advancing schedule (transaction %d already recorded): %w", tx.ID, err)
	}

	logger.L.Info("Recurring series executed manually",
		"seriesID", series.ID, "userID", series.UserID, "nextOccurrence", series.NextOccurrenceDate)
	return tx, nil
}

// Update replaces the stored definition. A frequency change discards the
// previous schedule's phase: the next occurrence is recomputed from today
// with the new frequency. Clearing the end date (or moving it past today)
// while the next occurrence is already due bumps it to tomorrow so the series
// does not fire retroactively.
func (s *recurringServiceImpl) Update(series *models.RecurringTransaction, upd RecurringUpdate, today time.Time) error {
	updated := *series
	updated.BankAccountID = upd.BankAccountID
	updated.CategoryID = upd.CategoryID
	updated.Type = upd.Type
	updated.Value = upd.Value
	updated.Description = upd.Description
	updated.Frequency = upd.Frequency
	updated.StartDate = upd.StartDate
	updated.EndDate = upd.EndDate
	if err := s.validate(&updated); err != nil {
		return err
	}

	day := dateOnly(today)

	if upd.Frequency != series.Frequency {
		updated.NextOccurrenceDate = Advance(day, upd.Frequency).Format(models.DateLayout)
	}

	endLifted := series.EndDate != "" && upd.EndDate == ""
	if upd.EndDate != "" {
		end, err := time.Parse(models.DateLayout, upd.EndDate)
		if err != nil {
			return fmt.Errorf("%w: end_date %q", ErrInvalidDate, upd.EndDate)
		}
		if series.EndDate != upd.EndDate && end.After(day) {
			endLifted = true
		}
	}
	if endLifted {
		next, err := time.Parse(models.DateLayout, updated.NextOccurrenceDate)
		if err == nil && !next.After(day) {
			updated.NextOccurrenceDate = day.AddDate(0, 0, 1).Format(models.DateLayout)
		}
	}

	updated.UpdatedAt = today
	_, err := s.db.Exec(`
		UPDATE recurring_transactions
		SET bank_account_id = ?, category_id = ?, type = ?, value = ?, description = ?,
		    frequency = ?, start_date = ?, end_date = ?, next_occurrence_date = ?, updated_at = ?
		WHERE id = ?`,
		updated.BankAccountID, nullableID(updated.CategoryID), updated.Type, updated.Value, updated.Description,
		updated.Frequency, updated.StartDate, nullableDate(updated.EndDate), updated.NextOccurrenceDate, updated.UpdatedAt,
		updated.ID,
	)
	if err != nil {
		logger.L.Error("Failed to update recurring series", "seriesID", series.ID, "error", err)
		return fmt.Errorf("updating recurring series: %w", err)
	}

	*series = updated
	return nil
}

// Pause deactivates the series by setting its end date to today.
func (s *recurringServiceImpl) Pause(series *models.RecurringTransaction, today time.Time) error {
	series.EndDate = dateOnly(today).Format(models.DateLayout)
	series.UpdatedAt = today
	if err := s.updateSchedule(series, today); err != nil {
		return fmt.Errorf("pausing recurring series: %w", err)
	}
	logger.L.Info("Recurring series paused", "seriesID", series.ID, "userID", series.UserID)
	return nil
}

// Reactivate clears the end date and resets the next occurrence to today,
// regardless of where the schedule previously stood.
func (s *recurringServiceImpl) Reactivate(series *models.RecurringTransaction, today time.Time) error {
	series.EndDate = ""
	series.NextOccurrenceDate = dateOnly(today).Format(models.DateLayout)
	series.UpdatedAt = today
	if err := s.updateSchedule(series, today); err != nil {
		return fmt.Errorf("reactivating recurring series: %w", err)
	}
	logger.L.Info("Recurring series reactivated", "seriesID", series.ID, "userID", series.UserID)
	return nil
}

// materialize builds the concrete transaction a firing produces.
func (s *recurringServiceImpl) materialize(series *models.RecurringTransaction, date time.Time, description string, now time.Time) *models.Transaction {
	return &models.Transaction{
		UserID:          series.UserID,
		BankAccountID:   series.BankAccountID,
		CategoryID:      series.CategoryID,
		Type:            series.Type,
		Value:           series.Value,
		Description:     description,
		TransactionDate: date.Format(models.DateLayout),
		CreatedAt:       now,
	}
}

func (s *recurringServiceImpl) insertSeries(series *models.RecurringTransaction) error {
	res, err := s.db.Exec(`
		INSERT INTO recurring_transactions
			(user_id, bank_account_id, category_id, type, value, description, frequency,
			 start_date, end_date, next_occurrence_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		series.UserID, series.BankAccountID, nullableID(series.CategoryID), series.Type, series.Value,
		series.Description, series.Frequency, series.StartDate, nullableDate(series.EndDate),
		series.NextOccurrenceDate, series.CreatedAt, series.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	series.ID = id
	return nil
}

func (s *recurringServiceImpl) updateSchedule(series *models.RecurringTransaction, now time.Time) error {
	_, err := s.db.Exec(`
		UPDATE recurring_transactions
		SET end_date = ?, next_occurrence_date = ?, updated_at = ?
		WHERE id = ?`,
		nullableDate(series.EndDate), series.NextOccurrenceDate, now, series.ID,
	)
	return err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableDate(date string) any {
	if date == "" {
		return nil
	}
	return date
}
