package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/douglassdm/pulsefinance/backend/src/models"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

// Field length limits.
const (
	DefaultMaxStringLength = 255
	MaxNameLength          = 100
	MaxDescriptionLength   = 1024
	MaxCurrencyCodeLength  = 3

	// MaxMonetaryValue bounds any single amount accepted from a client.
	MaxMonetaryValue = 1_000_000_000
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateName checks a user-supplied display name (account, debt, goal).
func ValidateName(s, fieldName string) error {
	if err := ValidateStringNotEmpty(s, fieldName); err != nil {
		return err
	}
	return ValidateStringMaxLength(s, MaxNameLength, fieldName)
}

// ValidateMonetaryValue checks an amount supplied by a client. Zero is
// allowed only when allowZero is set (e.g. initial goal progress).
func ValidateMonetaryValue(v float64, fieldName string, allowZero bool) error {
	if v < 0 {
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if v == 0 && !allowZero {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	if v > MaxMonetaryValue {
		return fmt.Errorf("%w: %s exceeds the maximum supported value", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateDateString checks a date in YYYY-MM-DD storage format. Empty
// strings are allowed when optional is set (unset due/end dates).
func ValidateDateString(s, fieldName string, optional bool) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		if optional {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	t, err := time.Parse(models.DateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD): %v", ErrValidationFailed, fieldName, s, err)
	}
	if t.Format(models.DateLayout) != trimmed {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is an invalid date (e.g., day/month mismatch)", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

// ValidateTransactionType checks the income/expense discriminator.
func ValidateTransactionType(s string) error {
	if !models.IsValidTransactionType(s) {
		return fmt.Errorf("%w: transaction type must be 'income' or 'expense', got '%s'", ErrValidationFailed, s)
	}
	return nil
}

// ValidateFrequency checks a recurring-series cadence.
func ValidateFrequency(s string) error {
	if !models.Frequency(s).IsValid() {
		return fmt.Errorf("%w: frequency must be one of daily, weekly, monthly, yearly; got '%s'", ErrValidationFailed, s)
	}
	return nil
}

// ValidateCurrencyCode checks if currency code is 3 uppercase letters.
// Currency is a label only; no conversion is performed anywhere.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxCurrencyCodeLength, "Currency Code"); err != nil {
		return err
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: Currency Code ('%s') is not in the expected format (3 uppercase letters)", ErrValidationFailed, s)
	}
	return nil
}
