package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMonetaryValue(t *testing.T) {
	assert.NoError(t, ValidateMonetaryValue(10.50, "value", false))
	assert.NoError(t, ValidateMonetaryValue(0, "value", true))

	assert.ErrorIs(t, ValidateMonetaryValue(0, "value", false), ErrValidationFailed)
	assert.ErrorIs(t, ValidateMonetaryValue(-1, "value", false), ErrValidationFailed)
	assert.ErrorIs(t, ValidateMonetaryValue(MaxMonetaryValue+1, "value", false), ErrValidationFailed)
}

func TestValidateDateString(t *testing.T) {
	parsed, err := ValidateDateString("2024-02-29", "date", false)
	assert.NoError(t, err)
	assert.Equal(t, 29, parsed.Day())

	_, err = ValidateDateString("", "date", true)
	assert.NoError(t, err, "optional dates may be empty")

	_, err = ValidateDateString("", "date", false)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = ValidateDateString("01/02/2024", "date", false)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = ValidateDateString("2023-02-29", "date", false)
	assert.ErrorIs(t, err, ErrValidationFailed, "normalized round-trip catches impossible dates")
}

func TestValidateTransactionType(t *testing.T) {
	assert.NoError(t, ValidateTransactionType("income"))
	assert.NoError(t, ValidateTransactionType("expense"))
	assert.ErrorIs(t, ValidateTransactionType("transfer"), ErrValidationFailed)
}

func TestValidateFrequency(t *testing.T) {
	for _, f := range []string{"daily", "weekly", "monthly", "yearly"} {
		assert.NoError(t, ValidateFrequency(f))
	}
	assert.ErrorIs(t, ValidateFrequency("fortnightly"), ErrValidationFailed)
}

func TestValidateCurrencyCode(t *testing.T) {
	assert.NoError(t, ValidateCurrencyCode("EUR"))
	assert.NoError(t, ValidateCurrencyCode(" usd "), "codes are upcased before checking")
	assert.NoError(t, ValidateCurrencyCode(""), "empty falls back to the default elsewhere")
	assert.Error(t, ValidateCurrencyCode("EURO"))
	assert.Error(t, ValidateCurrencyCode("E1R"))
}
