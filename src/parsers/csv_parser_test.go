package parsers

import (
	"os"
	"strings"
	"testing"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestParseInvestmentCSV(t *testing.T) {
	input := strings.Join([]string{
		"Asset Name,Description,Quantity,Price,Date,Currency",
		"Apple Inc,Buy 10 shares,10,170.50,2024-02-01,USD",
		"Galp Energia,Compra,5,\"1.234,56\",2024-02-02,EUR",
		"Apple Inc,Dividend,,0.24,2024-04-15,USD",
	}, "\n")

	rows, err := ParseInvestmentCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Apple Inc", rows[0].AssetName)
	assert.Equal(t, "Buy 10 shares", rows[0].Description)
	assert.Equal(t, 10.0, rows[0].Quantity)
	assert.Equal(t, 170.50, rows[0].Price)
	assert.Equal(t, "2024-02-01", rows[0].Date)
	assert.Equal(t, "USD", rows[0].Currency)

	assert.Equal(t, 1234.56, rows[1].Price, "European decimal notation is accepted")
	assert.Equal(t, 0.0, rows[2].Quantity, "empty numeric cells default to zero")
}

func TestParseInvestmentCSVHeaderAliases(t *testing.T) {
	input := strings.Join([]string{
		"product,details,qty,unit price,trade date,ccy",
		"Shell PLC,sell,2,30.10,2024-03-01,GBP",
	}, "\n")

	rows, err := ParseInvestmentCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Shell PLC", rows[0].AssetName)
	assert.Equal(t, "sell", rows[0].Description)
	assert.Equal(t, 2.0, rows[0].Quantity)
	assert.Equal(t, "GBP", rows[0].Currency)
}

func TestParseInvestmentCSVSkipsUnparseableRows(t *testing.T) {
	input := strings.Join([]string{
		"asset_name,description,quantity,price,date,currency",
		"Apple Inc,buy,not-a-number,170.50,2024-02-01,USD",
		"Apple Inc,buy,1,170.50,2024-02-01,USD",
	}, "\n")

	rows, err := ParseInvestmentCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1, "the bad row is skipped, not fatal")
	assert.Equal(t, 1.0, rows[0].Quantity)
}

func TestParseInvestmentCSVRequiresDescriptionColumn(t *testing.T) {
	input := "foo,bar\n1,2\n"
	_, err := ParseInvestmentCSV(strings.NewReader(input))
	require.Error(t, err)
}
