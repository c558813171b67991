package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCorpus(t *testing.T) {
	tests := []struct {
		name string
		row  RawImportRow
		want NormalizedInvestmentTransaction
	}{
		{
			name: "english buy",
			row:  RawImportRow{AssetName: "Apple Inc", Description: "Buy 10 shares", Quantity: 10, Price: 170.5, Date: "2024-02-01", Currency: "usd"},
			want: NormalizedInvestmentTransaction{AssetName: "APPLE", Kind: InvestmentBuy, Quantity: 10, Price: 170.5, Date: "2024-02-01", Currency: "USD"},
		},
		{
			name: "portuguese buy",
			row:  RawImportRow{AssetName: "Galp Energia", Description: "Compra de 5 ações", Quantity: 5, Price: 14.2, Date: "2024-02-01", Currency: "EUR"},
			want: NormalizedInvestmentTransaction{AssetName: "GALP ENERGIA", Kind: InvestmentBuy, Quantity: 5, Price: 14.2, Date: "2024-02-01", Currency: "EUR"},
		},
		{
			name: "english sell",
			row:  RawImportRow{AssetName: "Vanguard FTSE", Description: "Sold position", Quantity: 3, Price: 102.0, Date: "2024-03-10", Currency: ""},
			want: NormalizedInvestmentTransaction{AssetName: "VANGUARD FTSE", Kind: InvestmentSell, Quantity: 3, Price: 102.0, Date: "2024-03-10", Currency: "EUR"},
		},
		{
			name: "portuguese sell",
			row:  RawImportRow{AssetName: "EDP SA", Description: "Venda parcial", Quantity: 20, Price: 3.8, Date: "2024-03-10", Currency: "EUR"},
			want: NormalizedInvestmentTransaction{AssetName: "EDP", Kind: InvestmentSell, Quantity: 20, Price: 3.8, Date: "2024-03-10", Currency: "EUR"},
		},
		{
			name: "dividend wins over action words",
			row:  RawImportRow{AssetName: "Apple Inc", Description: "Dividend on shares bought in 2023", Quantity: 0, Price: 0.24, Date: "2024-04-15", Currency: "USD"},
			want: NormalizedInvestmentTransaction{AssetName: "APPLE", Kind: InvestmentDividend, Quantity: 0, Price: 0.24, Date: "2024-04-15", Currency: "USD"},
		},
		{
			name: "whitespace runs collapse in asset names",
			row:  RawImportRow{AssetName: "  galp   energia ", Description: "buy", Quantity: 1, Price: 14, Date: "2024-02-01", Currency: "EUR"},
			want: NormalizedInvestmentTransaction{AssetName: "GALP ENERGIA", Kind: InvestmentBuy, Quantity: 1, Price: 14, Date: "2024-02-01", Currency: "EUR"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnrecognizedRows(t *testing.T) {
	rows := []RawImportRow{
		{AssetName: "Apple Inc", Description: "Account maintenance fee", Quantity: 1, Price: 2, Date: "2024-02-01"},
		{AssetName: "Apple Inc", Description: "", Quantity: 1, Price: 2, Date: "2024-02-01"},
		{AssetName: "   ", Description: "buy", Quantity: 1, Price: 2, Date: "2024-02-01"},
	}
	for _, row := range rows {
		_, err := Classify(row)
		assert.ErrorIs(t, err, ErrUnrecognizedRow)
	}
}

func TestClassifyValidation(t *testing.T) {
	t.Run("buy requires positive quantity", func(t *testing.T) {
		_, err := Classify(RawImportRow{AssetName: "Apple", Description: "buy", Quantity: 0, Price: 2, Date: "2024-02-01"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnrecognizedRow)
	})

	t.Run("dividend allows zero quantity", func(t *testing.T) {
		_, err := Classify(RawImportRow{AssetName: "Apple", Description: "dividend", Quantity: 0, Price: 2, Date: "2024-02-01"})
		assert.NoError(t, err)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		_, err := Classify(RawImportRow{AssetName: "Apple", Description: "buy", Quantity: 1, Price: -2, Date: "2024-02-01"})
		require.Error(t, err)
	})

	t.Run("bad date rejected", func(t *testing.T) {
		_, err := Classify(RawImportRow{AssetName: "Apple", Description: "buy", Quantity: 1, Price: 2, Date: "01/02/2024"})
		require.Error(t, err)
	})
}

func TestClassifyIsPure(t *testing.T) {
	row := RawImportRow{AssetName: "Apple Inc", Description: "Buy 10", Quantity: 10, Price: 170, Date: "2024-02-01", Currency: "USD"}
	first, err1 := Classify(row)
	second, err2 := Classify(row)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestNormalizeAssetName(t *testing.T) {
	tests := map[string]string{
		"Apple Inc":        "APPLE",
		"apple inc.":       "APPLE",
		"  EDP   S.A. ":    "EDP",
		"Shell PLC":        "SHELL",
		"ASML Holding NV":  "ASML HOLDING",
		"Petrobras - ADR":  "PETROBRAS",
		"plain name":       "PLAIN NAME",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeAssetName(in), "input %q", in)
	}
}
