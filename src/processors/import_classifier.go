package processors

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/models"
)

// ErrUnrecognizedRow is returned when no classification rule matches a row.
// Unrecognized rows are reported back to the caller, never stored.
var ErrUnrecognizedRow = errors.New("unrecognized import row")

// Investment transaction kinds produced by classification.
const (
	InvestmentBuy      = "buy"
	InvestmentSell     = "sell"
	InvestmentDividend = "dividend"
)

// RawImportRow is one row of a user-supplied investment spreadsheet, as
// free text. The column meanings vary by broker export; the classifier works
// off keywords rather than a fixed schema.
type RawImportRow struct {
	AssetName   string  `json:"asset_name"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Currency    string  `json:"currency"`
}

// NormalizedInvestmentTransaction is a classified, cleaned-up import row.
type NormalizedInvestmentTransaction struct {
	AssetName string  `json:"asset_name"`
	Kind      string  `json:"kind"` // buy, sell, dividend
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Date      string  `json:"date"`
	Currency  string  `json:"currency"`
}

// Keyword rules are empirical, tuned against broker exports seen so far.
// Order matters: dividend wording often also contains the asset action words.
var classificationRules = []struct {
	kind     string
	keywords []string
}{
	{InvestmentDividend, []string{"dividend", "dividendo", "div.", "distribution"}},
	{InvestmentSell, []string{"sell", "sale", "sold", "venda", "vendeu", "alienacao"}},
	{InvestmentBuy, []string{"buy", "purchase", "bought", "compra", "comprou", "aquisicao"}},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Suffixes some exports append to asset names (exchange or share-class
// markers) that should not distinguish positions.
var assetNameSuffixes = []string{" - ADR", " ADR", " SA", " S.A.", " INC", " INC.", " LTD", " PLC", " NV", " N.V."}

// Classify maps one raw spreadsheet row to a normalized investment
// transaction. Pure: same row in, same result out. Returns
// ErrUnrecognizedRow when the description matches no rule, and a validation
// error when a matched row carries unusable numbers or dates.
func Classify(row RawImportRow) (NormalizedInvestmentTransaction, error) {
	kind, ok := classifyDescription(row.Description)
	if !ok {
		return NormalizedInvestmentTransaction{}, ErrUnrecognizedRow
	}

	name := NormalizeAssetName(row.AssetName)
	if name == "" {
		return NormalizedInvestmentTransaction{}, ErrUnrecognizedRow
	}

	if kind != InvestmentDividend && row.Quantity <= 0 {
		return NormalizedInvestmentTransaction{}, errors.New("quantity must be positive for buy/sell rows")
	}
	if row.Price < 0 {
		return NormalizedInvestmentTransaction{}, errors.New("price cannot be negative")
	}
	if _, err := parseRowDate(row.Date); err != nil {
		return NormalizedInvestmentTransaction{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(row.Currency))
	if currency == "" {
		currency = "EUR"
	}

	return NormalizedInvestmentTransaction{
		AssetName: name,
		Kind:      kind,
		Quantity:  row.Quantity,
		Price:     row.Price,
		Date:      strings.TrimSpace(row.Date),
		Currency:  currency,
	}, nil
}

func classifyDescription(description string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(description))
	if normalized == "" {
		return "", false
	}
	for _, rule := range classificationRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(normalized, keyword) {
				return rule.kind, true
			}
		}
	}
	return "", false
}

// NormalizeAssetName uppercases, collapses whitespace runs, and strips
// common corporate/exchange suffixes so the same position imported from two
// exports lands on one row.
func NormalizeAssetName(name string) string {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	for _, suffix := range assetNameSuffixes {
		normalized = strings.TrimSuffix(normalized, suffix)
	}
	return strings.TrimSpace(normalized)
}

func parseRowDate(date string) (string, error) {
	trimmed := strings.TrimSpace(date)
	if trimmed == "" {
		return "", errors.New("row date is missing")
	}
	if _, err := time.Parse(models.DateLayout, trimmed); err != nil {
		return "", errors.New("row date is not in YYYY-MM-DD format")
	}
	return trimmed, nil
}
