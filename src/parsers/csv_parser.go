package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/processors"
)

// ParseInvestmentCSV reads a broker export into raw import rows. Columns are
// matched by header name, not position, since exports differ between brokers.
// Rows with unparseable numbers are skipped with a log line rather than
// failing the whole file.
func ParseInvestmentCSV(file io.Reader) ([]processors.RawImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csv parser: failed to read header: %w", err)
	}
	columns := mapColumns(header)
	if _, ok := columns["description"]; !ok {
		return nil, fmt.Errorf("csv parser: no description column in header %v", header)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv parser: failed to read records: %w", err)
	}

	rows := make([]processors.RawImportRow, 0, len(records))
	for i, record := range records {
		row, err := mapRecord(columns, record)
		if err != nil {
			logger.L.Warn("Skipping unparseable import row", "line", i+2, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Header aliases seen across broker exports, matched case-insensitively.
var columnAliases = map[string]string{
	"asset":       "asset_name",
	"asset name":  "asset_name",
	"asset_name":  "asset_name",
	"product":     "asset_name",
	"name":        "asset_name",
	"description": "description",
	"details":     "description",
	"quantity":    "quantity",
	"qty":         "quantity",
	"shares":      "quantity",
	"price":       "price",
	"unit price":  "price",
	"unit_price":  "price",
	"date":        "date",
	"trade date":  "date",
	"trade_date":  "date",
	"currency":    "currency",
	"ccy":         "currency",
}

func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			if _, taken := columns[canonical]; !taken {
				columns[canonical] = i
			}
		}
	}
	return columns
}

func mapRecord(columns map[string]int, record []string) (processors.RawImportRow, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var row processors.RawImportRow
	row.AssetName = field("asset_name")
	row.Description = field("description")
	row.Date = field("date")
	row.Currency = field("currency")

	var err error
	if q := field("quantity"); q != "" {
		if row.Quantity, err = parseDecimal(q); err != nil {
			return row, fmt.Errorf("quantity %q: %w", q, err)
		}
	}
	if p := field("price"); p != "" {
		if row.Price, err = parseDecimal(p); err != nil {
			return row, fmt.Errorf("price %q: %w", p, err)
		}
	}
	return row, nil
}

// parseDecimal accepts both "1234.56" and European "1.234,56" notation.
func parseDecimal(s string) (float64, error) {
	cleaned := strings.Trim(strings.TrimSpace(s), "\"")
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return strconv.ParseFloat(cleaned, 64)
}
