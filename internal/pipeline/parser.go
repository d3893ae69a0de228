package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is the canonical shape every format parses into.
type Row struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Account     string
}

// ParseOptions carries per-upload settings that are independent of the
// format itself.
type ParseOptions struct {
	// AccountName labels rows from formats that do not fix their own
	// account (the standard format); bank-specific formats ignore it.
	AccountName string

	// InvertAmounts flips the sign of every parsed amount, reconciling
	// banks that export expenses as negatives with the convention here
	// (expense = positive).
	InvertAmounts bool
}

// ParseFunc converts raw CSV records (header row first) into canonical rows.
type ParseFunc func(records [][]string, opts ParseOptions) ([]Row, error)

// formats is the registered-format table. Adding a bank layout means
// registering a new entry, not growing a conditional chain.
var formats = map[string]ParseFunc{}

// RegisterFormat adds a named format to the table. It panics on duplicates;
// registration happens at init time only.
func RegisterFormat(name string, fn ParseFunc) {
	if _, dup := formats[name]; dup {
		panic(fmt.Sprintf("pipeline: format %q registered twice", name))
	}
	formats[name] = fn
}

// FormatNames returns the registered format identifiers, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRows dispatches raw records to the named format's parser.
func ParseRows(records [][]string, format string, opts ParseOptions) ([]Row, error) {
	if format == "" {
		return nil, Validationf("please select a bank format")
	}
	fn, ok := formats[format]
	if !ok {
		return nil, Validationf("unknown bank format: %q (known: %s)", format, strings.Join(FormatNames(), ", "))
	}
	rows, err := fn(records, opts)
	if err != nil {
		return nil, err
	}
	if opts.InvertAmounts {
		for i := range rows {
			rows[i].Amount = rows[i].Amount.Neg()
		}
	}
	return rows, nil
}

func init() {
	RegisterFormat("standard", parseStandard)
	RegisterFormat("amex", parseAmex)
	RegisterFormat("barclays", parseBarclays)
	RegisterFormat("revolut", parseRevolut)
}

// header maps column names to their index, preserving case sensitivity.
type header map[string]int

func indexHeader(records [][]string) (header, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, Validationf("CSV file is empty")
	}
	h := header{}
	for i, name := range records[0] {
		h[strings.TrimSpace(name)] = i
	}
	return h, records[1:], nil
}

// requireColumns reports every missing column at once, not just the first.
func (h header) requireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := h[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Validationf("CSV is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) get(record []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseDate is strict for every format: a malformed date rejects the upload
// instead of being silently coerced.
func parseDate(value, layout string, rowNum int) (time.Time, error) {
	d, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, Validationf("row %d: invalid date %q (expected %s)", rowNum, value, layout)
	}
	return d, nil
}

func parseAmount(value string, rowNum int) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Decimal{}, Validationf("row %d: invalid amount %q", rowNum, value)
	}
	return amt, nil
}

// parseStandard handles the app's own export format:
// Date (day-first), Amount, Description, optional Reference.
func parseStandard(records [][]string, opts ParseOptions) ([]Row, error) {
	h, body, err := indexHeader(records)
	if err != nil {
		return nil, err
	}
	if err := h.requireColumns("Date", "Amount", "Description"); err != nil {
		return nil, err
	}
	_, hasRef := h["Reference"]

	rows := make([]Row, 0, len(body))
	for i, record := range body {
		rowNum := i + 1

		date, err := parseDate(h.get(record, "Date"), "02/01/2006", rowNum)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(h.get(record, "Amount"), rowNum)
		if err != nil {
			return nil, err
		}

		description := h.get(record, "Description")
		if hasRef {
			if ref := h.get(record, "Reference"); ref != "" && !strings.EqualFold(ref, "nan") {
				description = description + " | " + ref
			}
		}

		rows = append(rows, Row{
			Date:        date,
			Amount:      amount,
			Description: description,
			Account:     opts.AccountName,
		})
	}
	return rows, nil
}

// parseAmex: Date (day-first), Amount, Description; account fixed.
func parseAmex(records [][]string, _ ParseOptions) ([]Row, error) {
	h, body, err := indexHeader(records)
	if err != nil {
		return nil, err
	}
	if err := h.requireColumns("Date", "Amount", "Description"); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(body))
	for i, record := range body {
		rowNum := i + 1
		date, err := parseDate(h.get(record, "Date"), "02/01/2006", rowNum)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(h.get(record, "Amount"), rowNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Date:        date,
			Amount:      amount,
			Description: h.get(record, "Description"),
			Account:     "AMEX",
		})
	}
	return rows, nil
}

// parseBarclays: the export's free-text lives in Memo; account fixed.
func parseBarclays(records [][]string, _ ParseOptions) ([]Row, error) {
	h, body, err := indexHeader(records)
	if err != nil {
		return nil, err
	}
	if err := h.requireColumns("Date", "Amount", "Memo"); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(body))
	for i, record := range body {
		rowNum := i + 1
		date, err := parseDate(h.get(record, "Date"), "02/01/2006", rowNum)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(h.get(record, "Amount"), rowNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Date:        date,
			Amount:      amount,
			Description: h.get(record, "Memo"),
			Account:     "BARCLAYS",
		})
	}
	return rows, nil
}

// parseRevolut keeps only settled current-account rows
// (State == COMPLETED, Product == Current) before mapping.
func parseRevolut(records [][]string, _ ParseOptions) ([]Row, error) {
	h, body, err := indexHeader(records)
	if err != nil {
		return nil, err
	}
	if err := h.requireColumns("Completed Date", "Amount", "Description", "State", "Product"); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(body))
	for i, record := range body {
		rowNum := i + 1
		if h.get(record, "State") != "COMPLETED" || h.get(record, "Product") != "Current" {
			continue
		}
		date, err := parseDate(h.get(record, "Completed Date"), "2006-01-02 15:04:05", rowNum)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(h.get(record, "Amount"), rowNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Date:        date,
			Amount:      amount,
			Description: h.get(record, "Description"),
			Account:     "REVOLUT",
		})
	}
	return rows, nil
}
