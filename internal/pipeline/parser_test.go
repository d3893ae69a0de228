package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func asValidation(err error, target **ValidationError) bool {
	return errors.As(err, target)
}

func TestParseStandard_InvertAmounts(t *testing.T) {
	records := [][]string{
		{"Date", "Amount", "Description"},
		{"01/01/2025", "-50.0", "Grocery shop"},
	}

	rows, err := ParseRows(records, "standard", ParseOptions{AccountName: "Main", InvertAmounts: true})
	if err != nil {
		t.Fatalf("ParseRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Amount.Equal(decimal.RequireFromString("50.0")) {
		t.Errorf("expected amount 50.0 after inversion, got %s", rows[0].Amount)
	}
	if rows[0].Account != "Main" {
		t.Errorf("expected account from options, got %q", rows[0].Account)
	}
}

func TestParseStandard_ReferenceAppended(t *testing.T) {
	records := [][]string{
		{"Date", "Amount", "Description", "Reference"},
		{"02/03/2025", "12.50", "Payment", "REF123"},
		{"03/03/2025", "9.99", "Coffee", ""},
		{"04/03/2025", "7.00", "Lunch", "nan"},
	}

	rows, err := ParseRows(records, "standard", ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRows failed: %v", err)
	}
	if got := rows[0].Description; got != "Payment | REF123" {
		t.Errorf("expected reference appended, got %q", got)
	}
	if got := rows[1].Description; got != "Coffee" {
		t.Errorf("empty reference should not be appended, got %q", got)
	}
	if got := rows[2].Description; got != "Lunch" {
		t.Errorf("nan reference should not be appended, got %q", got)
	}
}

func TestParseStandard_MissingColumns(t *testing.T) {
	records := [][]string{
		{"Date", "Amount"},
		{"01/01/2025", "10"},
	}

	_, err := ParseRows(records, "standard", ParseOptions{})
	if err == nil {
		t.Fatal("expected an error for missing Description column")
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Msg, "Description") {
		t.Errorf("error should name the missing column: %q", verr.Msg)
	}
}

func TestParseStandard_MissingColumnsNamesAll(t *testing.T) {
	records := [][]string{{"Reference"}}

	_, err := ParseRows(records, "standard", ParseOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, col := range []string{"Date", "Amount", "Description"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error should name %s, got: %v", col, err)
		}
	}
}

func TestParseStandard_BadDateRejectsUpload(t *testing.T) {
	records := [][]string{
		{"Date", "Amount", "Description"},
		{"2025-01-01", "10", "ISO date in a day-first file"},
	}

	_, err := ParseRows(records, "standard", ParseOptions{})
	if err == nil {
		t.Fatal("expected bad date to be rejected")
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Errorf("error should name the row: %v", err)
	}
}

func TestParseBarclays_BadDateRejectsUpload(t *testing.T) {
	// Strict date policy is uniform: the bank-specific paths reject
	// malformed dates exactly like the standard path.
	records := [][]string{
		{"Date", "Amount", "Memo"},
		{"not-a-date", "10", "SHOP"},
	}

	_, err := ParseRows(records, "barclays", ParseOptions{})
	if err == nil {
		t.Fatal("expected bad date to be rejected")
	}
}

func TestParseBarclays_MemoAndFixedAccount(t *testing.T) {
	records := [][]string{
		{"Number", "Date", "Account", "Amount", "Subcategory", "Memo"},
		{"1", "05/02/2025", "20-00-00 12345678", "-32.10", "", "TESCO STORES 2912"},
	}

	rows, err := ParseRows(records, "barclays", ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRows failed: %v", err)
	}
	if rows[0].Description != "TESCO STORES 2912" {
		t.Errorf("expected Memo as description, got %q", rows[0].Description)
	}
	if rows[0].Account != "BARCLAYS" {
		t.Errorf("expected fixed BARCLAYS account, got %q", rows[0].Account)
	}
}

func TestParseRevolut_FiltersRows(t *testing.T) {
	records := [][]string{
		{"Type", "Product", "Started Date", "Completed Date", "Description", "Amount", "Currency", "State"},
		{"CARD_PAYMENT", "Current", "2025-01-01 09:00:00", "2025-01-02 10:30:00", "Pret", "-4.50", "GBP", "COMPLETED"},
		{"CARD_PAYMENT", "Current", "2025-01-03 09:00:00", "", "Pending coffee", "-3.00", "GBP", "PENDING"},
		{"CARD_PAYMENT", "Savings", "2025-01-04 09:00:00", "2025-01-04 09:10:00", "Vault top-up", "-50.00", "GBP", "COMPLETED"},
	}

	rows, err := ParseRows(records, "revolut", ParseOptions{})
	if err != nil {
		t.Fatalf("ParseRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the completed Current row, got %d rows", len(rows))
	}
	if rows[0].Description != "Pret" || rows[0].Account != "REVOLUT" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestParseRows_UnknownFormat(t *testing.T) {
	_, err := ParseRows([][]string{{"Date"}}, "monzo", ParseOptions{})
	if err == nil {
		t.Fatal("expected unknown format to fail")
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestReadCSV_Latin1Fallback(t *testing.T) {
	// "CAFÉ" with É encoded as Latin-1 0xC9, invalid as UTF-8.
	raw := append([]byte("Date,Amount,Description\n01/01/2025,5.00,CAF"), 0xC9, '\n')

	records, err := ReadCSV(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if records[1][2] != "CAFÉ" {
		t.Errorf("expected Latin-1 fallback decode, got %q", records[1][2])
	}
}

func TestAllowedFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"statement.csv", true},
		{"STATEMENT.CSV", true},
		{"statement.pdf", false},
		{"csv", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AllowedFile(tt.filename); got != tt.want {
			t.Errorf("AllowedFile(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
