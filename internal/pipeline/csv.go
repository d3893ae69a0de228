package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// AllowedFile reports whether the uploaded filename has a .csv extension.
func AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return strings.ToLower(filename[idx+1:]) == "csv"
}

// ReadCSV decodes an uploaded byte stream into raw records, header first.
// Input is expected to be UTF-8; files that are not valid UTF-8 are decoded
// as Latin-1, matching what the banks actually export.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading stream: %w", err)
	}

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &ValidationError{Msg: "file is neither valid UTF-8 nor Latin-1"}
		}
		data = decoded
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, Validationf("could not parse CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, Validationf("CSV file is empty")
	}
	return records, nil
}
