package pipeline

import "testing"

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"removes date patterns", "TESCO SUPERSTORE 12/01/2024", "TESCO SUPERSTORE"},
		{"removes dashed dates", "TESCO SUPERSTORE 01-02-24", "TESCO SUPERSTORE"},
		{"removes reference numbers", "AMAZON REF:123456789", "AMAZON"},
		{"removes on-day-month fragment", "BUTTERNUT BOX ON 01 FEB BCC", "BUTTERNUT BOX"},
		{"removes trailing payment code", "SAINSBURYS POS", "SAINSBURYS"},
		{"removes stacked trailing codes", "X BCC POS DD CARD BCC", "X"},
		{"keeps payment code mid-string", "POS TERMINAL SHOP", "POS TERMINAL SHOP"},
		{"empty input", "", ""},
		{"already clean", "SAINSBURYS", "SAINSBURYS"},
		{"collapses whitespace and uppercases", "  tesco   store  ", "TESCO STORE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDescription(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDescription_Idempotent(t *testing.T) {
	inputs := []string{
		"TESCO SUPERSTORE 12/01/2024",
		"AMAZON REF:123456789",
		"BUTTERNUT BOX ON 01 FEB BCC",
		"dinner on 01 feb",
		"SHOP ON12/01/2024 01 FEB",
		"CARD CARD CARD",
		"X BCC POS DD CARD BCC",
		"SHOP BCC BCC BCC BCC BCC BCC BCC",
		"",
		"  spaced   out  ",
	}

	for _, in := range inputs {
		once := NormalizeDescription(in)
		twice := NormalizeDescription(once)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
