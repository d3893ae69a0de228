package pipeline

import (
	"regexp"
	"strings"
)

var (
	// "ON 01 FEB", "ON 12 MAR" and similar day/month fragments.
	onDayMonthRe = regexp.MustCompile(`\bON\s+\d{1,2}\s+[A-Z]{3}\b`)

	// Trailing payment-method codes, only when they are the last token.
	trailingCodeRe = regexp.MustCompile(`\b(BCC|POS|DD|CARD)\b$`)

	// Date-like substrings: 12/01/2024, 01-02-24.
	dateLikeRe = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)

	// Reference tokens: REF:123456789.
	refTokenRe = regexp.MustCompile(`\bREF:\d+\b`)
)

// NormalizeDescription strips the volatile parts of a merchant description
// (dates, reference numbers, trailing payment-method codes) and returns an
// uppercase, whitespace-collapsed key used for historical category matching.
// So "BUTTERNUT BOX ON 01 FEB BCC" becomes "BUTTERNUT BOX".
//
// The result is idempotent: uppercasing happens before the removal passes,
// and the passes repeat until the text stops changing, so a removal can
// never expose a pattern a later call would strip differently.
func NormalizeDescription(description string) string {
	if description == "" {
		return ""
	}

	text := strings.ToUpper(collapseSpaces(description))
	for {
		next := stripVolatile(text)
		if next == text {
			return next
		}
		text = next
	}
}

func stripVolatile(text string) string {
	text = onDayMonthRe.ReplaceAllString(text, "")
	text = trailingCodeRe.ReplaceAllString(text, "")
	text = dateLikeRe.ReplaceAllString(text, "")
	text = refTokenRe.ReplaceAllString(text, "")
	return collapseSpaces(text)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
