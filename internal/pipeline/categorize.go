package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/llm"
)

// Decoding settings for the categorization call. Temperature zero and a
// finite token budget keep the reply reproducible and bounded.
const (
	categorizeMaxTokens   = 400
	categorizeTemperature = 0.0
	categorizeTimeout     = 15 * time.Second
)

// BatchItem is one transaction presented to the model for categorization.
type BatchItem struct {
	ID          uint
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Account     string
}

// BuildSystemPrompt constrains the model to JSON-only output over the
// supplied category list.
func BuildSystemPrompt(categoryNames []string) string {
	var b strings.Builder
	b.WriteString("You are an assistant that categorises bank transactions for personal budgeting.\n")
	b.WriteString("Return a JSON object mapping transaction id to a short category string.\n")
	b.WriteString("Important: respond with JSON only, no explanations, no markdown code fences.\n")
	b.WriteString("Use ONLY these categories: " + strings.Join(categoryNames, ", ") + ".\n")
	b.WriteString("If unsure, pick the closest match from this list.\n")
	return b.String()
}

// BuildUserPrompt enumerates the batch one transaction per line, in a fixed
// field order so the prompt is deterministic for a given batch.
func BuildUserPrompt(items []BatchItem) string {
	var b strings.Builder
	b.WriteString("Categorise the following transactions.\n")
	b.WriteString("For each line, respond with an entry in a JSON object where the key is the id ")
	b.WriteString("and the value is the category string.\n\n")
	b.WriteString("Transactions:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "id=%d; date=%s; amount=%s; description=%s; account=%s\n",
			item.ID, item.Date.Format("2006-01-02"), item.Amount, item.Description, item.Account)
	}
	b.WriteString("\nExample of the JSON format:\n")
	b.WriteString(`{ "123": "Groceries", "124": "Rent" }`)
	return b.String()
}

// CategorizeBatch asks the completion model to categorize the batch and
// returns an id -> category-name mapping. The result may be partial: ids
// absent from the reply are simply not categorized, and entries whose key
// is not an integer are dropped without error. The call as a whole fails
// only when the upstream call errors or the reply cannot be repaired into
// valid JSON.
func CategorizeBatch(ctx context.Context, completer llm.Completer, items []BatchItem, categoryNames []string) (map[uint]string, error) {
	if len(items) == 0 {
		return map[uint]string{}, nil
	}

	raw, err := completer.Complete(ctx, llm.CompletionRequest{
		System:      BuildSystemPrompt(categoryNames),
		User:        BuildUserPrompt(items),
		MaxTokens:   categorizeMaxTokens,
		Temperature: categorizeTemperature,
		Timeout:     categorizeTimeout,
	})
	if err != nil {
		return nil, &UpstreamError{
			Op:      "CategorizeBatch",
			Timeout: isDeadline(err),
			Err:     err,
		}
	}

	repaired := RepairModelJSON(raw)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, &CategorizationError{RawText: repaired, Err: err}
	}

	result := make(map[uint]string, len(parsed))
	for key, value := range parsed {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		switch v := value.(type) {
		case string:
			result[uint(id)] = v
		default:
			result[uint(id)] = fmt.Sprint(v)
		}
	}
	return result, nil
}

// wellFormedPair matches one `"<digits>": "<text>"` entry with no embedded
// quote or newline in the value.
var wellFormedPair = regexp.MustCompile(`"(\d+)"\s*:\s*"[^\n"]*"`)

// RepairModelJSON turns a best-effort model reply into parseable JSON.
// It trims whitespace, strips a wrapping code fence, and, when at least one
// well-formed id/category pair is present, rebuilds a minimal object ending
// at the last complete pair. That discards a truncated tail caused by the
// token-limit cutoff. With zero matches, or when the opening brace only
// shows up after the last pair, the cleaned text passes through unmodified
// and the JSON parser gets the final say.
func RepairModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		lines = lines[1:]
		if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
			lines = lines[:n-1]
		}
		s = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	matches := wellFormedPair.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	end := matches[len(matches)-1][1]
	start := strings.Index(s, "{")
	if start == -1 || start+1 > end {
		return s
	}
	return "{\n" + s[start+1:end] + "\n}"
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
