package pipeline

import (
	"context"
	"fmt"
)

// HistoryReader is the slice of the persistence gateway the inference
// engine needs: past categorized rows for one user and one matching key.
type HistoryReader interface {
	// CategoryHistory returns the category ids of every transaction for
	// the user whose normalized description equals the given key and
	// whose category is set, ordered most recent first.
	CategoryHistory(ctx context.Context, userID uint, normalizedDescription string) ([]uint, error)
}

// InferCategory guesses a category for a description from the user's own
// history: the most frequent category among past transactions with the same
// normalized description. Ties break toward the most recent occurrence, so
// the suggestion is deterministic. Returns (0, false) when no history
// matches.
func InferCategory(ctx context.Context, history HistoryReader, description string, userID uint) (uint, bool, error) {
	norm := NormalizeDescription(description)
	if norm == "" {
		return 0, false, nil
	}

	ids, err := history.CategoryHistory(ctx, userID, norm)
	if err != nil {
		return 0, false, fmt.Errorf("InferCategory: %w", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}

	id, ok := mostFrequent(ids)
	return id, ok, nil
}

// mostFrequent returns the value with the highest count. On equal counts
// the value seen earliest in the slice wins, which with a most-recent-first
// ordering means the most recent occurrence.
func mostFrequent(ids []uint) (uint, bool) {
	if len(ids) == 0 {
		return 0, false
	}

	counts := make(map[uint]int, len(ids))
	firstSeen := make(map[uint]int, len(ids))
	for i, id := range ids {
		counts[id]++
		if _, ok := firstSeen[id]; !ok {
			firstSeen[id] = i
		}
	}

	best := ids[0]
	for id, n := range counts {
		switch {
		case n > counts[best]:
			best = id
		case n == counts[best] && firstSeen[id] < firstSeen[best]:
			best = id
		}
	}
	return best, true
}
