package pipeline

import (
	"context"
	"testing"
)

type fakeHistory struct {
	byKey map[string][]uint
	err   error
}

func (f *fakeHistory) CategoryHistory(_ context.Context, _ uint, key string) ([]uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byKey[key], nil
}

func TestInferCategory(t *testing.T) {
	history := &fakeHistory{byKey: map[string][]uint{
		// most recent first: 7 twice, 3 once
		"TESCO SUPERSTORE": {7, 3, 7},
		// tie between 4 and 9; 4 is more recent
		"AMAZON": {4, 9, 9, 4},
	}}

	tests := []struct {
		name        string
		description string
		wantID      uint
		wantFound   bool
	}{
		{"most frequent wins", "TESCO SUPERSTORE 12/01/2024", 7, true},
		{"tie breaks to most recent", "AMAZON REF:123456789", 4, true},
		{"no history", "BRAND NEW SHOP", 0, false},
		{"empty description", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, found, err := InferCategory(context.Background(), history, tt.description, 1)
			if err != nil {
				t.Fatalf("InferCategory failed: %v", err)
			}
			if found != tt.wantFound || id != tt.wantID {
				t.Errorf("InferCategory(%q) = (%d, %v), want (%d, %v)",
					tt.description, id, found, tt.wantID, tt.wantFound)
			}
		})
	}
}

func TestMostFrequent_Deterministic(t *testing.T) {
	ids := []uint{2, 1, 1, 2}
	for range 50 {
		got, ok := mostFrequent(ids)
		if !ok || got != 2 {
			t.Fatalf("expected stable winner 2, got %d", got)
		}
	}
}
