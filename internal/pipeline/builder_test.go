package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeBuilderStore struct {
	fakeHistory
	providerIDs map[string]struct{}
}

func (f *fakeBuilderStore) ExistingProviderIDs(_ context.Context, _ uint) (map[string]struct{}, error) {
	return f.providerIDs, nil
}

func newFakeBuilderStore() *fakeBuilderStore {
	return &fakeBuilderStore{
		fakeHistory: fakeHistory{byKey: map[string][]uint{
			"TESCO SUPERSTORE": {5},
		}},
		providerIDs: map[string]struct{}{},
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildFromRows(t *testing.T) {
	b := NewBuilder(newFakeBuilderStore())
	accountID := uint(3)

	rows := []Row{
		{Date: day(2025, 1, 10), Amount: decimal.RequireFromString("42"), Description: "TESCO SUPERSTORE 12/01/2024", Account: "Main"},
		{Date: day(2025, 1, 11), Amount: decimal.RequireFromString("9.99"), Description: "NEW MERCHANT", Account: "Main"},
	}

	txs, err := b.BuildFromRows(context.Background(), rows, 1, &accountID)
	if err != nil {
		t.Fatalf("BuildFromRows failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}

	if txs[0].NormalizedDescription != "TESCO SUPERSTORE" {
		t.Errorf("expected normalized description, got %q", txs[0].NormalizedDescription)
	}
	if txs[0].CategoryID == nil || *txs[0].CategoryID != 5 {
		t.Errorf("expected inferred category 5, got %v", txs[0].CategoryID)
	}
	if txs[1].CategoryID != nil {
		t.Errorf("unmatched description should stay uncategorized, got %v", txs[1].CategoryID)
	}
	if txs[0].AccountID == nil || *txs[0].AccountID != accountID {
		t.Errorf("expected account reference to be set")
	}
}

func TestBuildFromRows_BadRowAbortsBatch(t *testing.T) {
	b := NewBuilder(newFakeBuilderStore())

	rows := []Row{
		{Date: day(2025, 1, 10), Amount: decimal.RequireFromString("42"), Description: "OK ROW"},
		{Date: day(2025, 1, 11), Amount: decimal.RequireFromString("9.99"), Description: ""},
	}

	txs, err := b.BuildFromRows(context.Background(), rows, 1, nil)
	if err == nil {
		t.Fatal("expected the bad row to abort the batch")
	}
	if txs != nil {
		t.Error("no partial batch may be returned")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should carry the 1-based row index: %v", err)
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestBuildFromProvider_DedupSkipsKnownIDs(t *testing.T) {
	store := newFakeBuilderStore()
	store.providerIDs["tx-known"] = struct{}{}
	b := NewBuilder(store)

	added := []ProviderRow{
		{TransactionID: "tx-known", AccountID: "acc-1", Date: day(2025, 2, 1), Amount: decimal.RequireFromString("10"), Name: "Coffee"},
		{TransactionID: "tx-new", AccountID: "acc-1", Date: day(2025, 2, 2), Amount: decimal.RequireFromString("20"), Name: "Lunch"},
	}

	txs, err := b.BuildFromProvider(context.Background(), added, map[string]uint{"acc-1": 7}, 1)
	if err != nil {
		t.Fatalf("BuildFromProvider failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected only the new row, got %d", len(txs))
	}
	if *txs[0].ProviderTransactionID != "tx-new" {
		t.Errorf("unexpected provider id: %v", *txs[0].ProviderTransactionID)
	}
	if txs[0].AccountID == nil || *txs[0].AccountID != 7 {
		t.Errorf("expected mapped account, got %v", txs[0].AccountID)
	}
}

func TestBuildFromProvider_DedupWithinBatch(t *testing.T) {
	b := NewBuilder(newFakeBuilderStore())

	added := []ProviderRow{
		{TransactionID: "tx-1", Date: day(2025, 2, 1), Amount: decimal.RequireFromString("10"), Name: "Coffee"},
		{TransactionID: "tx-1", Date: day(2025, 2, 1), Amount: decimal.RequireFromString("10"), Name: "Coffee"},
		{TransactionID: "tx-2", Date: day(2025, 2, 2), Amount: decimal.RequireFromString("20"), Name: "Lunch"},
	}

	txs, err := b.BuildFromProvider(context.Background(), added, nil, 1)
	if err != nil {
		t.Fatalf("BuildFromProvider failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("repeated id within one batch should build once, got %d rows", len(txs))
	}
	if *txs[0].ProviderTransactionID != "tx-1" || *txs[1].ProviderTransactionID != "tx-2" {
		t.Errorf("unexpected ids: %v, %v", *txs[0].ProviderTransactionID, *txs[1].ProviderTransactionID)
	}
}

func TestBuildFromProvider_AllKnownYieldsNothing(t *testing.T) {
	store := newFakeBuilderStore()
	store.providerIDs["tx-1"] = struct{}{}
	store.providerIDs["tx-2"] = struct{}{}
	b := NewBuilder(store)

	added := []ProviderRow{
		{TransactionID: "tx-1", Date: day(2025, 2, 1), Amount: decimal.RequireFromString("1"), Name: "A"},
		{TransactionID: "tx-2", Date: day(2025, 2, 2), Amount: decimal.RequireFromString("2"), Name: "B"},
	}

	txs, err := b.BuildFromProvider(context.Background(), added, nil, 1)
	if err != nil {
		t.Fatalf("BuildFromProvider failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("re-sync of known rows must produce zero transactions, got %d", len(txs))
	}
}

func TestBuildFromProvider_UnknownAccountLeavesRefUnset(t *testing.T) {
	b := NewBuilder(newFakeBuilderStore())

	added := []ProviderRow{
		{TransactionID: "tx-9", AccountID: "acc-unknown", Date: day(2025, 2, 3), Amount: decimal.RequireFromString("5"), Name: "Snack"},
	}

	txs, err := b.BuildFromProvider(context.Background(), added, map[string]uint{"acc-1": 7}, 1)
	if err != nil {
		t.Fatalf("BuildFromProvider failed: %v", err)
	}
	if txs[0].AccountID != nil {
		t.Errorf("unknown provider account should leave the reference unset")
	}
}

func TestBuildFromProvider_TruncatesDescription(t *testing.T) {
	b := NewBuilder(newFakeBuilderStore())
	long := strings.Repeat("X", 250)

	added := []ProviderRow{
		{TransactionID: "tx-long", Date: day(2025, 2, 4), Amount: decimal.RequireFromString("5"), Name: long},
	}

	txs, err := b.BuildFromProvider(context.Background(), added, nil, 1)
	if err != nil {
		t.Fatalf("BuildFromProvider failed: %v", err)
	}
	if len(txs[0].Description) != 200 {
		t.Errorf("expected description truncated to 200, got %d", len(txs[0].Description))
	}
}
