package synchro

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/provider"
	"github.com/ledgerline/ledgerline/internal/store"
)

type fixture struct {
	store  *store.Store
	fake   *provider.Fake
	syncer *Syncer
	userID uint
	item   *domain.LinkedItem
}

func newFixture(t *testing.T, pages []provider.SyncPage) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(db)
	if err := st.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	user := &domain.User{Name: "alice"}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	item := &domain.LinkedItem{
		UserID:          user.ID,
		AccessToken:     "access-1",
		ProviderItemID:  "item-1",
		InstitutionName: "Monzo",
	}
	provAccID := "prov-acc-1"
	accounts := []*domain.Account{
		{Name: "Current Account", Currency: "GBP", ProviderAccountID: &provAccID},
	}
	if err := st.CreateLinkedItem(ctx, item, accounts); err != nil {
		t.Fatal(err)
	}

	fake := &provider.Fake{Pages: pages}
	syncer := New(st, fake, pipeline.NewBuilder(st), zerolog.Nop())
	return &fixture{store: st, fake: fake, syncer: syncer, userID: user.ID, item: item}
}

func wireDate(t *testing.T, s string) provider.Date {
	t.Helper()
	var d provider.Date
	if err := d.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		t.Fatal(err)
	}
	return d
}

func wireTx(t *testing.T, id, account, date, name, amount string) provider.Transaction {
	t.Helper()
	return provider.Transaction{
		TransactionID: id,
		AccountID:     account,
		Date:          wireDate(t, date),
		Amount:        decimal.RequireFromString(amount),
		Name:          name,
	}
}

func TestSyncMultiPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added:      []provider.Transaction{wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO STORES", "12.50")},
			NextCursor: "cursor-a",
		},
		{
			Added: []provider.Transaction{
				wireTx(t, "tx-2", "prov-acc-1", "2024-03-02", "AMAZON", "30.00"),
				wireTx(t, "tx-3", "unknown-acc", "2024-03-03", "MYSTERY", "5.00"),
			},
			NextCursor: "cursor-b",
		},
	})
	f.fake.Balances = []provider.Balance{
		{AccountID: "prov-acc-1", Current: decimal.RequireFromString("250.00"), Currency: "GBP"},
	}

	res, err := f.syncer.Sync(ctx, f.item)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 2 || res.Added != 3 {
		t.Fatalf("result: %+v", res)
	}

	// First call saw the nil first-sync cursor, second call the cursor
	// from page one, in order.
	if len(f.fake.SeenCursors) != 2 {
		t.Fatalf("sync calls: %d", f.fake.SyncCalls)
	}
	if f.fake.SeenCursors[0] != nil {
		t.Fatalf("first sync cursor: %v", *f.fake.SeenCursors[0])
	}
	if f.fake.SeenCursors[1] == nil || *f.fake.SeenCursors[1] != "cursor-a" {
		t.Fatal("second page did not use the first page's cursor")
	}

	got, err := f.store.ItemByID(ctx, f.userID, f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cursor == nil || *got.Cursor != "cursor-b" {
		t.Fatalf("cursor after sync: %v", got.Cursor)
	}

	txs, err := f.store.TransactionsForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	for _, tx := range txs {
		if tx.Description == "MYSTERY" && tx.AccountID != nil {
			t.Fatal("row for unknown provider account should keep a nil account reference")
		}
		if tx.Description == "TESCO STORES" && tx.AccountID == nil {
			t.Fatal("mapped provider account not resolved")
		}
	}

	accounts, err := f.store.AccountsForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	balances, err := f.store.BalancesForAccount(ctx, f.userID, accounts[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || !balances[0].CurrentBalance.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("balances: %+v", balances)
	}

	if f.syncer.Status(f.item.ID) != StatusIdle {
		t.Fatalf("status after success: %s", f.syncer.Status(f.item.ID))
	}
}

func TestSyncReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added:      []provider.Transaction{wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO STORES", "12.50")},
			NextCursor: "cursor-a",
		},
	})

	if _, err := f.syncer.Sync(ctx, f.item); err != nil {
		t.Fatal(err)
	}

	// The provider replays the same page on the next pass.
	f.fake.Reset()
	item, err := f.store.ItemByID(ctx, f.userID, f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.syncer.Sync(ctx, item)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 {
		t.Fatalf("replay added %d rows, want 0", res.Added)
	}
	n, err := f.store.CountForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d rows after replay, want 1", n)
	}
}

func TestSyncRemovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added: []provider.Transaction{
				wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "PENDING CHARGE", "12.50"),
				wireTx(t, "tx-2", "prov-acc-1", "2024-03-02", "KEPT", "7.00"),
			},
			NextCursor: "cursor-a",
		},
	})
	if _, err := f.syncer.Sync(ctx, f.item); err != nil {
		t.Fatal(err)
	}

	f.fake.Pages = []provider.SyncPage{
		{
			Removed:    []provider.RemovedTransaction{{TransactionID: "tx-1"}},
			NextCursor: "cursor-b",
		},
	}
	f.fake.Reset()

	item, err := f.store.ItemByID(ctx, f.userID, f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.syncer.Sync(ctx, item)
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 {
		t.Fatalf("removed %d, want 1", res.Removed)
	}

	txs, err := f.store.TransactionsForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || txs[0].Description != "KEPT" {
		t.Fatalf("transactions after removal: %+v", txs)
	}
}

func TestSyncApplyFailureRollsBackCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added:      []provider.Transaction{wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO", "1.00")},
			NextCursor: "cursor-a",
		},
	})

	// The item was unlinked between resolving it and running the pass, so
	// the cursor write inside the unit of work matches zero rows and the
	// whole apply rolls back.
	gone := *f.item
	gone.ID = f.item.ID + 100

	if _, err := f.syncer.Sync(ctx, &gone); err == nil {
		t.Fatal("expected apply to fail")
	}

	n, err := f.store.CountForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("rollback left %d rows", n)
	}
	item, err := f.store.ItemByID(ctx, f.userID, f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Cursor != nil {
		t.Fatalf("cursor advanced despite rollback: %v", *item.Cursor)
	}
	if f.syncer.Status(gone.ID) != StatusFailed {
		t.Fatalf("status after failure: %s", f.syncer.Status(gone.ID))
	}
}

func TestSyncRepeatedIDAcrossPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added:      []provider.Transaction{wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO", "1.00")},
			NextCursor: "cursor-a",
		},
		{
			Added: []provider.Transaction{
				wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO", "1.00"),
				wireTx(t, "tx-2", "prov-acc-1", "2024-03-02", "AMAZON", "2.00"),
			},
			NextCursor: "cursor-b",
		},
	})

	res, err := f.syncer.Sync(ctx, f.item)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 2 {
		t.Fatalf("added %d, want 2", res.Added)
	}
	n, err := f.store.CountForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d rows, want 2", n)
	}
}

func TestSyncFetchFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fake.Err = context.DeadlineExceeded

	if _, err := f.syncer.Sync(ctx, f.item); err == nil {
		t.Fatal("expected fetch to fail")
	}
	n, err := f.store.CountForUser(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("fetch failure persisted %d rows", n)
	}
	item, err := f.store.ItemByID(ctx, f.userID, f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Cursor != nil {
		t.Fatal("cursor advanced despite fetch failure")
	}
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []provider.SyncPage{
		{
			Added:      []provider.Transaction{wireTx(t, "tx-1", "prov-acc-1", "2024-03-01", "TESCO", "5.00")},
			NextCursor: "cursor-a",
		},
	})

	results, err := f.syncer.SyncAll(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Added != 1 {
		t.Fatalf("results: %+v", results)
	}
}
