package seed

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := store.New(db)
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCategoriesIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	user := &domain.User{Name: "alice"}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	created, err := Categories(ctx, s, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created != len(DefaultCategories) {
		t.Fatalf("first run created %d, want %d", created, len(DefaultCategories))
	}

	created, err = Categories(ctx, s, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("second run created %d, want 0", created)
	}

	names, err := s.ListCategoryNames(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != len(DefaultCategories) {
		t.Fatalf("got %d categories, want %d", len(names), len(DefaultCategories))
	}
}

func TestCategoriesFillsGaps(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	user := &domain.User{Name: "alice"}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	// User already made one of the defaults by hand.
	if err := s.CreateCategory(ctx, &domain.Category{UserID: user.ID, Name: "Groceries"}); err != nil {
		t.Fatal(err)
	}

	created, err := Categories(ctx, s, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created != len(DefaultCategories)-1 {
		t.Fatalf("created %d, want %d", created, len(DefaultCategories)-1)
	}
}
