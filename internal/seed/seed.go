// Package seed installs the starter category set for new users.
package seed

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/store"
)

// DefaultCategories is the starter set every new user receives. Names only;
// users restructure and nest from here.
var DefaultCategories = []string{
	"Groceries",
	"Restaurants",
	"Transport",
	"Bills & Utilities",
	"Shopping",
	"Entertainment",
	"Health & Fitness",
	"Income",
	"Savings & Investments",
	"Transfer",
	"Other",
}

// Categories installs any default categories the user does not already
// have. Running it twice adds nothing, so it is safe to call on every
// login or user creation.
func Categories(ctx context.Context, st *store.Store, userID uint) (created int, err error) {
	existing, err := st.ResolveCategoryNames(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}

	for _, name := range DefaultCategories {
		if _, ok := existing[name]; ok {
			continue
		}
		cat := &domain.Category{UserID: userID, Name: name}
		if err := st.CreateCategory(ctx, cat); err != nil {
			return created, fmt.Errorf("seed categories: %w", err)
		}
		created++
	}
	return created, nil
}
