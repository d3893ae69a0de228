package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// ProviderRow is one added transaction from a provider sync, already
// decoded off the wire.
type ProviderRow struct {
	TransactionID string
	AccountID     string
	Date          time.Time
	Amount        decimal.Decimal
	Name          string
}

// BuilderStore is what the transaction builder needs from the persistence
// gateway: category history for inference and the already-known provider
// transaction ids for deduplication.
type BuilderStore interface {
	HistoryReader
	ExistingProviderIDs(ctx context.Context, userID uint) (map[string]struct{}, error)
}

// Builder turns parsed rows into transaction entities, wiring in
// normalization and history-based category inference.
type Builder struct {
	store BuilderStore
}

func NewBuilder(store BuilderStore) *Builder {
	return &Builder{store: store}
}

// BuildFromRows constructs transactions from canonical CSV rows for one
// user and target account. Import is all-or-nothing: any bad row aborts the
// whole batch with a 1-based row index in the message, and no partial list
// is ever returned.
func (b *Builder) BuildFromRows(ctx context.Context, rows []Row, userID uint, accountID *uint) ([]*domain.Transaction, error) {
	built := make([]*domain.Transaction, 0, len(rows))

	for i, row := range rows {
		tx, err := b.buildOne(ctx, row, userID, accountID)
		if err != nil {
			return nil, Validationf("upload failed on row %d: %v", i+1, err)
		}
		built = append(built, tx)
	}
	return built, nil
}

func (b *Builder) buildOne(ctx context.Context, row Row, userID uint, accountID *uint) (*domain.Transaction, error) {
	if row.Date.IsZero() {
		return nil, fmt.Errorf("missing date")
	}
	if row.Description == "" {
		return nil, fmt.Errorf("missing description")
	}
	if len(row.Description) > domain.MaxDescriptionLen {
		return nil, fmt.Errorf("description longer than %d characters", domain.MaxDescriptionLen)
	}

	tx := &domain.Transaction{
		UserID:                userID,
		Date:                  row.Date,
		Amount:                row.Amount,
		Description:           row.Description,
		NormalizedDescription: NormalizeDescription(row.Description),
		AccountID:             accountID,
	}

	if catID, ok, err := InferCategory(ctx, b.store, row.Description, userID); err != nil {
		return nil, err
	} else if ok {
		tx.CategoryID = &catID
	}
	return tx, nil
}

// BuildFromProvider constructs transactions from provider sync rows.
// Rows whose provider transaction id is already persisted for the user, or
// already seen earlier in the same batch, are skipped, which makes replaying
// the same sync pages safe. Descriptions are
// truncated to the column limit, and rows whose provider account is not in
// the map keep a nil account reference rather than failing.
func (b *Builder) BuildFromProvider(ctx context.Context, added []ProviderRow, accountMap map[string]uint, userID uint) ([]*domain.Transaction, error) {
	existing, err := b.store.ExistingProviderIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("BuildFromProvider: loading known provider ids: %w", err)
	}

	built := make([]*domain.Transaction, 0, len(added))
	for _, pt := range added {
		if _, seen := existing[pt.TransactionID]; seen {
			continue
		}
		// Dedup against the batch itself too, in case a provider repeats
		// an id across pages of one pass.
		existing[pt.TransactionID] = struct{}{}

		description := truncate(pt.Name, domain.MaxDescriptionLen)
		providerID := pt.TransactionID

		tx := &domain.Transaction{
			UserID:                userID,
			Date:                  pt.Date,
			Amount:                pt.Amount,
			Description:           description,
			NormalizedDescription: NormalizeDescription(description),
			ProviderTransactionID: &providerID,
		}

		if id, ok := accountMap[pt.AccountID]; ok {
			accountID := id
			tx.AccountID = &accountID
		}

		if catID, ok, err := InferCategory(ctx, b.store, description, userID); err != nil {
			return nil, fmt.Errorf("BuildFromProvider: %w", err)
		} else if ok {
			tx.CategoryID = &catID
		}

		built = append(built, tx)
	}
	return built, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so a multi-byte character is never split.
	runes := []rune(s)
	for len(string(runes)) > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
