package store

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// SaveTransactions commits the whole batch in one transaction. On any
// failure the batch rolls back fully: zero rows are saved.
func (s *Store) SaveTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	err := s.Transact(ctx, func(tx *Store) error {
		return tx.db.Create(&txs).Error
	})
	if err != nil {
		return &PersistenceError{
			Op:  "SaveTransactions",
			Err: fmt.Errorf("no transactions were saved: %w", err),
		}
	}
	return nil
}

// TransactionsForUser lists the user's transactions, newest first.
func (s *Store) TransactionsForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("TransactionsForUser: %w", err)
	}
	return txs, nil
}

// UncategorizedForUser lists the user's transactions with no category,
// newest first.
func (s *Store) UncategorizedForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND category_id IS NULL", userID).
		Order("date DESC, id DESC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("UncategorizedForUser: %w", err)
	}
	return txs, nil
}

// TransactionsByBatch lists the transactions created by one import batch.
func (s *Store) TransactionsByBatch(ctx context.Context, userID uint, batchID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND import_batch_id = ?", userID, batchID).
		Order("date DESC, id DESC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("TransactionsByBatch: %w", err)
	}
	return txs, nil
}

// TransactionsByIDs fetches the given transactions, scoped to the user.
// Ids belonging to other users are silently absent from the result.
func (s *Store) TransactionsByIDs(ctx context.Context, userID uint, ids []uint) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("TransactionsByIDs: %w", err)
	}
	return txs, nil
}

// CategoryHistory returns the category ids of every categorized transaction
// for the user with the given normalized description, most recent first.
// The secondary id sort makes same-day history deterministic.
func (s *Store) CategoryHistory(ctx context.Context, userID uint, normalizedDescription string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ? AND normalized_description = ? AND category_id IS NOT NULL", userID, normalizedDescription).
		Order("date DESC, id DESC").
		Pluck("category_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("CategoryHistory: %w", err)
	}
	return ids, nil
}

// ExistingProviderIDs returns the set of provider transaction ids already
// persisted for the user. This set is the deduplication check for repeated
// provider syncs.
func (s *Store) ExistingProviderIDs(ctx context.Context, userID uint) (map[string]struct{}, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ? AND provider_transaction_id IS NOT NULL", userID).
		Pluck("provider_transaction_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("ExistingProviderIDs: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// DeleteByProviderIDs removes the user's transactions whose provider id is
// in the given set, as a single filtered delete. Returns the rows removed.
func (s *Store) DeleteByProviderIDs(ctx context.Context, userID uint, providerIDs []string) (int64, error) {
	if len(providerIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_transaction_id IN ?", userID, providerIDs).
		Delete(&domain.Transaction{})
	if res.Error != nil {
		return 0, &PersistenceError{Op: "DeleteByProviderIDs", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// AssignCategory sets (or clears, with nil) one transaction's category,
// scoped to the user.
func (s *Store) AssignCategory(ctx context.Context, userID, txID uint, categoryID *uint) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ? AND id = ?", userID, txID).
		Update("category_id", categoryID)
	if res.Error != nil {
		return &PersistenceError{Op: "AssignCategory", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("AssignCategory: transaction %d not found for user %d", txID, userID)
	}
	return nil
}

// CountForUser returns the user's total transaction count.
func (s *Store) CountForUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("CountForUser: %w", err)
	}
	return n, nil
}

// CountUncategorizedForUser returns how many of the user's transactions
// have no category.
func (s *Store) CountUncategorizedForUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ? AND category_id IS NULL", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("CountUncategorizedForUser: %w", err)
	}
	return n, nil
}
