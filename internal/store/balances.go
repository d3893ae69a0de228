package store

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// RecordBalance appends a balance snapshot for an account. Snapshots are
// never updated in place.
func (s *Store) RecordBalance(ctx context.Context, snapshot *domain.AccountBalance) error {
	if err := s.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return &PersistenceError{Op: "RecordBalance", Err: err}
	}
	return nil
}

// BalancesForAccount returns the snapshot history for one account, most
// recent first. The account must belong to the user.
func (s *Store) BalancesForAccount(ctx context.Context, userID, accountID uint) ([]domain.AccountBalance, error) {
	acc, err := s.AccountByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("BalancesForAccount: account %d not found for user %d", accountID, userID)
	}
	var balances []domain.AccountBalance
	err = s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("recorded_at DESC, id DESC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("BalancesForAccount: %w", err)
	}
	return balances, nil
}

// LatestBalance returns the newest snapshot for an account, or (nil, nil)
// when none has been recorded.
func (s *Store) LatestBalance(ctx context.Context, userID, accountID uint) (*domain.AccountBalance, error) {
	history, err := s.BalancesForAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[0], nil
}
