package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// CreateAccount persists a new account.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if err := s.db.WithContext(ctx).Create(acc).Error; err != nil {
		return &PersistenceError{Op: "CreateAccount", Err: err}
	}
	return nil
}

// UpdateAccount saves changes to an existing account after verifying it
// belongs to the user.
func (s *Store) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	var existing domain.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", acc.UserID, acc.ID).
		First(&existing).Error
	if err != nil {
		return fmt.Errorf("UpdateAccount: account %d not found for user %d", acc.ID, acc.UserID)
	}
	if err := s.db.WithContext(ctx).Save(acc).Error; err != nil {
		return &PersistenceError{Op: "UpdateAccount", Err: err}
	}
	return nil
}

// AccountByID fetches one account, scoped to the user. Returns (nil, nil)
// when it does not exist.
func (s *Store) AccountByID(ctx context.Context, userID, accountID uint) (*domain.Account, error) {
	var acc domain.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, accountID).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("AccountByID: %w", err)
	}
	return &acc, nil
}

// AccountsForUser lists all of the user's accounts.
func (s *Store) AccountsForUser(ctx context.Context, userID uint) ([]domain.Account, error) {
	var accs []domain.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&accs).Error
	if err != nil {
		return nil, fmt.Errorf("AccountsForUser: %w", err)
	}
	return accs, nil
}

// ManualActiveAccounts lists the user's manual, active accounts: the only
// valid targets for a CSV upload.
func (s *Store) ManualActiveAccounts(ctx context.Context, userID uint) ([]domain.Account, error) {
	var accs []domain.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND status = ?",
			userID, domain.AccountTypeManual, domain.AccountStatusActive).
		Order("name ASC").
		Find(&accs).Error
	if err != nil {
		return nil, fmt.Errorf("ManualActiveAccounts: %w", err)
	}
	return accs, nil
}

// ProviderAccountMap maps the item's provider account ids to internal
// account ids, for resolving sync rows.
func (s *Store) ProviderAccountMap(ctx context.Context, itemID uint) (map[string]uint, error) {
	var accs []domain.Account
	err := s.db.WithContext(ctx).
		Where("item_id = ? AND provider_account_id IS NOT NULL", itemID).
		Find(&accs).Error
	if err != nil {
		return nil, fmt.Errorf("ProviderAccountMap: %w", err)
	}
	m := make(map[string]uint, len(accs))
	for _, a := range accs {
		if a.ProviderAccountID != nil {
			m[*a.ProviderAccountID] = a.ID
		}
	}
	return m, nil
}
