package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// CreateLinkedItem persists a provider connection together with its
// discovered accounts, as one unit.
func (s *Store) CreateLinkedItem(ctx context.Context, item *domain.LinkedItem, accounts []*domain.Account) error {
	err := s.Transact(ctx, func(tx *Store) error {
		if err := tx.db.Create(item).Error; err != nil {
			return err
		}
		for _, acc := range accounts {
			acc.UserID = item.UserID
			acc.ItemID = &item.ID
			acc.Type = domain.AccountTypeAutomatic
			acc.Status = domain.AccountStatusActive
			if err := tx.db.Create(acc).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "CreateLinkedItem", Err: err}
	}
	return nil
}

// ItemsForUser lists the user's provider connections with their accounts.
func (s *Store) ItemsForUser(ctx context.Context, userID uint) ([]domain.LinkedItem, error) {
	var items []domain.LinkedItem
	err := s.db.WithContext(ctx).
		Preload("Accounts").
		Where("user_id = ?", userID).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("ItemsForUser: %w", err)
	}
	return items, nil
}

// ItemByID fetches one provider connection, scoped to the user. Returns
// (nil, nil) when it does not exist.
func (s *Store) ItemByID(ctx context.Context, userID, itemID uint) (*domain.LinkedItem, error) {
	var item domain.LinkedItem
	err := s.db.WithContext(ctx).
		Preload("Accounts").
		Where("user_id = ? AND id = ?", userID, itemID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ItemByID: %w", err)
	}
	return &item, nil
}

// AdvanceCursor persists the item's new sync cursor and sync time, scoped
// to the user. It is only ever called inside the sync unit of work, after
// the rows the cursor acknowledges have been applied.
func (s *Store) AdvanceCursor(ctx context.Context, userID, itemID uint, cursor string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&domain.LinkedItem{}).
		Where("user_id = ? AND id = ?", userID, itemID).
		Updates(map[string]any{
			"cursor":         cursor,
			"last_synced_at": at,
		})
	if res.Error != nil {
		return &PersistenceError{Op: "AdvanceCursor", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("AdvanceCursor: item %d not found for user %d", itemID, userID)
	}
	return nil
}
