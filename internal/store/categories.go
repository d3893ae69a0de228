package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// CreateCategory persists a user-scoped category after enforcing the
// two-level hierarchy and per-sibling-set name uniqueness.
func (s *Store) CreateCategory(ctx context.Context, cat *domain.Category) error {
	if cat.ParentID != nil {
		var parent domain.Category
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND id = ?", cat.UserID, *cat.ParentID).
			First(&parent).Error
		if err != nil {
			return fmt.Errorf("CreateCategory: parent %d not found for user %d", *cat.ParentID, cat.UserID)
		}
		if parent.ParentID != nil {
			return fmt.Errorf("CreateCategory: %q is already a child; categories nest at most one level", parent.Name)
		}
	}

	var dup int64
	q := s.db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("user_id = ? AND name = ?", cat.UserID, cat.Name)
	if cat.ParentID != nil {
		q = q.Where("parent_id = ?", *cat.ParentID)
	} else {
		q = q.Where("parent_id IS NULL")
	}
	if err := q.Count(&dup).Error; err != nil {
		return fmt.Errorf("CreateCategory: %w", err)
	}
	if dup > 0 {
		return fmt.Errorf("CreateCategory: category %q already exists at this level", cat.Name)
	}

	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		return &PersistenceError{Op: "CreateCategory", Err: err}
	}
	return nil
}

// CategoriesForUser lists the user's categories with parents preloaded,
// ordered by name.
func (s *Store) CategoriesForUser(ctx context.Context, userID uint) ([]domain.Category, error) {
	var cats []domain.Category
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&cats).Error
	if err != nil {
		return nil, fmt.Errorf("CategoriesForUser: %w", err)
	}
	return cats, nil
}

// ListCategoryNames returns the user's category names in alphabetical
// order, for prompt building and dropdown display.
func (s *Store) ListCategoryNames(ctx context.Context, userID uint) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("user_id = ?", userID).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("ListCategoryNames: %w", err)
	}
	return names, nil
}

// CategoryByID fetches one of the user's categories with its parent
// preloaded. Returns (nil, nil) when it does not exist.
func (s *Store) CategoryByID(ctx context.Context, userID, categoryID uint) (*domain.Category, error) {
	var cat domain.Category
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Where("user_id = ? AND id = ?", userID, categoryID).
		First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CategoryByID: %w", err)
	}
	return &cat, nil
}

// CategoryByName resolves one of the user's categories by exact name.
// Returns (nil, nil) when no such category exists.
func (s *Store) CategoryByName(ctx context.Context, userID uint, name string) (*domain.Category, error) {
	var cat domain.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CategoryByName: %w", err)
	}
	return &cat, nil
}

// ResolveCategoryNames maps the user's category names to ids in one query.
func (s *Store) ResolveCategoryNames(ctx context.Context, userID uint) (map[string]uint, error) {
	var cats []domain.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&cats).Error
	if err != nil {
		return nil, fmt.Errorf("ResolveCategoryNames: %w", err)
	}
	byName := make(map[string]uint, len(cats))
	for _, c := range cats {
		byName[c.Name] = c.ID
	}
	return byName, nil
}
