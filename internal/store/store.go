// Package store is the persistence gateway. Every read and write takes an
// explicit user scope; nothing in this layer infers a "current user" from
// ambient state. The only concurrency primitive the core relies on is the
// atomic unit of work exposed by Transact.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerline/ledgerline/internal/domain"
)

// PersistenceError reports a failed commit. The wrapped message always
// states that nothing was saved, because nothing was.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store wraps a gorm handle. A Store produced by Transact shares the
// transaction of its parent; everything else runs standalone.
type Store struct {
	db *gorm.DB
}

// New wraps an existing gorm handle. Tests use this with an in-memory
// SQLite dialector.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	return &Store{db: db}, nil
}

// AutoMigrate creates or updates the schema for every entity.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Account{},
		&domain.LinkedItem{},
		&domain.Transaction{},
		&domain.AccountBalance{},
	)
}

// Transact runs fn inside one storage transaction. The nested Store sees
// uncommitted state; any error (including context cancellation) rolls the
// whole unit back.
func (s *Store) Transact(ctx context.Context, fn func(*Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateUser persists a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return &PersistenceError{Op: "CreateUser", Err: err}
	}
	return nil
}

// UserByID fetches one user.
func (s *Store) UserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("UserByID: %w", err)
	}
	return &user, nil
}
