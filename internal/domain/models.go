package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types and statuses. Manual accounts are declared by the user and
// fed by CSV uploads; automatic accounts are discovered through the
// aggregation provider during token exchange.
const (
	AccountTypeManual    = "manual"
	AccountTypeAutomatic = "automatic"

	AccountStatusActive = "active"
	AccountStatusClosed = "closed"
)

// MaxDescriptionLen caps transaction descriptions, matching the column size.
const MaxDescriptionLen = 200

// User is the ownership anchor for every other entity. Authentication is an
// external concern; the core only ever deals in user IDs handed to it.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null"`
	CreatedAt time.Time
}

// Transaction is one financial event. Amounts are signed decimals with
// positive meaning debit/expense. ProviderTransactionID is set only for
// provider-sourced rows and is the deduplication key: the composite unique
// index keeps at most one row per (user, provider id) pair, while NULL
// provider ids stay unconstrained.
type Transaction struct {
	ID                    uint            `gorm:"primaryKey"`
	UserID                uint            `gorm:"not null;index;uniqueIndex:idx_user_provider_tx"`
	Date                  time.Time       `gorm:"not null"`
	Amount                decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Description           string          `gorm:"size:200;not null"`
	NormalizedDescription string          `gorm:"size:200;index"`
	CategoryID            *uint           `gorm:"index"`
	Category              *Category
	AccountID             *uint `gorm:"index"`
	Account               *Account
	ProviderTransactionID *string `gorm:"size:100;uniqueIndex:idx_user_provider_tx"`
	ImportBatchID         *string `gorm:"size:36;index"`
	CreatedAt             time.Time
}

// Category is a user-scoped label, optionally nested one level under a
// parent. A parent category must itself be parentless (two-level hierarchy).
type Category struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   uint   `gorm:"not null;index"`
	Name     string `gorm:"size:50;not null"`
	ParentID *uint  `gorm:"index"`
	Parent   *Category
}

// FullPath returns the display path: "Parent > Name" when parented,
// otherwise just the name. The parent association must be loaded.
func (c *Category) FullPath() string {
	if c.Parent != nil {
		return c.Parent.Name + " > " + c.Name
	}
	return c.Name
}

// Account is either a manually declared account or one discovered via the
// aggregation provider. InvertAmounts is tri-state and only meaningful for
// manual accounts: true flips the sign of every imported amount, false
// keeps it, nil means not yet determined.
type Account struct {
	ID                uint   `gorm:"primaryKey"`
	UserID            uint   `gorm:"not null;index"`
	Name              string `gorm:"size:100;not null"`
	Type              string `gorm:"size:20;not null;default:manual"`
	Status            string `gorm:"size:20;not null;default:active"`
	Currency          string `gorm:"size:3;not null;default:GBP"`
	ItemID            *uint  `gorm:"index"`
	ProviderAccountID *string `gorm:"size:100;index"`
	Mask              *string `gorm:"size:10"`
	Subtype           *string `gorm:"size:30"`
	InvertAmounts     *bool
	CreatedAt         time.Time
}

// LinkedItem is one provider connection (a "bank login"). Cursor is the
// opaque provider-issued sync token: nil means no sync has happened and the
// next sync fetches full history. It must only be advanced in the same
// storage transaction that applied the rows it made visible.
type LinkedItem struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"not null;index"`
	AccessToken     string `gorm:"size:200;not null"`
	ProviderItemID  string `gorm:"size:100;not null;index"`
	InstitutionName string `gorm:"size:100"`
	Cursor          *string `gorm:"size:500"`
	LastSyncedAt    *time.Time
	Accounts        []Account `gorm:"foreignKey:ItemID"`
	CreatedAt       time.Time
}

// AccountBalance is an immutable snapshot appended after each sync. Balance
// history is reconstructed by reading snapshots newest first; rows are never
// updated or deleted.
type AccountBalance struct {
	ID             uint            `gorm:"primaryKey"`
	AccountID      uint            `gorm:"not null;index"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency       string          `gorm:"size:3;not null"`
	RecordedAt     time.Time       `gorm:"not null;index"`
}
