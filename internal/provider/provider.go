// Package provider defines the capability surface of the external
// account-aggregation service: link-session creation, token exchange,
// cursor-based incremental transaction sync and balance reads.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the aggregation-provider capability consumed by the core.
// Implementations must be safe for concurrent use.
type Client interface {
	// CreateLinkSession returns a short-lived session token the frontend
	// uses to open the provider's link flow.
	CreateLinkSession(ctx context.Context, userID uint) (string, error)

	// ExchangeSession trades the public token from the link flow for a
	// durable access token and the provider's item id.
	ExchangeSession(ctx context.Context, publicToken string) (ExchangeResult, error)

	// SyncPage fetches one page of transaction changes. A nil cursor
	// means first sync: full history. The returned cursor must only be
	// persisted after the page's rows have been durably applied.
	SyncPage(ctx context.Context, accessToken string, cursor *string) (SyncPage, error)

	// GetBalances returns the current balance of every account under the
	// access token.
	GetBalances(ctx context.Context, accessToken string) ([]Balance, error)
}

// ExchangeResult is the outcome of a public-token exchange.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// SyncPage is one page of the incremental sync protocol.
type SyncPage struct {
	Added      []Transaction        `json:"added"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
}

// Transaction is one provider-sourced transaction row.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Date          Date            `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Name          string          `json:"name"`
}

// RemovedTransaction identifies a transaction the provider retracted.
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
}

// Balance is one account's current balance snapshot.
type Balance struct {
	AccountID string          `json:"account_id"`
	Current   decimal.Decimal `json:"current_balance"`
	Currency  string          `json:"currency"`
}

// Date is a calendar day on the wire, formatted YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("provider date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}
