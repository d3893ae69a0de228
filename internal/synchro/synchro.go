// Package synchro drives incremental provider sync: it walks the cursor
// paging protocol, builds transaction entities out of the fetched rows and
// applies every effect of a sync pass in one storage transaction, cursor
// included. A crash between fetch and commit therefore costs nothing; the
// next pass replays the same pages and dedup makes the replay a no-op.
package synchro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/provider"
	"github.com/ledgerline/ledgerline/internal/store"
)

// Sync pass states, visible per linked item.
const (
	StatusIdle     = "idle"
	StatusFetching = "fetching"
	StatusApplying = "applying"
	StatusFailed   = "failed"
)

// maxPages bounds a single pass so a misbehaving provider cannot hold a
// sync open forever.
const maxPages = 50

// Result summarizes one completed sync pass.
type Result struct {
	ItemID  uint   `json:"item_id"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Pages   int    `json:"pages"`
	Cursor  string `json:"-"`
}

// Syncer coordinates provider fetches with atomic local application.
type Syncer struct {
	store    *store.Store
	provider provider.Client
	builder  *pipeline.Builder
	log      zerolog.Logger

	mu     sync.Mutex
	status map[uint]string
}

func New(st *store.Store, client provider.Client, builder *pipeline.Builder, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:    st,
		provider: client,
		builder:  builder,
		log:      log,
		status:   make(map[uint]string),
	}
}

// Status reports the current pass state for an item.
func (s *Syncer) Status(itemID uint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[itemID]; ok {
		return st
	}
	return StatusIdle
}

func (s *Syncer) setStatus(itemID uint, status string) {
	s.mu.Lock()
	s.status[itemID] = status
	s.mu.Unlock()
}

// Sync runs one full pass for a linked item: page through changes from the
// stored cursor, then commit added rows, removals, balance snapshots and
// the new cursor together.
func (s *Syncer) Sync(ctx context.Context, item *domain.LinkedItem) (Result, error) {
	res := Result{ItemID: item.ID}

	s.setStatus(item.ID, StatusFetching)
	added, removed, cursor, pages, err := s.fetchAll(ctx, item)
	if err != nil {
		s.setStatus(item.ID, StatusFailed)
		return res, err
	}
	res.Pages = pages
	res.Cursor = cursor

	s.setStatus(item.ID, StatusApplying)
	if err := s.apply(ctx, item, added, removed, cursor, &res); err != nil {
		s.setStatus(item.ID, StatusFailed)
		return res, err
	}

	s.setStatus(item.ID, StatusIdle)
	s.log.Info().
		Uint("item_id", item.ID).
		Int("pages", res.Pages).
		Int("added", res.Added).
		Int("removed", res.Removed).
		Msg("provider sync complete")
	return res, nil
}

// fetchAll walks the paging protocol in order, accumulating changes until
// the provider reports no more pages. The cursor returned here is not
// persisted; apply commits it with the rows it acknowledges.
func (s *Syncer) fetchAll(ctx context.Context, item *domain.LinkedItem) (added []provider.Transaction, removed []string, cursor string, pages int, err error) {
	next := item.Cursor
	for {
		if pages >= maxPages {
			return nil, nil, "", pages, fmt.Errorf("sync item %d: page limit reached after %d pages", item.ID, pages)
		}

		page, err := s.provider.SyncPage(ctx, item.AccessToken, next)
		if err != nil {
			return nil, nil, "", pages, fmt.Errorf("sync item %d: %w", item.ID, err)
		}
		pages++

		added = append(added, page.Added...)
		for _, r := range page.Removed {
			removed = append(removed, r.TransactionID)
		}
		cursor = page.NextCursor
		next = &cursor

		if !page.HasMore {
			return added, removed, cursor, pages, nil
		}
	}
}

// apply commits every effect of the pass in one unit of work. The cursor
// is written last, inside the same transaction, so it never gets ahead of
// the data it acknowledges.
func (s *Syncer) apply(ctx context.Context, item *domain.LinkedItem, added []provider.Transaction, removed []string, cursor string, res *Result) error {
	accountMap, err := s.store.ProviderAccountMap(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("sync item %d: %w", item.ID, err)
	}

	rows := make([]pipeline.ProviderRow, 0, len(added))
	for _, pt := range added {
		rows = append(rows, pipeline.ProviderRow{
			TransactionID: pt.TransactionID,
			AccountID:     pt.AccountID,
			Date:          pt.Date.Time,
			Amount:        pt.Amount,
			Name:          pt.Name,
		})
	}

	built, err := s.builder.BuildFromProvider(ctx, rows, accountMap, item.UserID)
	if err != nil {
		return fmt.Errorf("sync item %d: %w", item.ID, err)
	}

	balances, err := s.provider.GetBalances(ctx, item.AccessToken)
	if err != nil {
		// Balances are a bonus read; a failure here must not discard the
		// transaction changes already fetched.
		s.log.Warn().Err(err).Uint("item_id", item.ID).Msg("balance fetch failed, continuing without snapshots")
		balances = nil
	}

	now := time.Now().UTC()
	err = s.store.Transact(ctx, func(tx *store.Store) error {
		if err := tx.SaveTransactions(ctx, built); err != nil {
			return err
		}
		deleted, err := tx.DeleteByProviderIDs(ctx, item.UserID, removed)
		if err != nil {
			return err
		}
		res.Removed = int(deleted)

		for _, bal := range balances {
			accountID, ok := accountMap[bal.AccountID]
			if !ok {
				continue
			}
			snap := &domain.AccountBalance{
				AccountID:      accountID,
				CurrentBalance: bal.Current,
				Currency:       bal.Currency,
				RecordedAt:     now,
			}
			if err := tx.RecordBalance(ctx, snap); err != nil {
				return err
			}
		}

		return tx.AdvanceCursor(ctx, item.UserID, item.ID, cursor, now)
	})
	if err != nil {
		return fmt.Errorf("sync item %d: applying changes: %w", item.ID, err)
	}
	res.Added = len(built)
	return nil
}

// SyncAll runs a pass for every item the user has linked. Items sync
// independently; one failing item does not stop the rest, and the error
// returned names every item that failed.
func (s *Syncer) SyncAll(ctx context.Context, userID uint) ([]Result, error) {
	items, err := s.store.ItemsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []Result
	var failures []error
	for i := range items {
		res, err := s.Sync(ctx, &items[i])
		if err != nil {
			s.log.Error().Err(err).Uint("item_id", items[i].ID).Msg("item sync failed")
			failures = append(failures, err)
			continue
		}
		results = append(results, res)
	}
	if len(failures) > 0 {
		return results, fmt.Errorf("%d of %d items failed to sync: %v", len(failures), len(items), failures[0])
	}
	return results, nil
}
