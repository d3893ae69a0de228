// Package categorize runs batch LLM categorization end to end: collect the
// target transactions, ask the model, and apply the category names that
// resolve against the user's own category set. Unknown names are skipped,
// never invented, so the model can only move transactions between
// categories the user already has.
package categorize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/llm"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/store"
)

// maxBatchSize bounds one model call. Larger sets run in several calls so
// a long backlog cannot blow the token budget of a single completion.
const maxBatchSize = 50

// Outcome reports what one categorization run did.
type Outcome struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// Service wires the model to the persistence gateway.
type Service struct {
	store     *store.Store
	completer llm.Completer
	log       zerolog.Logger
}

func New(st *store.Store, completer llm.Completer, log zerolog.Logger) *Service {
	return &Service{store: st, completer: completer, log: log}
}

// Uncategorized categorizes every transaction of the user that has no
// category yet.
func (s *Service) Uncategorized(ctx context.Context, userID uint) (Outcome, error) {
	txs, err := s.store.UncategorizedForUser(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	return s.run(ctx, userID, txs)
}

// ByIDs categorizes the given transactions. Ids that do not belong to the
// user are silently absent from the run.
func (s *Service) ByIDs(ctx context.Context, userID uint, ids []uint) (Outcome, error) {
	txs, err := s.store.TransactionsByIDs(ctx, userID, ids)
	if err != nil {
		return Outcome{}, err
	}
	return s.run(ctx, userID, txs)
}

func (s *Service) run(ctx context.Context, userID uint, txs []domain.Transaction) (Outcome, error) {
	out := Outcome{Requested: len(txs)}
	if len(txs) == 0 {
		return out, nil
	}

	names, err := s.store.ListCategoryNames(ctx, userID)
	if err != nil {
		return out, err
	}
	if len(names) == 0 {
		return out, fmt.Errorf("user %d has no categories to assign", userID)
	}
	byName, err := s.store.ResolveCategoryNames(ctx, userID)
	if err != nil {
		return out, err
	}

	accountNames, err := s.accountNames(ctx, userID)
	if err != nil {
		return out, err
	}

	for start := 0; start < len(txs); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(txs) {
			end = len(txs)
		}
		updated, skipped, err := s.runBatch(ctx, userID, txs[start:end], names, byName, accountNames)
		out.Updated += updated
		out.Skipped += skipped
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Service) runBatch(ctx context.Context, userID uint, txs []domain.Transaction, names []string, byName map[string]uint, accountNames map[uint]string) (updated, skipped int, err error) {
	items := make([]pipeline.BatchItem, 0, len(txs))
	for _, tx := range txs {
		account := ""
		if tx.AccountID != nil {
			account = accountNames[*tx.AccountID]
		}
		items = append(items, pipeline.BatchItem{
			ID:          tx.ID,
			Date:        tx.Date,
			Amount:      tx.Amount,
			Description: tx.Description,
			Account:     account,
		})
	}

	assignments, err := pipeline.CategorizeBatch(ctx, s.completer, items, names)
	if err != nil {
		return 0, 0, err
	}

	for id, name := range assignments {
		catID, ok := byName[name]
		if !ok {
			s.log.Debug().
				Uint("transaction_id", id).
				Str("category", name).
				Msg("model returned a category the user does not have")
			skipped++
			continue
		}
		if err := s.store.AssignCategory(ctx, userID, id, &catID); err != nil {
			// The model may answer for an id that is not in the batch.
			s.log.Debug().Err(err).Uint("transaction_id", id).Msg("skipping unassignable id")
			skipped++
			continue
		}
		updated++
	}
	return updated, skipped, nil
}

func (s *Service) accountNames(ctx context.Context, userID uint) (map[uint]string, error) {
	accounts, err := s.store.AccountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}
