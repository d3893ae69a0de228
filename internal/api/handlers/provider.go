package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/provider"
	"github.com/ledgerline/ledgerline/internal/store"
	"github.com/ledgerline/ledgerline/internal/synchro"
)

// ProviderHandler drives the aggregation-provider flows: link-session
// creation, token exchange and sync.
type ProviderHandler struct {
	store  *store.Store
	client provider.Client
	syncer *synchro.Syncer
	log    zerolog.Logger
}

func NewProviderHandler(st *store.Store, client provider.Client, syncer *synchro.Syncer, log zerolog.Logger) *ProviderHandler {
	return &ProviderHandler{store: st, client: client, syncer: syncer, log: log}
}

// LinkToken handles POST /api/provider/link-token.
func (h *ProviderHandler) LinkToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	token, err := h.client.CreateLinkSession(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

// Exchange handles POST /api/provider/exchange: trade the public token for
// an access token, persist the connection and its discovered accounts.
func (h *ProviderHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req struct {
		PublicToken     string `json:"public_token"`
		InstitutionName string `json:"institution_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicToken == "" {
		middleware.WriteError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	res, err := h.client.ExchangeSession(ctx, req.PublicToken)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	// Discover the accounts under the new token so they exist before the
	// first sync maps transactions onto them.
	balances, err := h.client.GetBalances(ctx, res.AccessToken)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	item := &domain.LinkedItem{
		UserID:          uid,
		AccessToken:     res.AccessToken,
		ProviderItemID:  res.ItemID,
		InstitutionName: req.InstitutionName,
	}
	accounts := make([]*domain.Account, 0, len(balances))
	for _, bal := range balances {
		id := bal.AccountID
		accounts = append(accounts, &domain.Account{
			Name:              accountDisplayName(req.InstitutionName, bal.AccountID),
			Currency:          bal.Currency,
			ProviderAccountID: &id,
		})
	}

	if err := h.store.CreateLinkedItem(ctx, item, accounts); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	h.log.Info().
		Uint("item_id", item.ID).
		Int("accounts", len(accounts)).
		Str("institution", req.InstitutionName).
		Msg("provider item linked")

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"item_id":  item.ID,
		"accounts": len(accounts),
	})
}

// Items handles GET /api/provider/items.
func (h *ProviderHandler) Items(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	items, err := h.store.ItemsForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	// Access tokens never leave the server.
	for i := range items {
		items[i].AccessToken = ""
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// SyncItem handles POST /api/provider/items/{itemID}/sync.
func (h *ProviderHandler) SyncItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	itemID, err := parseUintField(chi.URLParam(r, "itemID"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "itemID must be a positive integer")
		return
	}
	item, err := h.store.ItemByID(r.Context(), uid, itemID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if item == nil {
		middleware.WriteError(w, http.StatusNotFound, "item not found")
		return
	}

	res, err := h.syncer.Sync(r.Context(), item)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// SyncAll handles POST /api/provider/sync: every linked item of the user.
func (h *ProviderHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	results, err := h.syncer.SyncAll(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func accountDisplayName(institution, providerAccountID string) string {
	suffix := providerAccountID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	if institution == "" {
		return fmt.Sprintf("Account %s", suffix)
	}
	return fmt.Sprintf("%s %s", institution, suffix)
}
