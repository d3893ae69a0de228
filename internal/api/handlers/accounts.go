package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/store"
)

// AccountsHandler manages manual accounts and serves balance history.
type AccountsHandler struct {
	store *store.Store
	log   zerolog.Logger
}

func NewAccountsHandler(st *store.Store, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{store: st, log: log}
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	accs, err := h.store.AccountsForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accs,
		"count":    len(accs),
	})
}

// Create handles POST /api/accounts: a new manual account.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name          string `json:"name"`
		Currency      string `json:"currency"`
		InvertAmounts *bool  `json:"invert_amounts,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Currency == "" {
		req.Currency = "GBP"
	}
	if len(req.Currency) != 3 {
		middleware.WriteError(w, http.StatusBadRequest, "currency must be a 3-letter code")
		return
	}

	acc := &domain.Account{
		UserID:        uid,
		Name:          req.Name,
		Type:          domain.AccountTypeManual,
		Status:        domain.AccountStatusActive,
		Currency:      req.Currency,
		InvertAmounts: req.InvertAmounts,
	}
	if err := h.store.CreateAccount(r.Context(), acc); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// Update handles PATCH /api/accounts/{accountID}: rename, close/reopen,
// or settle the tri-state invert flag.
func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	accountID, err := parseUintField(chi.URLParam(r, "accountID"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "accountID must be a positive integer")
		return
	}

	acc, err := h.store.AccountByID(r.Context(), uid, accountID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if acc == nil {
		middleware.WriteError(w, http.StatusNotFound, "account not found")
		return
	}

	var req struct {
		Name          *string `json:"name,omitempty"`
		Status        *string `json:"status,omitempty"`
		InvertAmounts *bool   `json:"invert_amounts,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		acc.Name = *req.Name
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.AccountStatusActive, domain.AccountStatusClosed:
			acc.Status = *req.Status
		default:
			middleware.WriteError(w, http.StatusBadRequest, "status must be active or closed")
			return
		}
	}
	if req.InvertAmounts != nil {
		if acc.Type != domain.AccountTypeManual {
			middleware.WriteError(w, http.StatusBadRequest, "invert_amounts only applies to manual accounts")
			return
		}
		acc.InvertAmounts = req.InvertAmounts
	}

	if err := h.store.UpdateAccount(r.Context(), acc); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, acc)
}

// Balances handles GET /api/accounts/{accountID}/balances.
func (h *AccountsHandler) Balances(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	accountID, err := parseUintField(chi.URLParam(r, "accountID"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "accountID must be a positive integer")
		return
	}

	balances, err := h.store.BalancesForAccount(r.Context(), uid, accountID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "account not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"balances": balances,
		"count":    len(balances),
	})
}
