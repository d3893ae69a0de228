package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/seed"
	"github.com/ledgerline/ledgerline/internal/store"
)

// UsersHandler creates users. Registration sits outside the user-scope
// group since there is no scope yet.
type UsersHandler struct {
	store *store.Store
	log   zerolog.Logger
}

func NewUsersHandler(st *store.Store, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{store: st, log: log}
}

// Create handles POST /api/users: persist the user and install the default
// category set.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	user := &domain.User{Name: req.Name}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	seeded, err := seed.Categories(r.Context(), h.store, user.ID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                user.ID,
		"name":              user.Name,
		"seeded_categories": seeded,
	})
}
