package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/store"
)

// CategoriesHandler serves the user's category tree.
type CategoriesHandler struct {
	store *store.Store
	log   zerolog.Logger
}

func NewCategoriesHandler(st *store.Store, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: st, log: log}
}

type categoryView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id,omitempty"`
	FullPath string `json:"full_path"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cats, err := h.store.CategoriesForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	views := make([]categoryView, 0, len(cats))
	for i := range cats {
		views = append(views, categoryView{
			ID:       cats[i].ID,
			Name:     cats[i].Name,
			ParentID: cats[i].ParentID,
			FullPath: cats[i].FullPath(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": views,
		"count":      len(views),
	})
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		ParentID *uint  `json:"parent_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Name) > 50 {
		middleware.WriteError(w, http.StatusBadRequest, "name is required and must be at most 50 characters")
		return
	}

	cat := &domain.Category{UserID: uid, Name: req.Name, ParentID: req.ParentID}
	if err := h.store.CreateCategory(r.Context(), cat); err != nil {
		var perr *store.PersistenceError
		if !errors.As(err, &perr) {
			// Hierarchy and duplicate violations come back as plain
			// errors with user-presentable messages.
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, h.log, err)
		return
	}

	created, err := h.store.CategoryByID(r.Context(), uid, cat.ID)
	if err != nil || created == nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, categoryView{
		ID:       created.ID,
		Name:     created.Name,
		ParentID: created.ParentID,
		FullPath: created.FullPath(),
	})
}
