package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/categorize"
	"github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/store"
)

// TransactionsHandler serves transaction reads, manual category updates
// and batch categorization, both synchronous and as background jobs.
type TransactionsHandler struct {
	store      *store.Store
	categorize *categorize.Service
	publisher  jobs.Publisher
	jobStore   jobs.JobStore
	log        zerolog.Logger
}

func NewTransactionsHandler(st *store.Store, svc *categorize.Service, publisher jobs.Publisher, jobStore jobs.JobStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:      st,
		categorize: svc,
		publisher:  publisher,
		jobStore:   jobStore,
		log:        log,
	}
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	txs, err := h.store.TransactionsForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Uncategorized handles GET /api/transactions/uncategorized.
func (h *TransactionsHandler) Uncategorized(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	txs, err := h.store.UncategorizedForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

type categoryAssignment struct {
	TransactionID uint  `json:"transaction_id"`
	CategoryID    *uint `json:"category_id"`
}

type updateCategoriesRequest struct {
	Assignments []categoryAssignment `json:"assignments"`

	// ResetBatchID clears the category of every transaction in the
	// named import batch before assignments are applied.
	ResetBatchID string `json:"reset_batch_id,omitempty"`
}

// UpdateCategories handles POST /api/transactions/categories. The whole
// request applies atomically.
func (h *TransactionsHandler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req updateCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Assignments) == 0 && req.ResetBatchID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "nothing to do: no assignments and no reset_batch_id")
		return
	}

	reset := 0
	err := h.store.Transact(r.Context(), func(tx *store.Store) error {
		if req.ResetBatchID != "" {
			batch, err := tx.TransactionsByBatch(r.Context(), uid, req.ResetBatchID)
			if err != nil {
				return err
			}
			for _, t := range batch {
				if t.CategoryID == nil {
					continue
				}
				if err := tx.AssignCategory(r.Context(), uid, t.ID, nil); err != nil {
					return err
				}
				reset++
			}
		}
		for _, a := range req.Assignments {
			if err := tx.AssignCategory(r.Context(), uid, a.TransactionID, a.CategoryID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"updated": len(req.Assignments),
		"reset":   reset,
	})
}

// Categorize handles POST /api/categorize: a synchronous batch run over
// the user's uncategorized transactions.
func (h *TransactionsHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	out, err := h.categorize.Uncategorized(r.Context(), uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// EnqueueCategorizeJob handles POST /api/categorize/jobs: queue the same
// run in the background and return a job id to poll.
func (h *TransactionsHandler) EnqueueCategorizeJob(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		TransactionIDs []uint `json:"transaction_ids,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job := &jobs.CategorizeJob{UserID: uid, TransactionIDs: req.TransactionIDs}
	if err := h.publisher.PublishCategorize(r.Context(), job); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// CategorizeJobStatus handles GET /api/categorize/jobs/{jobID}.
func (h *TransactionsHandler) CategorizeJobStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobStore.GetJob(r.Context(), jobID)
	if err != nil || job.UserID != uid {
		middleware.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// Stats handles GET /api/stats.
func (h *TransactionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	total, err := h.store.CountForUser(ctx, uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	uncategorized, err := h.store.CountUncategorizedForUser(ctx, uid)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{
		"transactions":  total,
		"uncategorized": uncategorized,
	})
}
