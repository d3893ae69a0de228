package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/archive"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/store"
)

// maxUploadBytes caps a statement upload at 10 MiB.
const maxUploadBytes = 10 << 20

// UploadsHandler ingests CSV statement uploads and serves import batches.
type UploadsHandler struct {
	store    *store.Store
	builder  *pipeline.Builder
	archiver archive.Archiver
	log      zerolog.Logger
}

func NewUploadsHandler(st *store.Store, builder *pipeline.Builder, archiver archive.Archiver, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{store: st, builder: builder, archiver: archiver, log: log}
}

// Upload handles POST /api/uploads. Multipart fields: file (the CSV),
// account_id, format (defaults to standard). The whole file commits or
// nothing does.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !pipeline.AllowedFile(header.Filename) {
		middleware.WriteError(w, http.StatusBadRequest, "only .csv files are accepted")
		return
	}

	account, err := h.resolveAccount(w, r)
	if err != nil {
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = "standard"
	}

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	records, err := pipeline.ReadCSV(bytes.NewReader(data))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	opts := pipeline.ParseOptions{AccountName: account.Name}
	if account.InvertAmounts != nil {
		opts.InvertAmounts = *account.InvertAmounts
	}
	rows, err := pipeline.ParseRows(records, format, opts)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	built, err := h.builder.BuildFromRows(ctx, rows, uid, &account.ID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	batchID := uuid.NewString()
	categorized := 0
	for _, tx := range built {
		id := batchID
		tx.ImportBatchID = &id
		if tx.CategoryID != nil {
			categorized++
		}
	}

	if err := h.store.SaveTransactions(ctx, built); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	// The import has committed; a failed archive only loses the raw bytes.
	if h.archiver != nil {
		if uri, err := h.archiver.Archive(ctx, header.Filename, data); err != nil {
			h.log.Warn().Err(err).Str("filename", header.Filename).Msg("upload archive failed")
		} else {
			h.log.Info().Str("uri", uri).Str("batch_id", batchID).Msg("upload archived")
		}
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"batch_id":    batchID,
		"imported":    len(built),
		"categorized": categorized,
	})
}

func (h *UploadsHandler) resolveAccount(w http.ResponseWriter, r *http.Request) (*accountRef, error) {
	uid, _ := middleware.UserID(r.Context())

	accountID, err := parseUintField(r.FormValue("account_id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "account_id must be a positive integer")
		return nil, err
	}

	acc, err := h.store.AccountByID(r.Context(), uid, accountID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return nil, err
	}
	if acc == nil || acc.Type != domain.AccountTypeManual || acc.Status != domain.AccountStatusActive {
		middleware.WriteError(w, http.StatusBadRequest, "account_id must name one of your active manual accounts")
		return nil, errHandled
	}
	return &accountRef{ID: acc.ID, Name: acc.Name, InvertAmounts: acc.InvertAmounts}, nil
}

// ImportBatch handles GET /api/imports/{batchID}: the transactions one
// upload created, for post-import review.
func (h *UploadsHandler) ImportBatch(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	batchID := chi.URLParam(r, "batchID")
	if _, err := uuid.Parse(batchID); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "batchID must be a uuid")
		return
	}

	txs, err := h.store.TransactionsByBatch(r.Context(), uid, batchID)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":     batchID,
		"transactions": txs,
		"count":        len(txs),
	})
}

// Formats handles GET /api/formats: the registered CSV format names.
func (h *UploadsHandler) Formats(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"formats": pipeline.FormatNames(),
	})
}

type accountRef struct {
	ID            uint
	Name          string
	InvertAmounts *bool
}
