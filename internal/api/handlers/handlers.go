// Package handlers implements the JSON API endpoints. Handlers are thin:
// decode, delegate to the pipeline/store/provider layers, map domain errors
// to status codes, encode.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/store"
)

// userID pulls the scope installed by the UserScope middleware. Routes are
// mounted behind it, so a miss here is a wiring bug, reported as 500.
func userID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "user scope missing")
		return 0, false
	}
	return id, true
}

// writeDomainError maps the error taxonomy onto HTTP statuses: invalid
// input is the caller's fault, upstream trouble is a bad gateway, storage
// failure is internal.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteError(w, http.StatusBadRequest, verr.Msg)
		return
	}

	var uerr *pipeline.UpstreamError
	if errors.As(err, &uerr) {
		log.Error().Err(err).Str("op", uerr.Op).Msg("upstream call failed")
		middleware.WriteError(w, http.StatusBadGateway, "upstream service failed")
		return
	}

	var cerr *pipeline.CategorizationError
	if errors.As(err, &cerr) {
		log.Error().Err(err).Msg("categorization reply unusable")
		middleware.WriteError(w, http.StatusBadGateway, "categorization failed")
		return
	}

	var perr *store.PersistenceError
	if errors.As(err, &perr) {
		log.Error().Err(err).Str("op", perr.Op).Msg("persistence failure")
		middleware.WriteError(w, http.StatusInternalServerError, "storage failure, nothing was saved")
		return
	}

	log.Error().Err(err).Msg("request failed")
	middleware.WriteError(w, http.StatusInternalServerError, "internal error")
}

// errHandled marks an error the handler has already written a response
// for; callers just return.
var errHandled = errors.New("response already written")

// parseUintField parses a positive integer form or URL value.
func parseUintField(raw string) (uint, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("not a positive integer")
	}
	return uint(v), nil
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
