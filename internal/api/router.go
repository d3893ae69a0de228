// Package api assembles the chi router from the handler groups and the
// cross-cutting middleware.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/api/handlers"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/archive"
	"github.com/ledgerline/ledgerline/internal/categorize"
	"github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/provider"
	"github.com/ledgerline/ledgerline/internal/store"
	"github.com/ledgerline/ledgerline/internal/synchro"
)

// Deps is everything the router needs. Archiver may be nil (archival
// disabled).
type Deps struct {
	Store      *store.Store
	Builder    *pipeline.Builder
	Categorize *categorize.Service
	Provider   provider.Client
	Syncer     *synchro.Syncer
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	Archiver   archive.Archiver
	Log        zerolog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	uploads := handlers.NewUploadsHandler(d.Store, d.Builder, d.Archiver, d.Log)
	transactions := handlers.NewTransactionsHandler(d.Store, d.Categorize, d.Publisher, d.JobStore, d.Log)
	categories := handlers.NewCategoriesHandler(d.Store, d.Log)
	accounts := handlers.NewAccountsHandler(d.Store, d.Log)
	prov := handlers.NewProviderHandler(d.Store, d.Provider, d.Syncer, d.Log)
	users := handlers.NewUsersHandler(d.Store, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS)

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		// Registration has no user scope yet.
		r.Post("/users", users.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserScope)

			r.Post("/uploads", uploads.Upload)
			r.Get("/imports/{batchID}", uploads.ImportBatch)
			r.Get("/formats", uploads.Formats)

			r.Get("/transactions", transactions.List)
			r.Get("/transactions/uncategorized", transactions.Uncategorized)
			r.Post("/transactions/categories", transactions.UpdateCategories)

			r.Post("/categorize", transactions.Categorize)
			r.Post("/categorize/jobs", transactions.EnqueueCategorizeJob)
			r.Get("/categorize/jobs/{jobID}", transactions.CategorizeJobStatus)

			r.Get("/categories", categories.List)
			r.Post("/categories", categories.Create)

			r.Get("/accounts", accounts.List)
			r.Post("/accounts", accounts.Create)
			r.Patch("/accounts/{accountID}", accounts.Update)
			r.Get("/accounts/{accountID}/balances", accounts.Balances)

			r.Post("/provider/link-token", prov.LinkToken)
			r.Post("/provider/exchange", prov.Exchange)
			r.Get("/provider/items", prov.Items)
			r.Post("/provider/items/{itemID}/sync", prov.SyncItem)
			r.Post("/provider/sync", prov.SyncAll)

			r.Get("/stats", transactions.Stats)
		})
	})

	return r
}
