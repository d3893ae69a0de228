package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ledgerline/ledgerline/internal/api"
	"github.com/ledgerline/ledgerline/internal/archive"
	"github.com/ledgerline/ledgerline/internal/categorize"
	"github.com/ledgerline/ledgerline/internal/config"
	intjobs "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/jobs/inmemory"
	"github.com/ledgerline/ledgerline/internal/llm"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/provider"
	"github.com/ledgerline/ledgerline/internal/store"
	"github.com/ledgerline/ledgerline/internal/synchro"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completion client")
	}

	var providerClient provider.Client
	if cfg.Aggregator.ClientID == "" {
		log.Warn().Msg("No aggregator credentials configured - using the built-in fake provider")
		providerClient = &provider.Fake{}
	} else {
		providerClient, err = provider.NewHTTPClient(provider.HTTPClientConfig{
			Env:      cfg.Aggregator.Env,
			BaseURL:  cfg.Aggregator.BaseURL,
			ClientID: cfg.Aggregator.ClientID,
			Secret:   cfg.Aggregator.Secret,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create aggregator client")
		}
	}

	var archiver archive.Archiver
	if cfg.Archive.Bucket != "" {
		gcs, err := archive.NewGCS(ctx, cfg.Archive.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archive client")
		}
		defer gcs.Close()
		archiver = gcs
	} else {
		log.Warn().Msg("No archive bucket configured - upload archival disabled")
	}

	builder := pipeline.NewBuilder(st)
	categorizeSvc := categorize.New(st, completer, log)
	syncer := synchro.New(st, providerClient, builder, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job intjobs.Job) error {
		cj, ok := job.(*intjobs.CategorizeJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", cj.JobID).
			Uint("user_id", cj.UserID).
			Msg("Processing categorize job")

		var out categorize.Outcome
		var err error
		if len(cj.TransactionIDs) > 0 {
			out, err = categorizeSvc.ByIDs(ctx, cj.UserID, cj.TransactionIDs)
		} else {
			out, err = categorizeSvc.Uncategorized(ctx, cj.UserID)
		}
		if err != nil {
			return err
		}
		cj.Updated = out.Updated

		log.Info().
			Str("job_id", cj.JobID).
			Int("updated", out.Updated).
			Int("skipped", out.Skipped).
			Msg("Categorize job completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := api.NewRouter(api.Deps{
		Store:      st,
		Builder:    builder,
		Categorize: categorizeSvc,
		Provider:   providerClient,
		Syncer:     syncer,
		Publisher:  jobQueue,
		JobStore:   jobStore,
		Archiver:   archiver,
		Log:        log,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return llm.NewGemini(client, cfg.LLM.GeminiModel), nil
	case "openai":
		return llm.NewOpenAI(openai.NewClient(cfg.LLM.OpenAIAPIKey), cfg.LLM.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
