// Command import ingests a CSV statement from the command line, for
// scripted backfills without going through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ledgerline/ledgerline/internal/categorize"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/domain"
	"github.com/ledgerline/ledgerline/internal/llm"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/pipeline"
	"github.com/ledgerline/ledgerline/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	var (
		file          = flag.String("file", "", "Path to the CSV statement")
		user          = flag.Uint("user", 0, "User id to import for")
		account       = flag.Uint("account", 0, "Manual account id to attach rows to")
		format        = flag.String("format", "standard", "CSV format: "+strings.Join(pipeline.FormatNames(), ", "))
		runCategorize = flag.Bool("categorize", false, "Run LLM categorization after the import")
	)
	flag.Parse()

	if *file == "" || *user == 0 || *account == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	if !pipeline.AllowedFile(*file) {
		log.Fatal().Str("file", *file).Msg("Only .csv files are accepted")
	}

	acc, err := st.AccountByID(ctx, uint(*user), uint(*account))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load account")
	}
	if acc == nil || acc.Type != domain.AccountTypeManual || acc.Status != domain.AccountStatusActive {
		log.Fatal().Uint("account", *account).Msg("Account must be an active manual account owned by the user")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open statement")
	}
	defer f.Close()

	records, err := pipeline.ReadCSV(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV")
	}

	opts := pipeline.ParseOptions{AccountName: acc.Name}
	if acc.InvertAmounts != nil {
		opts.InvertAmounts = *acc.InvertAmounts
	}
	rows, err := pipeline.ParseRows(records, *format, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse statement")
	}

	builder := pipeline.NewBuilder(st)
	built, err := builder.BuildFromRows(ctx, rows, uint(*user), &acc.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Import aborted")
	}

	batchID := uuid.NewString()
	for _, tx := range built {
		id := batchID
		tx.ImportBatchID = &id
	}
	if err := st.SaveTransactions(ctx, built); err != nil {
		log.Fatal().Err(err).Msg("Nothing was saved")
	}

	log.Info().
		Str("file", filepath.Base(*file)).
		Str("batch_id", batchID).
		Int("imported", len(built)).
		Msg("Import complete")

	if !*runCategorize {
		return
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completion client")
	}
	out, err := categorize.New(st, completer, log).Uncategorized(ctx, uint(*user))
	if err != nil {
		log.Fatal().Err(err).Msg("Categorization failed")
	}
	log.Info().
		Int("requested", out.Requested).
		Int("updated", out.Updated).
		Int("skipped", out.Skipped).
		Msg("Categorization complete")
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
