package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-clerk/internal/naming"
	"github.com/zombor/receipt-clerk/internal/receipt"
	"github.com/zombor/receipt-clerk/internal/scanning"
	"github.com/zombor/receipt-clerk/internal/sheets"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type providerConfig struct {
	geminiKey       string
	geminiModel     string
	ollamaURL       string
	ollamaModel     string
	openRouterKey   string
	openRouterURL   string
	openRouterModel string
	anthropicKey    string
	anthropicModel  string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-clerk")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-clerk.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./receipts", "Storage directory path")
		ocrProvider   = fs.StringLong("ocr", "gemini", "OCR provider: 'gemini', 'ollama' or 'openrouter'")
		extractorName = fs.StringLong("extractor", "none", "Structured extractor: 'none', 'gemini', 'ollama', 'openrouter' or 'anthropic'")
		threshold     = fs.Float64Long("confidence-threshold", naming.DefaultConfidenceThreshold, "Items guessed below this confidence need review")
		sheetsCreds   = fs.StringLong("sheets-credentials", "", "Google service account key file for spreadsheet sync")
		spreadsheetID = fs.StringLong("spreadsheet-id", "", "Spreadsheet to append verified receipts to (sync is disabled when empty)")
		sheetsRange   = fs.StringLong("sheets-range", sheets.DefaultRange, "Sheet or range rows are appended to")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		_             = fs.StringLong("config", "", "Config file (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")

		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		openRouterKey   = fs.StringLong("openrouter-key", "", "OpenRouter API key (or set OPENROUTER_API_KEY env var)")
		openRouterURL   = fs.StringLong("openrouter-url", scanning.DefaultOpenRouterURL, "OpenRouter API base URL")
		openRouterModel = fs.StringLong("openrouter-model", "", "OpenRouter model name")
		anthropicKey    = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel  = fs.StringLong("anthropic-model", "", "Anthropic model name")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_CLERK"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	providers := providerConfig{
		geminiKey:       *geminiKey,
		geminiModel:     *geminiModel,
		ollamaURL:       *ollamaURL,
		ollamaModel:     *ollamaModel,
		openRouterKey:   *openRouterKey,
		openRouterURL:   *openRouterURL,
		openRouterModel: *openRouterModel,
		anthropicKey:    *anthropicKey,
		anthropicModel:  *anthropicModel,
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ocr, err := newScanner(*ocrProvider, providers)
	if err != nil {
		slog.Error("Failed to initialize OCR", "provider", *ocrProvider, "error", err)
		os.Exit(1)
	}
	defer ocr.Close()

	opts := []receipt.Option{
		receipt.WithGuesser(naming.NewGuesser(db, *threshold)),
	}

	extractor, err := newStructuredExtractor(*extractorName, providers)
	if err != nil {
		slog.Error("Failed to initialize structured extractor", "provider", *extractorName, "error", err)
		os.Exit(1)
	}
	if extractor != nil {
		defer extractor.Close()
		opts = append(opts, receipt.WithStructuredExtractor(extractor))
	}

	if *spreadsheetID != "" {
		slog.Info("Initializing spreadsheet sync...", "spreadsheet", *spreadsheetID, "range", *sheetsRange)
		var syncer *sheets.Client
		if *sheetsCreds != "" {
			syncer, err = sheets.NewClientFromCredentials(context.Background(), *sheetsCreds, *spreadsheetID, *sheetsRange)
		} else {
			syncer, err = sheets.NewClient(context.Background(), *spreadsheetID, *sheetsRange)
		}
		if err != nil {
			slog.Error("Failed to initialize spreadsheet sync", "error", err)
			os.Exit(1)
		}
		opts = append(opts, receipt.WithSyncer(syncer))
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewService(db, ocr, store, opts...)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

type structuredExtractor interface {
	scanning.StructuredExtractor
	io.Closer
}

// keyOrEnv returns the flag value, falling back to the provider's usual
// environment variable
func keyOrEnv(flag, env string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(env)
}

// newScanner builds a provider that does both OCR and structured extraction
func newScanner(provider string, cfg providerConfig) (scanning.Scanner, error) {
	switch provider {
	case "gemini":
		apiKey := keyOrEnv(cfg.geminiKey, "GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	case "openrouter":
		apiKey := keyOrEnv(cfg.openRouterKey, "OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("openrouter API key is required: set --openrouter-key or OPENROUTER_API_KEY")
		}
		slog.Info("Initializing OpenRouter...", "url", cfg.openRouterURL, "model", cfg.openRouterModel)
		return scanning.NewOpenRouter(apiKey, cfg.openRouterURL, cfg.openRouterModel)
	default:
		return nil, fmt.Errorf("invalid provider %q: valid are gemini, ollama or openrouter", provider)
	}
}

// newStructuredExtractor returns nil when structured extraction is off
func newStructuredExtractor(provider string, cfg providerConfig) (structuredExtractor, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		apiKey := keyOrEnv(cfg.anthropicKey, "ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key is required: set --anthropic-key or ANTHROPIC_API_KEY")
		}
		slog.Info("Initializing Anthropic extractor...", "model", cfg.anthropicModel)
		return scanning.NewAnthropic(apiKey, cfg.anthropicModel)
	default:
		scanner, err := newScanner(provider, cfg)
		if err != nil {
			return nil, err
		}
		return scanner, nil
	}
}
