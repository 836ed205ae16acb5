package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/veripay/internal/extraction"
	"github.com/zombor/veripay/internal/receipt"
	"github.com/zombor/veripay/internal/reconcile"
	"github.com/zombor/veripay/internal/scanning"
	"github.com/zombor/veripay/internal/server"
	"github.com/zombor/veripay/internal/store"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("veripay")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "veripay.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./evidence", "Receipt photo directory")
		scannerType   = fs.StringLong("scanner", "gemini", "Text recognizer: 'gemini', 'ollama' or 'none' (text captures only)")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		currency      = fs.StringLong("default-currency", extraction.DefaultCurrency, "Currency assumed when a receipt names none")
		toleranceDays = fs.IntLong("date-tolerance-days", reconcile.DefaultDateTolerance, "Days a statement date may differ from a receipt date")
		idAttempts    = fs.IntLong("id-attempts", receipt.DefaultIDAttempts, "Attempts to allocate a unique record id")
		detectBank    = fs.BoolDefault(0, "detect-bank", true, "Detect the bank from receipt text when none is given")
		schedule      = fs.StringLong("reconcile-schedule", reconcile.DefaultSchedule, "Cron schedule for reconciling the previous week (empty disables)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("VERIPAY"),
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

	// Initialize database
	slog.Info("Initializing database...")
	db, err := store.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "none":
		slog.Info("No text recognizer configured; only text captures are accepted")
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or none")
		os.Exit(1)
	}
	if scanner != nil {
		defer scanner.Close()
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	evidence, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	extractor := extraction.NewExtractorWithCurrency(extraction.DefaultRegistry(), *currency)
	receiptService := receipt.NewService(db, scanner, evidence, extractor, receipt.Options{
		MaxIDAttempts: *idAttempts,
		DetectBank:    *detectBank,
	})
	reconcileService := reconcile.NewService(db, db, extractor, reconcile.NewMatcher(*toleranceDays))

	var scheduler *reconcile.Scheduler
	if *schedule != "" {
		scheduler = reconcile.NewScheduler(reconcileService, slog.Default())
		if err := scheduler.Start(*schedule); err != nil {
			slog.Error("Failed to start reconciliation schedule", "error", err)
			os.Exit(1)
		}
		slog.Info("Reconciliation scheduled", "schedule", *schedule)
	}

	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := server.NewServer(receiptService, reconcileService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}
