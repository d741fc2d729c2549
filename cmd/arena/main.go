package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmorrow/prompt-arena/internal/adapter/cli"
	"github.com/jmorrow/prompt-arena/internal/adapter/llm/groq"
	llmhttp "github.com/jmorrow/prompt-arena/internal/adapter/llm/http"
	"github.com/jmorrow/prompt-arena/internal/adapter/llm/static"
	"github.com/jmorrow/prompt-arena/internal/adapter/observability"
	"github.com/jmorrow/prompt-arena/internal/adapter/output/markdown"
	memorystore "github.com/jmorrow/prompt-arena/internal/adapter/store/memory"
	"github.com/jmorrow/prompt-arena/internal/adapter/store/sqlite"
	"github.com/jmorrow/prompt-arena/internal/config"
	"github.com/jmorrow/prompt-arena/internal/store"
	"github.com/jmorrow/prompt-arena/internal/usecase/battle"
	"github.com/jmorrow/prompt-arena/internal/usecase/leak"
	"github.com/jmorrow/prompt-arena/internal/usecase/prompt"
	"github.com/jmorrow/prompt-arena/internal/usecase/rating"
	"github.com/jmorrow/prompt-arena/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Create cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "arena",
		EnvPrefix:   "ARENA",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Observability.Logging)

	arenaStore, err := buildStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}
	defer arenaStore.Close()

	completer, judge := buildProvider(cfg, logger)

	detector := leak.NewDetector(judge)
	matchmaker := rating.NewMatchmaker(arenaStore)

	engine := battle.NewEngine(battle.EngineDeps{
		Store:        arenaStore,
		Completer:    completer,
		Detector:     detector,
		Matchmaker:   matchmaker,
		Logger:       observability.NewBattleLogger(logger),
		SecretLength: cfg.Battle.SecretLength,
	})

	prompts := prompt.NewService(arenaStore, time.Now)

	// Timestamp function for deterministic report file naming
	nowFunc := func() string {
		return time.Now().UTC().Format("20060102T150405Z")
	}
	reportWriter := markdown.NewWriter(nowFunc)

	root := cli.NewRootCommand(cli.Dependencies{
		Prompts:       prompts,
		Battles:       engine,
		Opponents:     matchmaker,
		Reports:       reportWriter,
		DefaultOutput: cfg.Output.Directory,
		Version:       version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "arena"))
	}
	return paths
}

func buildLogger(cfg config.LoggingConfig) llmhttp.Logger {
	logLevel := llmhttp.LogLevelInfo
	switch cfg.Level {
	case "debug":
		logLevel = llmhttp.LogLevelDebug
	case "error":
		logLevel = llmhttp.LogLevelError
	}

	logFormat := llmhttp.LogFormatHuman
	if cfg.Format == "json" {
		logFormat = llmhttp.LogFormatJSON
	}

	return llmhttp.NewDefaultLogger(logLevel, logFormat, cfg.RedactAPIKeys)
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Backend == "memory" {
		return memorystore.NewStore(), nil
	}

	storeDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return sqlite.NewStore(cfg.Path)
}

// buildProvider returns the completion client for the defended model
// and the judge used for leak escalation. Both roles are served by the
// same provider.
func buildProvider(cfg config.Config, logger llmhttp.Logger) (battle.Completer, leak.Judge) {
	if cfg.Provider.Name == "groq" {
		if cfg.Provider.APIKey == "" || cfg.Provider.APIKey == "${GROQ_API_KEY}" {
			log.Println("groq: no API key provided, using static client")
			client := static.NewClient()
			return client, client
		}

		retry := llmhttp.DefaultRetryConfig()
		if cfg.HTTP.MaxRetries > 0 {
			retry.MaxRetries = cfg.HTTP.MaxRetries
		}
		if d, err := time.ParseDuration(cfg.HTTP.InitialBackoff); err == nil {
			retry.InitialDelay = d
		}
		if d, err := time.ParseDuration(cfg.HTTP.MaxBackoff); err == nil {
			retry.MaxDelay = d
		}
		if cfg.HTTP.BackoffMultiplier > 0 {
			retry.Multiplier = cfg.HTTP.BackoffMultiplier
		}

		opts := []groq.Option{
			groq.WithModel(cfg.Provider.Model),
			groq.WithLogger(logger),
			groq.WithRetryConfig(retry),
			groq.WithMaxTokens(cfg.Battle.MaxTokens),
		}
		if d, err := time.ParseDuration(cfg.HTTP.Timeout); err == nil {
			opts = append(opts, groq.WithTimeout(d))
		}

		client := groq.NewClient(cfg.Provider.APIKey, opts...)
		return client, client
	}

	client := static.NewClient()
	return client, client
}

// Compile-time interface compliance checks
var _ battle.Completer = (*groq.Client)(nil)
var _ leak.Judge = (*groq.Client)(nil)
var _ battle.Completer = (*static.Client)(nil)
var _ leak.Judge = (*static.Client)(nil)
var _ cli.ReportWriter = (*markdown.Writer)(nil)
var _ store.Store = (*sqlite.Store)(nil)
var _ store.Store = (*memorystore.Store)(nil)
