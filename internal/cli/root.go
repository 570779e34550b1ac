// Package cli implements the convo-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/config"
	"github.com/rcliao/convo-memory/internal/extract"
	"github.com/rcliao/convo-memory/internal/llm"
	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/recall"
	"github.com/rcliao/convo-memory/internal/store"
	"github.com/rcliao/convo-memory/internal/turn"
	"github.com/rcliao/convo-memory/internal/window"
)

var (
	storePath   string
	backendFlag string
	configPath  string
	logLevel    string
	metricsOut  string

	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "convo-memory",
	Short: "Conversational memory for chat agents",
	Long: "Extracts memorable facts from dialogue, stores them with dedup, ranks them for " +
		"new turns and keeps the context window bounded with a rolling summary. JSON in, JSON out.",
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	SilenceUsage:       true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&storePath, "store", "s", "", "Store path (default: $CONVO_MEMORY_STORE or ~/.convo-memory/memory.json)")
	RootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Store backend: file or sqlite")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $CONVO_MEMORY_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile on exit")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendFlag != "" {
		c.Store.Backend = backendFlag
	}
	if storePath != "" {
		c.Store.Path = storePath
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c

	l, err := newLogger(c.LogLevel)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	_ = logger.Sync()
	if metricsOut == "" {
		return nil
	}
	return prometheus.WriteToTextfile(metricsOut, metrics.Registry)
}

// newLogger writes JSON logs to stderr so stdout stays machine-readable.
func newLogger(level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func openStore() (store.Store, error) {
	return store.Open(cfg.Store.Backend, cfg.Store.Path, logger)
}

func newCompleter() llm.Completer {
	c, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})
	if err != nil {
		// extraction and summarization degrade to no-ops without a completer
		logger.Warn("llm disabled", zap.Error(err))
		return nil
	}
	return c
}

func newWindowManager(c llm.Completer) *window.Manager {
	return window.NewManager(window.Policy{
		RecentTurns:     cfg.Window.RecentTurns,
		TriggerTurns:    cfg.Window.TriggerTurns,
		MaxSummaryChars: cfg.Window.MaxSummaryChars,
	}, c, cfg.LLM.Timeout, logger)
}

func newExtractor(c llm.Completer) *extract.Extractor {
	return extract.New(c, extract.Options{
		MaxTurns:      cfg.Extract.MaxTurns,
		MaxCandidates: cfg.Extract.MaxCandidates,
		Timeout:       cfg.LLM.Timeout,
	}, logger)
}

func newPipeline(s store.Store) *turn.Pipeline {
	c := newCompleter()
	return turn.NewPipeline(s, recall.NewEngine(s, logger), newWindowManager(c), newExtractor(c), turn.Options{
		K: cfg.Search.DefaultK,
		CoreFacts: turn.CoreFactsOptions{
			MinImportance: cfg.CoreFacts.MinImportance,
			MaxChars:      cfg.CoreFacts.MaxChars,
			PerItemChars:  cfg.CoreFacts.PerItemChars,
		},
	}, logger)
}

// readStdin returns piped input, or nil when stdin is a terminal.
func readStdin() []byte {
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	return data
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	_ = logger.Sync()
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
