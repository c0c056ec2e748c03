package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vovarama1992/notebot/internal/ai"
	"github.com/Vovarama1992/notebot/internal/assistant"
	"github.com/Vovarama1992/notebot/internal/config"
	"github.com/Vovarama1992/notebot/internal/logging"
	"github.com/Vovarama1992/notebot/internal/notes"
)

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "notebot",
	Short:         "Chat assistant that keeps notes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, chatCmd)
}

// app is everything both commands share.
type app struct {
	store  *notes.Store
	router *assistant.Router
}

func newApp(ctx context.Context) (*app, error) {
	store, err := notes.Open(ctx, notes.Config{
		Driver: notes.Dialect(cfg.DatabaseDriver),
		DSN:    cfg.DatabaseURL,
	}, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	aiLog := logger.Named("ai")
	llm, err := ai.NewOpenAIClient(ai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, aiLog)
	if err != nil {
		store.Close()
		return nil, err
	}

	router := assistant.NewRouter(store, ai.NewClassifier(llm), llm, assistant.Options{
		SystemPrompt:      cfg.SystemPrompt,
		ClassifierTimeout: cfg.ClassifierTimeout,
		GeneratorTimeout:  cfg.GeneratorTimeout,
		RecentNotesLimit:  cfg.RecentNotesLimit,
	}, logger.Named("router"))

	return &app{store: store, router: router}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
