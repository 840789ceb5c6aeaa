package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	"github.com/pixelforge/studio/backend/internal/config"
	"github.com/pixelforge/studio/backend/internal/logger"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	"github.com/pixelforge/studio/backend/internal/service/ai"
	"github.com/pixelforge/studio/backend/internal/service/chat"
)

var (
	rulesPath string
	offline   bool
	verbose   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "replytester",
	Short: "Exercise the chat widget reply resolver from a terminal",
	Long: `replytester drives the same resolver the HTTP API uses.

Examples:
  replytester classify "what does a website cost?"   # keyword fallback only
  replytester ask "what do you do?"                   # remote model, fallback on failure
  replytester widget                                  # interactive chat widget
  replytester ask --offline "portfolio"               # never touch the network`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(widgetCmd)

	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Fallback rule table (YAML); defaults to CHAT_FALLBACK_RULES or the embedded table")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Skip the remote model and answer from the fallback table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log resolver diagnostics")
}

// loadEnvironment reads .env and the process environment the way cmd/api does.
func loadEnvironment(logOut io.Writer) (*config.Config, io.Closer, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logCfg := cfg.Log
	logCfg.Format = "console"
	logCfg.Level = "warn"
	if verbose {
		logCfg.Level = "debug"
	}
	closer := logger.InitWriter(logCfg, logOut)

	if rulesPath != "" {
		cfg.Chat.RulesPath = rulesPath
	}
	return cfg, closer, nil
}

func loadRules(cfg *config.Config) (*fallback.Table, error) {
	return fallback.Load(cfg.Chat.RulesPath)
}

// newResolver wires the remote model (unless --offline) in front of the fallback table.
func newResolver(ctx context.Context, cfg *config.Config) (*chat.Resolver, error) {
	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}

	var remote chat.Remote
	if !offline {
		svc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("initialize AI service: %w", err)
		}
		remote = svc
	}

	return chat.NewResolver(remote, rules, ai.NewPersonaPromptManager()), nil
}

// newChatService builds a small session registry for one terminal user.
func newChatService(ctx context.Context, cfg *config.Config) (*chat.Service, error) {
	resolver, err := newResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return chat.NewService(persona.NewMemoryStore(persona.Seed()), resolver, 4, cfg.Chat.DefaultPersona)
}
