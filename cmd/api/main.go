package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	"github.com/pixelforge/studio/backend/internal/config"
	"github.com/pixelforge/studio/backend/internal/handler"
	"github.com/pixelforge/studio/backend/internal/logger"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	"github.com/pixelforge/studio/backend/internal/service/ai"
	"github.com/pixelforge/studio/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	closer := logger.Init(cfg.Log)
	defer closer.Close()

	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	rules, err := fallback.Load(cfg.Chat.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Chat.RulesPath).Msg("failed to load fallback rules")
	}
	log.Info().Int("rules", len(rules.Rules)).Msg("fallback rules loaded")

	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize AI service, continuing with keyword fallback only")
		aiService = nil
	} else if aiService.Enabled() {
		log.Info().Str("provider", aiService.Provider()).Msg("AI service initialized")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	resolver := chat.NewResolver(aiService, rules, ai.NewPersonaPromptManager())

	chatService, err := chat.NewService(personaStore, resolver, cfg.Chat.MaxSessions, cfg.Chat.DefaultPersona)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat service")
	}

	router := handler.NewRouter(personaStore, chatService, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("PixelForge chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
