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

	"github.com/virtualhq/agenthq/backend/internal/config"
	"github.com/virtualhq/agenthq/backend/internal/events"
	"github.com/virtualhq/agenthq/backend/internal/handler"
	"github.com/virtualhq/agenthq/backend/internal/metrics"
	identitymodel "github.com/virtualhq/agenthq/backend/internal/model/identity"
	personamodel "github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/internal/realtime"
	conversationservice "github.com/virtualhq/agenthq/backend/internal/service/conversation"
	identityservice "github.com/virtualhq/agenthq/backend/internal/service/identity"
	"github.com/virtualhq/agenthq/backend/internal/service/strategy"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Options{})
		l := logger.Named("main")
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	personas, err := personamodel.Load(cfg.Chat.PersonaFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load personas")
	}
	personaStore := personamodel.NewMemoryStore(personas)

	ids := identityservice.NewService(identitymodel.SeedRoles(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	registry := strategy.NewRegistry(cfg.Chat.DispatchTimeout)
	scripted := strategy.NewScriptedHandler()
	registry.Register(personamodel.StrategyScripted, scripted)
	// Personas keyed "llm" degrade to scripted replies until a model backend
	// is configured.
	registry.Register(personamodel.StrategyLLM, scripted)
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("model backend unavailable, llm personas fall back to scripted replies")
		} else {
			llm, err := strategy.NewLLMHandler(ctx, chatModel)
			if err != nil {
				log.Warn().Err(err).Msg("chat chain compilation failed, llm personas fall back to scripted replies")
			} else {
				registry.Register(personamodel.StrategyLLM, llm)
				log.Info().Msg("llm strategy backend initialized")
			}
		}
	} else {
		log.Info().Msg("ark credentials not configured, llm personas use scripted replies")
	}

	log.Info().Strs("strategies", registry.Keys()).Msg("strategy registry resolved")

	bus := events.NewBus()
	metrics.Observe(bus)

	hub := realtime.NewHub()
	engine := conversationservice.NewService(ids, personaStore, registry, hub, bus)

	go sweepSessions(ctx, ids, cfg.Auth.SweepPeriod)

	router := handler.NewRouter(ids, engine, personaStore, hub)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("agenthq backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// sweepSessions periodically drops expired sessions; Authenticate also sweeps
// opportunistically, this keeps an idle instance tidy.
func sweepSessions(ctx context.Context, ids *identityservice.Service, period time.Duration) {
	if period <= 0 {
		period = 10 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := ids.SweepExpiredSessions(); swept > 0 {
				l := logger.Named("main")
				l.Debug().Int("swept", swept).Msg("expired sessions removed")
			}
		}
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
