package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/api"
	"github.com/jovywahba/jovnumbergames/internal/config"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/jovywahba/jovnumbergames/internal/repository/memory"
	"github.com/jovywahba/jovnumbergames/internal/repository/postgres"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/jovywahba/jovnumbergames/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Initialize the room store
	var (
		repos   *repository.Repositories
		closeFn func()
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore(clock)
		repos = memory.NewRepositories(store)
		closeFn = store.Close
		log.Warn().Msg("Using in-memory store; state is lost on restart")
	default:
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := postgres.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store := postgres.NewStore(db)
		repos = postgres.NewRepositories(db, store)
		closeFn = store.Close

		listener := postgres.NewListener(cfg.DatabaseURL, store)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error().Err(err).Msg("room listener stopped")
			}
		}()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	scheduler.Start()

	// Initialize services
	services := service.NewServices(repos, cfg, scheduler, clock)

	// Initialize WebSocket hub
	hub := websocket.NewHub(session.Deps{
		Store:     repos.Store,
		Rooms:     services.Rooms,
		Profiles:  services.Profiles,
		Finalizer: services.Finalizer,
		Watchdog:  services.Watchdog,
		Clock:     clock,
	}, session.DefaultOptions())
	go hub.Run()

	// Initialize router
	router := api.NewRouter(services, hub, clock, cfg)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Stop()
	if err := scheduler.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	closeFn()

	log.Info().Msg("Server stopped")
}
