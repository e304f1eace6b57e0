// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/courtengine/internal/api/admin"
	"github.com/codr1/courtengine/internal/api/bookings"
	"github.com/codr1/courtengine/internal/config"
	"github.com/codr1/courtengine/internal/engine"
	"github.com/codr1/courtengine/internal/rules"
	"github.com/codr1/courtengine/internal/scheduler"
	"github.com/codr1/courtengine/internal/store"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	st, err := store.New(cfg.Database.Filename)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer st.Close()

	registry := rules.NewRegistry(st)

	failOpen := make([]rules.Code, 0, len(cfg.Engine.FailOpenRules))
	for _, code := range cfg.Engine.FailOpenRules {
		failOpen = append(failOpen, rules.Code(code))
	}
	eng, err := engine.New(st, st, st.History(cfg.Engine.ActionLookback), registry,
		engine.WithFailOpen(failOpen...))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build booking engine")
	}

	bookings.InitHandlers(eng, st, registry)
	admin.InitHandlers(st, registry)

	if cfg.Features.EnableScheduler {
		if err := scheduler.Init(); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize scheduler")
		}
		if err := scheduler.RegisterMaintenanceJobs(st, registry); err != nil {
			log.Fatal().Err(err).Msg("Failed to register maintenance jobs")
		}
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	server := newServer(cfg)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if cfg.Features.EnableScheduler {
			if err := scheduler.Stop(); err != nil {
				log.Error().Err(err).Msg("Scheduler shutdown error")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		bookings.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
