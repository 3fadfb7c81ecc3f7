package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ezyang/ghsim/internal/api"
	"github.com/ezyang/ghsim/internal/authstate"
	"github.com/ezyang/ghsim/internal/browser"
	"github.com/ezyang/ghsim/internal/config"
	"github.com/ezyang/ghsim/internal/detect"
	"github.com/ezyang/ghsim/internal/flow"
	"github.com/ezyang/ghsim/internal/login"
	"github.com/ezyang/ghsim/internal/ratelimit"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	cfg := config.FromEnv()
	log.Info().Str("addr", cfg.Addr).Msg("starting ghsim login service")

	if err := os.MkdirAll(filepath.Dir(cfg.AuthDBPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create auth state directory")
	}
	store, err := authstate.Open(cfg.AuthDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open auth state store")
	}
	defer store.Close()

	launcher, err := browser.NewLauncher(browser.Config{
		Headless:      cfg.Headless,
		LoginURL:      cfg.LoginURL,
		ScreenshotDir: cfg.ScreenshotDir,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start browser runtime")
	}
	defer launcher.Close()

	classifier := detect.NewClassifier(log)
	ops := flow.NewOperations(classifier, cfg.BaseURL, log)

	mgr := login.NewManager(
		login.FactoryFunc(func(ctx context.Context) (login.Resource, error) {
			return launcher.NewResource(ctx)
		}),
		store,
		ops,
		login.Config{
			SessionTTL:    cfg.SessionTTL,
			MaxPerAccount: cfg.MaxSessionsPerAccount,
		},
		log,
	)

	limiter := ratelimit.NewLimiter(cfg.LoginRatePerHour, cfg.LoginRateBurst)
	handler := api.NewHandler(mgr, log)
	router := handler.SetupRoutes(limiter, cfg.LoginRatePerHour)

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// The mobile-wait endpoint holds its response for up to the caller's
		// timeout, so the write side cannot have a short deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Release every live browser before the runtime stops.
	mgr.Shutdown()

	log.Info().Msg("server stopped")
}
