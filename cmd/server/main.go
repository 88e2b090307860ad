// Command server starts the GrowFrika REST API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/AlvinLimo/GrowFrika/internal/api"
	"github.com/AlvinLimo/GrowFrika/internal/config"
	"github.com/AlvinLimo/GrowFrika/internal/core"
	"github.com/AlvinLimo/GrowFrika/internal/mailer"
	"github.com/AlvinLimo/GrowFrika/internal/migrate"
	"github.com/AlvinLimo/GrowFrika/internal/ml"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("failed to create upload dir", zap.Error(err))
	}

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	// The model runner serves both the classifier and the chat responder.
	runner := ml.NewRunner(cfg.PythonBin, cfg.MLDir, cfg.UploadDir, cfg.MLTimeout, logger)

	var mail core.Mailer
	if cfg.EmailAPIURL != "" {
		mail = mailer.New(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, logger)
	} else {
		logger.Warn("EMAIL_API_URL not set, verification emails disabled")
		mail = mailer.Noop{Logger: logger}
	}

	userService := core.NewUserService(dbStore, mail, cfg.FrontendURL, logger)
	convoService := core.NewConversationService(dbStore, runner, runner, logger)

	var googleOAuth *oauth2.Config
	if cfg.GoogleClientID != "" {
		googleOAuth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google login disabled")
	}

	apiHandler := api.NewAPIHandler(userService, convoService, logger,
		cfg.UploadDir, cfg.MaxUploadSize, cfg.FrontendURL, googleOAuth)
	router := api.NewRouter(apiHandler, logger, cfg.UploadDir)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // model invocations can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting gracefully")
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "DEBUG" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
