package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhttp "github.com/AlibekovAA/lingo-cms/backend/internal/auth/http"
	authservice "github.com/AlibekovAA/lingo-cms/backend/internal/auth/service"
	collectionhttp "github.com/AlibekovAA/lingo-cms/backend/internal/collection/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/bootstrap"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/config"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	srv "github.com/AlibekovAA/lingo-cms/backend/internal/common/server"
	"github.com/AlibekovAA/lingo-cms/backend/internal/email"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewWithWriter(os.Stderr, "cms", "info").Fatalf("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.LogDir, "cms", cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString(fmt.Sprintf("failed to initialize logger: %v\n", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize cms: %v", err)
	}
	defer app.Close()

	if err := app.Init(ctx); err != nil {
		log.Criticalf("init failed: %v", err)
		app.Close()
		os.Exit(1)
	}

	mailer, err := email.New(cfg.SMTP, log)
	if err != nil {
		log.Criticalf("failed to initialize email transport: %v", err)
		app.Close()
		os.Exit(1)
	}

	tokens := authservice.NewTokenIssuer(cfg.Secret, app.IDGenerator, app.Clock)
	authService := authservice.NewAuthService(
		app.Collections,
		app.Hasher,
		tokens,
		mailer,
		cfg.TokenTTL,
		cfg.ServerURL,
		log,
	)

	loginLimiter := commonhttp.NewRateLimiter("login", constants.RateLimitLoginRequestsPerSecond, constants.RateLimitLoginBurst)
	loginLimiter.StartCleanup(ctx)

	var autoLogin *authhttp.AutoLogin
	if cfg.IsProduction() {
		creds := app.SeedCredentials()
		autoLogin = &authhttp.AutoLogin{Email: creds.Email, Password: creds.Password, PrefillOnly: true}
	}

	authHandler := authhttp.NewHandler(authService, cfg.Secret, autoLogin, loginLimiter, cfg.RequestTimeout, log)
	collectionHandler := collectionhttp.NewHandler(app.Collections, app.SEO, app.Files.Dir(), cfg.Secret, cfg.RequestTimeout, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(app.Repo, log))
	mux.Handle("GET /metrics", promhttp.Handler())
	authHandler.Register(mux, app.Registry.AuthCollections())
	collectionHandler.Register(mux)

	baseHandler := commonhttp.BuildBaseHandler(log, mux, collectionHandler.UploadPaths()...)

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), baseHandler, log)

	shutdownHooks := []srv.ShutdownHook{
		func(context.Context) error {
			log.Infof("cms service: stopping background workers")
			cancel()
			return nil
		},
	}

	if err := srv.Run(server, log, "cms", shutdownHooks...); err != nil {
		app.Close()
		os.Exit(1)
	}
}
