package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suar-net/suar-playground/internal/broadcast"
	"github.com/suar-net/suar-playground/internal/capture"
	"github.com/suar-net/suar-playground/internal/config"
	"github.com/suar-net/suar-playground/internal/database"
	"github.com/suar-net/suar-playground/internal/handler"
	"github.com/suar-net/suar-playground/internal/logger"
	"github.com/suar-net/suar-playground/internal/mockrouter"
	"github.com/suar-net/suar-playground/internal/registry"
	"github.com/suar-net/suar-playground/internal/repository"
	"github.com/suar-net/suar-playground/internal/service"
	"github.com/suar-net/suar-playground/internal/template"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const archiveQueueSize = 512

var (
	portFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:           "suar-playground",
	Short:         "HTTP mock playground: define endpoints, call them, watch the traffic live",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&portFlag, "port", "", "Port to listen on (overrides PORT)")
		cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides LOG_LEVEL)")
	}
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env when present and then the process environment.
func loadConfig() (*config.Config, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", envErr)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := handler.Dependencies{
		MockPrefix:     cfg.Server.MockPrefix,
		AllowedOrigins: cfg.Server.AllowedOrigins(),
		MaxBodyBytes:   cfg.Limits.MaxBodyBytes,
	}
	captureOpts := []capture.Option{
		capture.WithMaxBody(cfg.Limits.MaxCapturedBody),
		capture.WithLogger(log),
	}

	var archive *service.ArchiveService
	if cfg.DB.Enabled() {
		db, err := database.ConnectDB(cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("connected to request archive database", zap.String("host", cfg.DB.Host))

		archive = service.NewArchiveService(repository.NewRepository(db).Request(), archiveQueueSize, log)
		captureOpts = append(captureOpts, capture.WithArchiver(archive))
		deps.History = archive
		deps.DB = db
	} else {
		log.Info("request archive disabled, captured traffic is kept in memory only")
	}

	reg := registry.New(registry.WithMaxSize(cfg.Limits.MaxEndpoints))
	engine := template.New(template.NewFakerCatalogue(), log)
	hub := broadcast.NewHub(log)
	router := mockrouter.New(reg, engine, log)
	capturer := capture.New(capture.NewLog(cfg.Limits.MaxRequestLog), hub, captureOpts...)

	endpoints := service.NewEndpointService(reg, router, hub, log)
	endpoints.Sync()

	deps.Endpoints = endpoints
	deps.Templates = engine
	deps.Methods = engine.Catalogue()
	deps.Requests = capturer.Log()
	deps.Proxy = service.NewHTTPProxyService(cfg.Proxy, log)
	deps.MockSurface = capturer.Middleware(router)
	deps.Live = broadcast.NewWSHandler(hub, cfg.Server.AllowedOrigins(), log)
	deps.Routes = router
	deps.Observers = hub
	if cfg.Auth.Enabled() {
		deps.Auth = service.NewAuthService(cfg.Auth)
		log.Info("management API requires an admin token")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(deps, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("mock_prefix", cfg.Server.MockPrefix),
			zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("cannot run server on port %s: %w", cfg.Server.Port, err)
		}
		return nil
	})
	if archive != nil {
		g.Go(func() error {
			return archive.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down the server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("server successfully shut down")
		return nil
	})

	return g.Wait()
}
