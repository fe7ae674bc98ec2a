package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"nicepg/internal/config"
	"nicepg/internal/database"
	"nicepg/internal/handlers"
	"nicepg/internal/logging"
	"nicepg/internal/metrics"
	"nicepg/internal/migration"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path of the .env file holding the API key")
	flag.Parse()

	// Load .env file if it exists (must be done before checking GIN_MODE)
	envLoaded := godotenv.Load(*envFile) == nil

	// Set Gin mode based on environment (after loading .env)
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *envFile, envLoaded); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envFile string, envLoaded bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	if envLoaded {
		logger.Info("Loaded .env file", "path", envFile)
	}

	if cfg.MigrationsDir == "" {
		return errors.New("no migrations directory configured (set MIGRATIONS_DIR or migrations_dir)")
	}
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	release := gin.Mode() == gin.ReleaseMode
	keys := config.NewAPIKeyManager(envFile, release, logger.With("component", "auth"))
	if cfg.Server.APIKey, _, err = keys.EnsureAPIKey(cfg.Server.APIKey); err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database, database.WithLogger(logger.With("component", "database")))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	collector := metrics.NewCollector()
	engine := migration.NewEngine(db, os.DirFS(dir),
		migration.WithLogger(logger),
		migration.WithMetrics(collector))

	// Publish the starting version.
	if _, err := engine.Status(ctx); err != nil {
		logger.Warn("Failed to read migration status", "error", err)
	}

	handler := handlers.NewHandler(engine, db, logger.With("component", "api"))
	router := handlers.NewRouter(cfg.Server, handler, collector, logger.With("component", "http"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "addr", srv.Addr, "migrations_dir", dir, "driver", db.Dialect())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
