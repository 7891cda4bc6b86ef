package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/api"
	"github.com/soaringjerry/FormPulse/internal/config"
	"github.com/soaringjerry/FormPulse/internal/logging"
	"github.com/soaringjerry/FormPulse/internal/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "formpulse",
	Short: "Form analytics and response export server",
	Long: `FormPulse serves form submission, analytics and export endpoints.
Running it without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML); FORMPULSE_* env vars override it")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := SeedIfEmpty(ctx, store, cfg.Database.SeedSnapshot, log); err != nil {
		return err
	}

	build := utils.BuildInfoFromEnv()
	opts := api.Options{
		Log:           log,
		JWTSecret:     cfg.JWT.Secret,
		JWTIssuer:     cfg.JWT.Issuer,
		Origins:       cfg.Server.Origins(),
		ArchiveExpiry: cfg.MinIO.URLExpiry,
		Commit:        build.Commit,
		BuildTime:     build.BuildTime,
	}
	cache, closeCache, err := openReportCache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()
	if cache != nil {
		opts.Cache = cache
	}
	storage, err := openObjectStorage(ctx, cfg.MinIO, log)
	if err != nil {
		return err
	}
	if storage != nil {
		opts.Storage = storage
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(store, opts).Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("FormPulse server listening", zap.String("addr", cfg.Server.Addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
