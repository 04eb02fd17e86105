package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/backend"
	"github.com/llamabridge/llamabridge/internal/config"
	"github.com/llamabridge/llamabridge/internal/exporters"
	"github.com/llamabridge/llamabridge/internal/fixes"
	"github.com/llamabridge/llamabridge/internal/metrics"
	"github.com/llamabridge/llamabridge/internal/middleware"
	"github.com/llamabridge/llamabridge/internal/observability"
	"github.com/llamabridge/llamabridge/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the proxy in the foreground",
	Long:  `Start llamabridge's HTTP server in the foreground. There is no daemon mode: run it under your own process supervisor (systemd, a container runtime, tmux).`,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := observability.MustNewLogger(verbose)
	defer func() { _ = logger.Sync() }()

	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration file at %s", cfgMgr.GetPath())
	}
	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	registry := fixes.NewDefaultRegistry()
	for name, mod := range cfg.Fixes.Modules {
		registry.SetEnabled(name, mod.Enabled)
	}
	if f, ok := registry.GetFix("toolcall_bad_filepath"); ok {
		if bf, ok := f.(*fixes.BadFilepathFix); ok {
			if v, ok := cfg.Fixes.Modules["toolcall_bad_filepath"].Options["remove_duplicate"].(bool); ok {
				bf.SetRemoveDuplicate(v)
			}
		}
	}

	exporterMgr := exporters.NewManager(logger, exporters.DefaultQueueCapacity)
	defer exporterMgr.Shutdown()

	if cfg.Exporters.Log.Enabled {
		exporterMgr.Add(exporters.NewLogExporter(logger, metrics.Format(cfg.Stats.Format)))
	}
	if cfg.Exporters.Redis.Enabled {
		redisExp := exporters.NewRedisExporter(exporters.RedisConfig{
			Addr:     cfg.Exporters.Redis.Addr,
			Password: cfg.Exporters.Redis.Password,
			DB:       cfg.Exporters.Redis.DB,
			Stream:   cfg.Exporters.Redis.Stream,
		})
		defer redisExp.Close()
		exporterMgr.Add(redisExp)
	}

	orch := orchestrator.New(cfgMgr, client, registry, exporterMgr, logger)

	mwSet := middleware.NewMiddlewareSet(logger, config.DefaultMaxBodyBytes)
	handler := mwSet.DefaultChain().Handler(orch)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	color.Green("%s v%s listening on %s -> %s", AppName, Version, addr, cfg.Backend.URL)
	logger.Info("starting server", zap.String("addr", addr), zap.String("backend", cfg.Backend.URL))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func newBackendClient(cfg *config.Config) (*backend.Client, error) {
	client, err := backend.NewClient(cfg.Backend.URL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second, backend.TLSOptions{
		AcceptInvalidCerts: cfg.Backend.TLS.AcceptInvalidCerts,
		CACertPath:         cfg.Backend.TLS.CACertPath,
		ClientCertPath:     cfg.Backend.TLS.ClientCertPath,
		ClientKeyPath:      cfg.Backend.TLS.ClientKeyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("build backend client: %w", err)
	}
	return client, nil
}
