package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kubilitics/kubilitics-topology/internal/api/websocket"
	"github.com/kubilitics/kubilitics-topology/internal/config"
	"github.com/kubilitics/kubilitics-topology/internal/k8s"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/tracing"
	"github.com/kubilitics/kubilitics-topology/internal/repository"
	"github.com/kubilitics/kubilitics-topology/internal/service"
	"github.com/kubilitics/kubilitics-topology/internal/source"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./topology.yaml, $HOME/.kubilitics, /etc/kubilitics)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "kubilitics-topology: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, level, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Kubilitics topology starting",
		zap.Int("port", cfg.Port),
		zap.String("default_layout", cfg.DefaultLayout),
		zap.String("database_path", cfg.DatabasePath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(tracing.Options{
		ServiceName:  "kubilitics-topology",
		Endpoint:     cfg.TracingEndpoint,
		Protocol:     cfg.TracingProtocol,
		SamplingRate: cfg.TracingSamplingRate,
	})
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	var repo repository.TopologyRepository
	if cfg.DatabasePath != "" {
		sqlRepo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer sqlRepo.Close()
		repo = sqlRepo
	}

	registry, err := buildRegistry(cfg, repo, log)
	if err != nil {
		return err
	}
	log.Info("Layouts registered", zap.Strings("layouts", registry.Names()))

	cache := topologycache.New(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second)
	views := service.NewViewService(registry, cache, repo, log, service.Options{
		DefaultLayout: cfg.DefaultLayout,
		MaxViews:      cfg.MaxViews,
	})

	g, gctx := errgroup.WithContext(ctx)

	hub := websocket.NewHub(gctx, log)
	views.SetPublisher(hub)
	views.SetWatchers(hub)
	g.Go(func() error {
		hub.Run()
		return nil
	})

	janitor := service.NewJanitor(views, repo, time.Duration(cfg.ViewIdleTTLSec)*time.Second, log)
	g.Go(func() error { return janitor.Run(gctx) })

	if v.ConfigFileUsed() != "" {
		config.Watch(v, func(next *config.Config) {
			if err := logger.SetLevel(level, next.LogLevel); err != nil {
				log.Warn("Ignoring log level change", zap.Error(err))
				return
			}
			log.Info("Config reloaded", zap.String("log_level", next.LogLevel))
		}, func(err error) {
			log.Warn("Ignoring invalid config change", zap.Error(err))
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(gctx, cfg, views, hub, repo, log),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Info("Server listening",
			zap.String("api", fmt.Sprintf("http://localhost:%d/api/v1", cfg.Port)),
			zap.String("websocket", fmt.Sprintf("ws://localhost:%d/ws/views/{id}", cfg.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
		defer cancel()
		hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Server forced to shutdown", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("Tracing shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

// buildRegistry registers the embedded demo layouts, any fixture files in
// fixtures_dir, and the live cluster layout when enabled.
func buildRegistry(cfg *config.Config, repo repository.TopologyRepository, log *zap.Logger) (*source.Registry, error) {
	builtin, err := source.Builtin()
	if err != nil {
		return nil, fmt.Errorf("failed to load builtin layouts: %w", err)
	}
	registry := source.NewRegistry(builtin...)

	if cfg.FixturesDir != "" {
		extra, err := source.LoadDir(cfg.FixturesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixtures from %s: %w", cfg.FixturesDir, err)
		}
		for _, p := range extra {
			registry.Register(p)
		}
	}

	if cfg.KubernetesEnabled {
		client, err := k8s.NewClient(cfg.KubeconfigPath, cfg.KubeContext)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		client.SetTimeout(time.Duration(cfg.K8sTimeoutSec) * time.Second)
		retry := k8s.DefaultRetryPolicy
		retry.Attempts = cfg.K8sRetryAttempts
		client.SetRetryPolicy(retry)
		if version, err := client.ServerVersion(); err != nil {
			log.Warn("Kubernetes API unreachable at startup", zap.Error(err))
		} else {
			log.Info("Connected to Kubernetes", zap.String("version", version), zap.String("context", client.Context))
		}

		var provider source.Provider = source.NewKubernetesProvider(client, cfg.K8sMaxNodes)
		if repo != nil {
			provider = source.WithSnapshotFallback(provider, repo, log)
		}
		registry.Register(provider)
	}
	return registry, nil
}
