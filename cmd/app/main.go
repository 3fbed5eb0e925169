package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/osse101/adlink/internal/backend"
	"github.com/osse101/adlink/internal/bootstrap"
	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/relay"
	"github.com/osse101/adlink/internal/scheduler"
	"github.com/osse101/adlink/internal/server"
	"github.com/osse101/adlink/internal/sse"
	"github.com/osse101/adlink/internal/worker"
)

// @title adlink API
// @version 1.0
// @description Links CRM tenants to ad platform accounts through an OAuth popup
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile, err := bootstrap.SetupLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewReal()

	repos, err := bootstrap.InitializeRepositories(ctx, cfg, clk)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	registry, err := bootstrap.LoadProviders(cfg)
	if err != nil {
		repos.Close()
		slog.Error("Failed to load providers", "error", err)
		os.Exit(1)
	}

	eventBus := bootstrap.InitializeEventSystem()

	hub := sse.NewHub()
	hub.Start()
	subscriber := bootstrap.RegisterEventHandlers(bootstrap.EventHandlerDependencies{
		EventBus: eventBus,
		Hub:      hub,
	})

	pool := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueueSize)
	pool.Start()

	codec := linking.NewStateCodec([]byte(cfg.StateSigningKey), cfg.StateTTL, clk)
	store := linking.NewLRUStore(cfg.StoreSize, cfg.LinkTimeout)
	backendClient := backend.NewClient(backend.Config{
		BaseURL:    cfg.BackendURL,
		APIKey:     cfg.BackendAPIKey,
		Timeout:    cfg.BackendTimeout,
		MaxRetries: cfg.BackendMaxRetries,
	})

	linkingService := linking.NewService(
		linking.ServiceConfig{
			Timing: linking.Timing{
				Timeout:           cfg.LinkTimeout,
				PollInterval:      cfg.PollInterval,
				PopupPollInterval: cfg.PopupPollInterval,
				PopupClosedGrace:  cfg.PopupClosedGrace,
			},
			DialogRetention: cfg.DialogRetention,
		},
		linking.ServiceDeps{
			Registry: registry,
			Repo:     repos.Integrations,
			Launcher: linking.NewLauncher(codec, linking.RemoteOpener{}),
			Invoker:  linking.NewInvoker(backendClient, clk),
			Store:    store,
			Bus:      eventBus,
			Origins:  linking.NewOriginAllowList(cfg.AllowedOrigins()...),
			Clock:    clk,
			Dispatch: pool.Go,
		},
	)

	sched := scheduler.New(pool)
	sched.Schedule(cfg.ReaperInterval, linking.NewReaperJob(linkingService))
	slog.Info(bootstrap.LogMsgBackgroundJobsStarted,
		"workers", cfg.WorkerCount,
		"reaper_interval", cfg.ReaperInterval)

	relayHandler := relay.NewHandler(relay.Config{
		Codec:     codec,
		Registry:  registry,
		Store:     store,
		Bus:       eventBus,
		Clock:     clk,
		Origin:    cfg.RelayOrigin,
		AppOrigin: cfg.AppOrigin,
	})

	srv := server.NewServer(
		server.Config{
			Port:           cfg.Port,
			APIKey:         cfg.APIKey,
			TrustedProxies: cfg.TrustedProxies,
		},
		server.Deps{
			DBPool:  repos.DBPool,
			Linking: linkingService,
			Relay:   relayHandler,
			Hub:     hub,
		},
	)

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = bootstrap.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	bootstrap.GracefulShutdown(shutdownCtx, bootstrap.ShutdownComponents{
		Server:        srv,
		Linking:       linkingService,
		Scheduler:     sched,
		WorkerPool:    pool,
		SSESubscriber: subscriber,
		SSEHub:        hub,
		Repositories:  repos,
	})
}
