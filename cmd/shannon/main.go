// Command shannon is Shannon's composition root: it loads configuration,
// wires every internal package into a running agent core, and exposes
// serve/migrate/doctor subcommands, following the teacher's cmd/nexus
// cobra layout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shannon-ai/shannon/internal/auth"
	"github.com/shannon-ai/shannon/internal/bus"
	"github.com/shannon-ai/shannon/internal/command"
	"github.com/shannon-ai/shannon/internal/config"
	"github.com/shannon-ai/shannon/internal/contextstore"
	"github.com/shannon-ai/shannon/internal/llm"
	"github.com/shannon-ai/shannon/internal/logging"
	"github.com/shannon-ai/shannon/internal/memory"
	"github.com/shannon-ai/shannon/internal/pause"
	"github.com/shannon-ai/shannon/internal/pipeline"
	"github.com/shannon-ai/shannon/internal/planner"
	"github.com/shannon-ai/shannon/internal/scheduler"
	"github.com/shannon-ai/shannon/internal/store/postgres"
	"github.com/shannon-ai/shannon/internal/tools"
	"github.com/shannon-ai/shannon/internal/tools/browser"
	"github.com/shannon-ai/shannon/internal/tools/delegate"
	"github.com/shannon-ai/shannon/internal/tools/shell"
	"github.com/shannon-ai/shannon/internal/transports/discord"
	"github.com/shannon-ai/shannon/internal/transports/slack"
	"github.com/shannon-ai/shannon/internal/transports/telegram"
	"github.com/shannon-ai/shannon/internal/webhook"
)

var (
	version    = "dev"
	commit     = "none"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:     "shannon",
		Short:   "Shannon is an LLM-driven conversational agent core.",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "shannon.yaml", "path to the config file")

	root.AddCommand(serveCmd(), migrateCmd(), doctorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent core: pipeline, scheduler, and webhook server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or verify the on-disk SQLite schemas.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
			if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
				return fmt.Errorf("migrate: create data dir: %w", err)
			}
			ctxStore, err := contextstore.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "context.db"), logger)
			if err != nil {
				return err
			}
			defer ctxStore.Close()
			memStore, err := memory.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "memory.db"))
			if err != nil {
				return err
			}
			defer memStore.Close()
			planStore, err := planner.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "plans.db"))
			if err != nil {
				return err
			}
			defer planStore.Close()
			logger.Info("migrate: schemas verified", "data_dir", cfg.Storage.DataDir)
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and report readiness.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("doctor: config invalid: %w", err)
			}
			fmt.Printf("config OK: provider=%s model=%s storage=%s webhooks_enabled=%v\n",
				cfg.LLM.Provider, cfg.LLM.Model, cfg.Storage.Driver, cfg.Webhooks.Enabled)
			if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "local" {
				fmt.Println("warning: llm.api_key is empty")
			}
			return nil
		},
	}
}

// transport is the subset of the Transport contract (spec §6) the
// composition root needs to start and stop a chat transport.
type transport interface {
	Start() error
	Stop() error
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("serve: create data dir: %w", err)
	}

	b := bus.New(logger)

	var ctxStore contextstore.Store
	if cfg.Storage.Driver == "postgres" {
		logger.Warn("storage.driver=postgres selects the Postgres context store only; memory and plans remain SQLite-backed pending a Postgres port")
		ctxStore, err = postgres.Open(cfg.Storage.PostgresDSN, postgres.DefaultPoolConfig(), logger)
		if err != nil {
			return fmt.Errorf("serve: open postgres context store: %w", err)
		}
	} else {
		ctxStore, err = contextstore.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "context.db"), logger)
		if err != nil {
			return err
		}
	}
	memStore, err := memory.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "memory.db"))
	if err != nil {
		return err
	}
	planStore, err := planner.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "plans.db"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	provider, err := llm.New(ctx, llm.FactoryConfig{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		APIKey:        cfg.LLM.APIKey,
		LocalEndpoint: cfg.LLM.LocalEndpoint,
		ReactFallback: cfg.LLM.ReactFallback,
	})
	if err != nil {
		return fmt.Errorf("serve: construct llm provider: %w", err)
	}

	authManager := auth.NewManager(auth.Config{
		Lists: auth.Lists{
			Admin: cfg.Auth.AdminUsers,
			// webhook.SyntheticUserID is always granted operator so
			// webhook-derived turns can reach OPERATOR-gated tools
			// (spec §4.12).
			Operator: append(append([]string{}, cfg.Auth.OperatorUsers...), webhook.SyntheticUserID),
			Trusted:  cfg.Auth.TrustedUsers,
		},
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
		SudoTimeout:        time.Duration(cfg.Auth.SudoTimeoutSeconds) * time.Second,
		JWTSecret:          cfg.Auth.JWTSecret,
	})

	pauseManager := pause.New()

	registry := tools.NewRegistry()
	registry.Register(shell.New(cfg.Storage.DataDir))
	registry.Register(delegate.New("delegate", "true", cfg.Storage.DataDir))
	registry.Register(browser.New())

	// Break the planner <-> "plan" tool cycle per spec §9: the planner gets
	// its own copy of the registry, taken before "plan" is registered.
	plannerTools := tools.NewRegistry()
	for _, t := range registry.All() {
		plannerTools.Register(t)
	}
	plan := planner.New(planner.Config{
		Provider: provider,
		Registry: plannerTools,
		Store:    planStore,
		Bus:      b,
		Model:    cfg.LLM.Model,
		Logger:   logger,
	})
	registry.Register(planner.NewPlanTool(plan, ""))

	summarizer := llm.SimpleCompleter{Provider: provider, Model: cfg.LLM.Model}

	var jobs []scheduler.Job
	for _, j := range cfg.Scheduler.Jobs {
		jobs = append(jobs, scheduler.Job{ID: j.ID, Cron: j.Cron, Command: j.Command, Payload: j.Payload})
	}
	sched, err := scheduler.New(b, pauseManager, cfg.Scheduler.HeartbeatInterval, jobs, logger)
	if err != nil {
		return fmt.Errorf("serve: construct scheduler: %w", err)
	}

	cmdHandler := command.New(command.Config{
		Auth:    authManager,
		Context: ctxStore,
		Memory:  memStore,
		Pause:   pauseManager,
		Jobs:    sched,
		Summarize: func(ctx context.Context, platform, channel string) error {
			_, err := ctxStore.ForceSummarize(ctx, platform, channel, summarizer)
			return err
		},
	})

	pl := pipeline.New(pipeline.Config{
		Bus:                 b,
		Auth:                authManager,
		Commands:            cmdHandler,
		Context:             ctxStore,
		Memory:              memStore,
		Registry:            registry,
		Provider:            provider,
		Summarizer:          summarizer,
		Model:               cfg.LLM.Model,
		MaxTokens:           cfg.LLM.MaxTokens,
		Temperature:         float32(cfg.LLM.Temperature),
		MaxMessages:         cfg.Context.MaxMessages,
		SummarizeThreshold:  cfg.Context.SummarizeThreshold,
		ContextWindowTokens: cfg.Context.ContextWindowTokens,
		MemoryMaxTokens:     cfg.Context.ContextWindowTokens / 10,
		Logger:              logger,
	})
	b.Subscribe(bus.EventMessageIncoming, "pipeline", func(ctx context.Context, e bus.Event) {
		if e.MessageIncoming == nil {
			return
		}
		if err := pl.Handle(ctx, *e.MessageIncoming); err != nil {
			logger.Error("pipeline: handle failed", "error", err)
		}
	})

	var webhookSrv *webhook.Server
	if cfg.Webhooks.Enabled {
		var endpoints []webhook.Endpoint
		for _, e := range cfg.Webhooks.Endpoints {
			endpoints = append(endpoints, webhook.Endpoint{
				Name: e.Name, Path: e.Path, Provider: e.Provider, Secret: e.Secret,
				Channel: e.Channel, PromptTemplate: e.PromptTemplate,
			})
		}
		webhookSrv = webhook.New(b, webhook.Config{Bind: cfg.Webhooks.Bind, Port: cfg.Webhooks.Port, Endpoints: endpoints, Logger: logger})
		bridge := webhook.NewBridge(b, pauseManager)
		pauseManager.SetResumeHandler(bridge.ReplayQueued)
		webhookSrv.Start()
		logger.Info("webhook server listening", "bind", cfg.Webhooks.Bind, "port", cfg.Webhooks.Port)
	}

	var transports []transport
	if cfg.Transports.Discord.Enabled {
		t, err := discord.New(b, discord.Config{Token: cfg.Transports.Discord.Token, Logger: logger})
		if err != nil {
			return fmt.Errorf("serve: construct discord transport: %w", err)
		}
		transports = append(transports, t)
	}
	if cfg.Transports.Slack.Enabled {
		t, err := slack.New(b, slack.Config{BotToken: cfg.Transports.Slack.BotToken, AppToken: cfg.Transports.Slack.AppToken, Logger: logger})
		if err != nil {
			return fmt.Errorf("serve: construct slack transport: %w", err)
		}
		transports = append(transports, t)
	}
	if cfg.Transports.Telegram.Enabled {
		t, err := telegram.New(b, telegram.Config{Token: cfg.Transports.Telegram.Token, Logger: logger})
		if err != nil {
			return fmt.Errorf("serve: construct telegram transport: %w", err)
		}
		transports = append(transports, t)
	}
	for _, t := range transports {
		if err := t.Start(); err != nil {
			return fmt.Errorf("serve: start transport: %w", err)
		}
	}

	sched.Start()
	logger.Info("shannon started", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "transports", len(transports))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	for _, t := range transports {
		if err := t.Stop(); err != nil {
			logger.Error("transport shutdown error", "error", err)
		}
	}
	if webhookSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webhookSrv.Stop(shutdownCtx); err != nil {
			logger.Error("webhook server shutdown error", "error", err)
		}
	}
	sched.Stop()
	b.Stop(5 * time.Second)
	registry.CloseAll()
	ctxStore.Close()
	memStore.Close()
	planStore.Close()
	return nil
}
