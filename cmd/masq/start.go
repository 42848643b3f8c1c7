package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zulandar/masquerade/internal/ai"
	"github.com/zulandar/masquerade/internal/config"
	"github.com/zulandar/masquerade/internal/dashboard"
	"github.com/zulandar/masquerade/internal/db"
	"github.com/zulandar/masquerade/internal/gateway/discord"
	"github.com/zulandar/masquerade/internal/persona"
	"github.com/zulandar/masquerade/internal/reminder"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Masquerade bot",
		Long:  "Connects to Discord, MongoDB, and the Gemini API, registers the slash commands, and serves persona threads until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "masquerade.yaml", "path to Masquerade config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	// Secrets come from the environment; .env is a dev convenience.
	if err := godotenv.Load(); err == nil {
		log.Printf("masq: loaded .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DiscordToken == "" {
		return fmt.Errorf("%s is required", config.EnvDiscordToken)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	// MongoDB. A failed initial connect degrades rather than aborts: the
	// manager reconnects on later use and commands report the outage.
	database := db.New(cfg.MongoURI, cfg.Mongo.Database)
	if err := database.Connect(ctx); err != nil {
		log.Printf("masq: mongodb unavailable at startup: %v", err)
	}
	defer database.Close(context.Background())

	aiMgr, err := ai.New(ctx, ai.Opts{
		APIKey:         cfg.GoogleAPIKey,
		Model:          cfg.AI.Model,
		RequestTimeout: time.Duration(cfg.AI.RequestTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init ai: %w", err)
	}

	adapter, err := discord.New(discord.AdapterOpts{
		BotToken: cfg.DiscordToken,
		GuildID:  cfg.Discord.GuildID,
	})
	if err != nil {
		return fmt.Errorf("init discord: %w", err)
	}

	// Shared cache and limiter keep the message pipeline and the creator
	// looking at the same session state.
	cache := persona.NewCache()
	limiter := persona.NewLimiter()

	pipeline, err := persona.NewPipeline(persona.PipelineOpts{
		Store:   database,
		AI:      aiMgr,
		Cache:   cache,
		Limiter: limiter,
		Adapter: adapter,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	creator, err := persona.NewCreator(persona.CreatorOpts{
		Store:   database,
		AI:      aiMgr,
		Cache:   cache,
		Limiter: limiter,
		Adapter: adapter,
	})
	if err != nil {
		return fmt.Errorf("init creator: %w", err)
	}

	monitor := persona.NewMonitor(database, aiMgr, time.Now())

	deps := &discord.CommandDeps{
		Creator: creator,
		Status:  monitor,
	}

	if cfg.Reminder.Enabled {
		remSvc, err := reminder.New(reminder.Opts{
			Store:    database,
			Sender:   adapter,
			Schedule: cfg.Reminder.Schedule,
			Mention:  cfg.Reminder.Mention,
		})
		if err != nil {
			return fmt.Errorf("init reminder: %w", err)
		}
		deps.Timers = remSvc
		go remSvc.Run(ctx)
	}

	adapter.SetCommandDeps(deps)

	// Deleting a persona thread deletes the persona.
	adapter.SetThreadDeleteHandler(func(threadID string) {
		deleted, err := creator.Remove(context.Background(), threadID)
		if err != nil {
			log.Printf("masq: remove session for deleted thread %s: %v", threadID, err)
			return
		}
		if deleted {
			log.Printf("masq: thread %s deleted, persona removed", threadID)
		}
	})

	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect discord: %w", err)
	}
	defer adapter.Close()

	inbound, err := adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := dashboard.Start(ctx, dashboard.StartOpts{
			Monitor: monitor,
			Port:    cfg.Dashboard.Port,
			Out:     cmd.OutOrStdout(),
		}); err != nil {
			log.Printf("masq: dashboard: %v", err)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Masquerade is running. Press Ctrl+C to stop.")

	// One goroutine per message: a slow AI call in one thread never blocks
	// the others.
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			go pipeline.HandleMessage(ctx, msg)
		}
	}
}
