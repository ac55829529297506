package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/cache"
	"github.com/zulandar/storyforge/internal/dashboard"
	"github.com/zulandar/storyforge/internal/db"
	"github.com/zulandar/storyforge/internal/notify"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"dashboard"},
		Short:   "Start the StoryForge API server",
		Long: `Starts the HTTP API used by the StoryForge frontend.

The work item cache is refreshed shortly after startup and then on the
cron schedule from cache.schedule unless cache.disabled is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noCache)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StoryForge config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the scheduled cache refresh")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noCache bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}

	gormDB, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	connector := &ado.Connector{Settings: store, Auth: cfg.ADO.Auth, Timeout: cfg.ADO.Timeout}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if !cfg.Cache.Disabled && !noCache {
		sched, err := cache.NewScheduler(gormDB, connector, cfg.Cache.Schedule, cfg.Cache.WarmupDelay)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Cache refresh scheduled (%s)\n", cfg.Cache.Schedule)
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:       gormDB,
		Port:     cfg.Server.Port,
		Out:      cmd.OutOrStdout(),
		Settings: store,
		ADO:      connector,
		Notifier: notifier,
	})
}
