package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/cache"
	"github.com/zulandar/storyforge/internal/db"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Work item cache commands",
	}

	cmd.AddCommand(newCacheRefreshCmd())
	cmd.AddCommand(newCacheStatsCmd())
	return cmd
}

func newCacheRefreshCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Replace the cache with the latest work items from Azure DevOps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gormDB, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			connector := &ado.Connector{Settings: store, Auth: cfg.ADO.Auth, Timeout: cfg.ADO.Timeout}
			n, err := cache.Refresh(context.Background(), gormDB, connector)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully cached %d work items\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StoryForge config file")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show work item cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gormDB, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			stats, err := cache.GetStats(gormDB)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:   %d\n", stats.Total)
			fmt.Fprintf(out, "New:     %d\n", stats.NewCount)
			fmt.Fprintf(out, "Active:  %d\n", stats.ActiveCount)
			if stats.LastRefresh != nil {
				fmt.Fprintf(out, "Refreshed: %s\n", stats.LastRefresh.Local().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Refreshed: never")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StoryForge config file")
	return cmd
}
