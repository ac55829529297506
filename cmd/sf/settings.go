package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/storyforge/internal/db"
	"github.com/zulandar/storyforge/internal/settings"
	"golang.org/x/term"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the Azure DevOps connection",
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored connection settings (the PAT is never shown)",
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

			out := cmd.OutOrStdout()
			s, err := store.Sanitized()
			if errors.Is(err, settings.ErrNotConfigured) {
				fmt.Fprintln(out, "Settings not configured. Run 'sf settings set'.")
				return nil
			}
			if err != nil {
				return err
			}
			printSettings(out, s)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StoryForge config file")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		configPath string
		in         settings.Input
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the Azure DevOps connection settings",
		Long: `Saves the organization URL, project and personal access token.

When --pat is omitted the token is read from the terminal without echo, or
from the first line of stdin when stdin is not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if in.AdoPAT == "" {
				pat, err := readPAT(cmd)
				if err != nil {
					return err
				}
				in.AdoPAT = pat
			}

			gormDB, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			if _, err := store.Save(in); err != nil {
				return err
			}
			s, err := store.Sanitized()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Settings saved successfully")
			printSettings(out, s)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StoryForge config file")
	cmd.Flags().StringVar(&in.AdoOrgURL, "org", "", "organization URL, e.g. https://dev.azure.com/acme")
	cmd.Flags().StringVar(&in.AdoProject, "project", "", "project name")
	cmd.Flags().StringVar(&in.AdoPAT, "pat", "", "personal access token")
	cmd.Flags().StringVar(&in.AreaPath, "area-path", "", "restrict queries to this area path")
	cmd.Flags().StringVar(&in.IterationPath, "iteration-path", "", "default iteration path")
	return cmd
}

// readPAT prompts for the token without echo on a terminal and reads one
// line otherwise.
func readPAT(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Personal access token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printSettings(out io.Writer, s *settings.Sanitized) {
	fmt.Fprintf(out, "Organization:   %s\n", s.AdoOrgURL)
	fmt.Fprintf(out, "Project:        %s\n", s.AdoProject)
	fmt.Fprintf(out, "PAT configured: %t\n", s.AdoPATConfigured)
	fmt.Fprintf(out, "Area path:      %s\n", deref(s.AreaPath))
	fmt.Fprintf(out, "Iteration path: %s\n", deref(s.IterationPath))
	fmt.Fprintf(out, "Process:        %s\n", deref(s.ProcessTemplate))
	if len(s.AvailableWorkItemTypes) > 0 {
		fmt.Fprintf(out, "Work item types: %s\n", strings.Join(s.AvailableWorkItemTypes, ", "))
	}
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
