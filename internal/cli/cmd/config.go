package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/clipkeep/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon configuration",
		Long: `Manage the daemon configuration file.

Values are layered: built-in defaults, then config.yaml, then CLIPKEEP_*
environment variables (for example CLIPKEEP_LOG_LEVEL=debug).`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathsCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if useJSON {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if path == "" {
				path = cfg.SystemPaths.ConfigFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig(cfg.SystemPaths).Save(path); err != nil {
				return err
			}
			printMessage(cmd, "Configuration written to %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the directories and files ClipKeep uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cfg.SystemPaths
			if useJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"config":   p.ConfigFile,
					"settings": p.SettingsFile,
					"data":     p.DataDir,
					"database": cfg.Storage.DBPath,
					"logs":     p.LogDir,
					"temp":     p.TempDir,
					"socket":   cfg.IPC.SocketPath,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:   %s\n", p.ConfigFile)
			fmt.Fprintf(out, "Settings: %s\n", p.SettingsFile)
			fmt.Fprintf(out, "Data:     %s\n", p.DataDir)
			fmt.Fprintf(out, "Database: %s (%s)\n", cfg.Storage.DBPath, cfg.Storage.Driver)
			fmt.Fprintf(out, "Logs:     %s\n", p.LogDir)
			fmt.Fprintf(out, "Temp:     %s\n", p.TempDir)
			fmt.Fprintf(out, "Socket:   %s\n", cfg.IPC.SocketPath)
			return nil
		},
	}
}
