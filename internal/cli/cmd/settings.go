package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/config"
	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/ipc"
	"github.com/berrythewa/clipkeep/internal/types"
)

// newSettingsCmd creates the settings command
func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View or change capture settings",
		Long: `View or change the capture settings stored in settings.yaml:
  max_history          entries kept before the oldest are trimmed
  save_original_image  store images at full size instead of downscaling
  enable_rich_text     capture HTML when the clipboard offers it
  enable_file_paths    capture copied files as a list of paths

Changes are pushed to a running daemon immediately.`,
	}

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(cfg.SystemPaths.SettingsFile)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				value, err := config.SettingValue(settings, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}

			if useJSON {
				return printJSON(cmd.OutOrStdout(), settings)
			}
			for _, key := range config.SettingKeys {
				value, _ := config.SettingValue(settings, key)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", key, value)
			}
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Example: `  clipkeep settings set max_history 500
  clipkeep settings set enable-rich-text false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.SystemPaths.SettingsFile
			settings, err := config.LoadSettings(path)
			if err != nil {
				return err
			}
			if err := config.ApplySetting(&settings, args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveSettings(path, settings); err != nil {
				return err
			}
			logger.Debug("Settings saved", zap.String("path", path))

			var applied types.Settings
			err = sendDecode(cmd.Context(), &applied, ipc.CmdSettingsReload)
			switch {
			case err == nil:
				printMessage(cmd, "Setting saved and applied")
			case kerrors.Is(err, kerrors.ErrUnavailable):
				printMessage(cmd, "Setting saved; it takes effect when the daemon starts")
			default:
				return fmt.Errorf("setting saved but the daemon could not reload it: %w", err)
			}
			return nil
		},
	}
}
