package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/common"
	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/pkg/format"
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool
	useJSON    bool

	// Shared resources
	cfg    *config.Config
	logger *zap.Logger
)

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipkeep",
		Short: "Clipboard history that survives restarts",
		Long: `ClipKeep watches the system clipboard and keeps a persistent history:
  • Text, HTML, copied files and images are captured and deduplicated
  • Large images are downscaled and thumbnailed before they are stored
  • Any entry can be searched, edited or copied back to the clipboard

The daemon does the capturing; every other command talks to it over a
local socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is <config dir>/clipkeep/config.yaml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimize output")
	root.PersistentFlags().BoolVar(&useJSON, "json", false, "output in JSON format")

	root.AddCommand(
		newDaemonCmd(),
		newHistoryCmd(),
		newCopyCmd(),
		newSettingsCmd(),
		newConfigCmd(),
		newSelfCheckCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger for the invoked command
func setup() error {
	loaded, err := config.Load(viper.New(), configFile)
	if err != nil {
		return err
	}

	logCfg := loaded.Log
	switch {
	case verbose:
		logCfg.Level = "debug"
	case quiet:
		logCfg.Level = "warn"
	}

	l, err := common.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg = loaded
	logger = l
	return nil
}

// displayOptions picks formatter options for the command's output stream
func displayOptions(cmd *cobra.Command) format.Options {
	opts := format.DefaultOptions()
	if f, ok := cmd.OutOrStdout().(*os.File); !ok || !common.IsTTY(f) {
		opts = format.PlainOptions()
	}
	return opts
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMessage writes a status line unless --quiet is set
func printMessage(cmd *cobra.Command, msg string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), msg+"\n", args...)
}
