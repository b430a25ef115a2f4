package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipkeep/internal/ipc"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/format"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// displayFlags are the formatter knobs shared by list-style commands
type displayFlags struct {
	compact  bool
	noColors bool
	noIcons  bool
	maxLines int
	maxWidth int
}

func (d *displayFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&d.compact, "compact", false, "one line per entry")
	cmd.Flags().BoolVar(&d.noColors, "no-colors", false, "disable colors")
	cmd.Flags().BoolVar(&d.noIcons, "no-icons", false, "disable icons")
	cmd.Flags().IntVar(&d.maxLines, "max-lines", 10, "maximum content lines to show (0 = no limit)")
	cmd.Flags().IntVar(&d.maxWidth, "max-width", 80, "maximum content width (0 = no limit)")
}

func (d *displayFlags) options(cmd *cobra.Command) format.Options {
	opts := displayOptions(cmd)
	if d.compact {
		opts.Compact = true
		opts.ShowMetadata = false
	}
	if d.noColors {
		opts.UseColors = false
	}
	if d.noIcons {
		opts.UseIcons = false
	}
	opts.MaxLines = d.maxLines
	opts.MaxWidth = d.maxWidth
	return opts
}

// newHistoryCmd creates the history command with all subcommands
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage clipboard history",
		Long: `Manage clipboard history:
  • List, search and show history entries
  • Edit text entries and delete entries
  • Trim or clear the history
  • Show history statistics`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistorySearchCmd())
	cmd.AddCommand(newHistoryEditCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryClearCmd())
	cmd.AddCommand(newHistoryTrimCmd())
	cmd.AddCommand(newHistoryCountCmd())
	cmd.AddCommand(newHistoryStatsCmd())

	return cmd
}

// newHistoryListCmd creates the list subcommand
func newHistoryListCmd() *cobra.Command {
	var (
		limit   int
		display displayFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		Example: `  # Show the 10 most recent entries
  clipkeep history list

  # Compact view of the last 50 entries
  clipkeep history list -n 50 --compact

  # Everything, as JSON
  clipkeep history list -n 0 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaries []types.RecordSummary
			if err := sendDecode(cmd.Context(), &summaries, ipc.CmdHistoryList, "limit", limit); err != nil {
				return err
			}
			return printSummaries(cmd, summaries, display.options(cmd))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show (0 = all)")
	display.register(cmd)
	return cmd
}

// newHistorySearchCmd creates the search subcommand
func newHistorySearchCmd() *cobra.Command {
	var (
		limit   int
		fuzzy   bool
		display displayFlags
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search history entries",
		Long: `Search text entries by substring (case-insensitive), or by fuzzy
subsequence match with --fuzzy. Image entries match on "image WxH".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			var summaries []types.RecordSummary
			err := sendDecode(cmd.Context(), &summaries, ipc.CmdHistorySearch,
				"query", query, "limit", limit, "fuzzy", fuzzy)
			if err != nil {
				return err
			}
			return printSummaries(cmd, summaries, display.options(cmd))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum matches to show (0 = all)")
	cmd.Flags().BoolVarP(&fuzzy, "fuzzy", "f", false, "fuzzy match instead of substring")
	display.register(cmd)
	return cmd
}

func printSummaries(cmd *cobra.Command, summaries []types.RecordSummary, opts format.Options) error {
	if useJSON {
		return printJSON(cmd.OutOrStdout(), summaries)
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.New(opts).FormatSummaryList(summaries))
	return nil
}

// newHistoryShowCmd creates the show subcommand
func newHistoryShowCmd() *cobra.Command {
	var (
		output  string
		export  bool
		raw     bool
		display displayFlags
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single history entry",
		Example: `  # Pretty-print entry 42
  clipkeep history show 42

  # Save an image entry to disk
  clipkeep history show 17 -o screenshot.png

  # Export to a temp file and open it
  xdg-open "$(clipkeep history show 17 --export)"

  # Pipe a text entry somewhere else
  clipkeep history show 42 --raw | wc -l`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var rec types.Record
			if err := sendDecode(cmd.Context(), &rec, ipc.CmdHistoryShow, "id", id); err != nil {
				return err
			}

			switch {
			case output != "":
				if err := os.WriteFile(output, recordBytes(&rec), 0600); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				printMessage(cmd, "Saved record %d to %s", id, output)
				return nil
			case export:
				path, err := exportRecord(&rec)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			case raw:
				_, err := cmd.OutOrStdout().Write(recordBytes(&rec))
				return err
			case useJSON:
				return printJSON(cmd.OutOrStdout(), rec)
			}

			fmt.Fprintln(cmd.OutOrStdout(), format.New(display.options(cmd)).FormatDetail(&types.RecordDetail{Record: rec}))
			if rec.Type == types.TypeImage {
				printMessage(cmd, "Use --export or -o file.%s to save the image", rec.Format.Ext())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the content to a file")
	cmd.Flags().BoolVar(&export, "export", false, "write the content to a temp file and print its path")
	cmd.Flags().BoolVar(&raw, "raw", false, "write the content to stdout unformatted")
	display.register(cmd)
	return cmd
}

// exportRecord writes the record into a temp session directory. The file
// outlives this process and is swept with the session after temp.cleanup_age.
func exportRecord(rec *types.Record) (string, error) {
	temp, err := utils.NewTempManager(cfg.SystemPaths.TempDir, cfg.Temp.CleanupAge)
	if err != nil {
		return "", err
	}
	if rec.Type == types.TypeImage {
		path := temp.ImagePath(rec.ID, rec.Format.Ext())
		if err := os.WriteFile(path, rec.Image, 0600); err != nil {
			return "", fmt.Errorf("failed to export image: %w", err)
		}
		return path, nil
	}
	return temp.WriteFile(fmt.Sprintf("record_%d.%s", rec.ID, rec.Format.Ext()), []byte(rec.Text))
}

func recordBytes(rec *types.Record) []byte {
	if rec.Type == types.TypeImage {
		return rec.Image
	}
	return []byte(rec.Text)
}

// newHistoryEditCmd creates the edit subcommand
func newHistoryEditCmd() *cobra.Command {
	var (
		fromStdin bool
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id> [text...]",
		Short: "Replace the text of a history entry",
		Long: `Replace the text of a text entry. The entry keeps its id, position
and content hash. With --no-wait the edit is queued behind the daemon's
debounce window instead of being written immediately.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var text string
			if fromStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			} else {
				if len(args) < 2 {
					return fmt.Errorf("no text given (pass it as arguments or use --stdin)")
				}
				text = strings.Join(args[1:], " ")
			}

			resp, err := send(cmd.Context(), ipc.CmdHistoryUpdate, "id", id, "text", text, "flush", !noWait)
			if err != nil {
				return err
			}
			printMessage(cmd, "%s", resp.Message)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the new text from stdin")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return before the edit is written")
	return cmd
}

// newHistoryDeleteCmd creates the delete subcommand
func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete history entries",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				resp, err := send(cmd.Context(), ipc.CmdHistoryDelete, "id", id)
				if err != nil {
					return err
				}
				printMessage(cmd, "%s", resp.Message)
			}
			return nil
		},
	}
}

// newHistoryClearCmd creates the clear subcommand
func newHistoryClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			resp, err := send(cmd.Context(), ipc.CmdHistoryClear)
			if err != nil {
				return err
			}
			printMessage(cmd, "%s", resp.Message)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing the history")
	return cmd
}

// newHistoryTrimCmd creates the trim subcommand
func newHistoryTrimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trim <max>",
		Short: "Keep only the newest <max> entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			max, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[0])
			}
			var removed int
			if err := sendDecode(cmd.Context(), &removed, ipc.CmdHistoryTrim, "max", max); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
			}
			printMessage(cmd, "Removed %d entries", removed)
			return nil
		},
	}
}

// newHistoryCountCmd creates the count subcommand
func newHistoryCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if err := sendDecode(cmd.Context(), &n, ipc.CmdHistoryCount); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

// newHistoryStatsCmd creates the stats subcommand
func newHistoryStatsCmd() *cobra.Command {
	var display displayFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaries []types.RecordSummary
			if err := sendDecode(cmd.Context(), &summaries, ipc.CmdHistoryList, "limit", 0); err != nil {
				return err
			}
			stats := format.ComputeStats(summaries)
			if useJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.New(display.options(cmd)).FormatStats(stats))
			return nil
		},
	}

	display.register(cmd)
	return cmd
}
