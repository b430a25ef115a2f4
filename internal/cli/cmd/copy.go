package cmd

import (
	"github.com/spf13/cobra"

	"github.com/berrythewa/clipkeep/internal/ipc"
)

// newCopyCmd creates the copy command
func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Put a history entry back on the clipboard",
		Long: `Write a history entry back to the system clipboard. The daemon does
not record the resulting clipboard change as a new entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := send(cmd.Context(), ipc.CmdCopy, "id", id)
			if err != nil {
				return err
			}
			printMessage(cmd, "%s", resp.Message)
			return nil
		},
	}
}
