package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipkeep/internal/ipc"
	"github.com/berrythewa/clipkeep/internal/worker"
)

// newSelfCheckCmd creates the selfcheck command
func newSelfCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selfcheck",
		Short: "Ask the daemon to verify its database, temp directory and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report worker.SelfCheckReport
			if err := sendDecode(cmd.Context(), &report, ipc.CmdSelfCheck); err != nil {
				return err
			}
			if useJSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:   %s\n", okString(report.DBOK))
				fmt.Fprintf(out, "Temp dir:   %s\n", okString(report.TempOK))
				fmt.Fprintf(out, "Disk space: %s (%d MB free)\n", okString(report.SpaceOK), report.FreeMB)
				for _, issue := range report.Issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			if !report.OK() {
				return fmt.Errorf("self-check found %d issue(s)", len(report.Issues))
			}
			return nil
		},
	}
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}
