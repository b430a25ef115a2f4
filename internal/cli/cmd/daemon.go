package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/daemon"
	"github.com/berrythewa/clipkeep/internal/ipc"
)

// newDaemonCmd creates the daemon command
func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the ClipKeep daemon",
		Long: `Manage the daemon process that watches the clipboard and owns the history.

The daemon can be:
  • Run in the foreground (useful under systemd or for debugging)
  • Started in the background
  • Stopped gracefully
  • Checked for status`,
	}

	cmd.AddCommand(newDaemonRunCmd())
	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Starting ClipKeep daemon in foreground", zap.Int("pid", os.Getpid()))
			return daemon.Run(cmd.Context(), cfg, logger)
		},
	}
}

func newDaemonStartCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid, running := daemon.Status(cfg); running {
				return fmt.Errorf("daemon already running with PID %d", pid)
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}
			runArgs := []string{"daemon", "run"}
			if configFile != "" {
				runArgs = append(runArgs, "--config", configFile)
			}
			if verbose {
				runArgs = append(runArgs, "--verbose")
			}

			logPath := filepath.Join(cfg.SystemPaths.LogDir, "daemon.log")
			pid, err := daemon.Detach(exe, runArgs, cfg.SystemPaths.DataDir, logPath)
			if err != nil {
				return err
			}
			logger.Info("Daemon process started", zap.Int("pid", pid), zap.String("log", logPath))

			if err := waitForDaemon(cmd.Context(), wait); err != nil {
				return fmt.Errorf("daemon (PID %d) did not come up, see %s: %w", pid, logPath, err)
			}
			printMessage(cmd, "Daemon started (PID %d)", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for the daemon to answer")
	return cmd
}

// waitForDaemon polls the socket until the daemon answers a ping
func waitForDaemon(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		resp, err := ipc.SendRequest(ctx, cfg.IPC.SocketPath, ipc.NewRequest(ipc.CmdPing))
		if err == nil && resp.Err() == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newDaemonStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemon.Stop(cfg, timeout)
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			printMessage(cmd, "Daemon stopped (PID %d)", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the daemon to exit")
	return cmd
}

// daemonStatus is the --json form of daemon status
type daemonStatus struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid,omitempty"`
	Responding bool   `json:"responding"`
	Records    int    `json:"records"`
	Socket     string `json:"socket"`
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := daemonStatus{Socket: cfg.IPC.SocketPath}
			status.PID, status.Running = daemon.Status(cfg)
			if !status.Running {
				status.PID = 0
			}
			if err := sendDecode(cmd.Context(), &status.Records, ipc.CmdHistoryCount); err == nil {
				status.Responding = true
			}

			if useJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			switch {
			case status.Running:
				fmt.Fprintf(out, "Status:  running\nPID:     %d\n", status.PID)
			case status.Responding:
				fmt.Fprintln(out, "Status:  running (no PID file)")
			default:
				fmt.Fprintln(out, "Status:  stopped")
				return nil
			}
			if status.Responding {
				fmt.Fprintf(out, "Records: %d\n", status.Records)
			} else {
				fmt.Fprintln(out, "Socket:  not responding")
			}
			return nil
		},
	}
}
