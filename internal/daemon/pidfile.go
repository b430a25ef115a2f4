package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/berrythewa/clipkeep/internal/config"
)

const pidFileName = "clipkeep.pid"

// PIDFilePath returns the PID file location for cfg
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.SystemPaths.RunDir, pidFileName)
}

// WritePIDFile records the current process id
func WritePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the pid stored at path
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", string(data))
	}
	return pid, nil
}

// Status reports the daemon pid and whether that process is alive.
// A PID file pointing at a dead process is removed.
func Status(cfg *config.Config) (int, bool) {
	path := PIDFilePath(cfg)
	pid, err := ReadPIDFile(path)
	if err != nil {
		return 0, false
	}
	if !processAlive(pid) {
		os.Remove(path)
		return pid, false
	}
	return pid, true
}

// Stop asks the running daemon to exit and waits up to timeout for it
func Stop(cfg *config.Config, timeout time.Duration) (int, error) {
	pid, running := Status(cfg)
	if !running {
		return 0, fmt.Errorf("daemon is not running")
	}
	if err := terminate(pid); err != nil {
		return pid, fmt.Errorf("failed to stop process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			os.Remove(PIDFilePath(cfg))
			return pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pid, fmt.Errorf("process %d did not exit within %s", pid, timeout)
}
