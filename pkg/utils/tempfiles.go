package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const sessionPrefix = "session_"

// TempManager owns a per-process session directory under a shared temp root.
// Session directories left behind by earlier runs are removed once they
// are older than maxAge.
type TempManager struct {
	baseDir    string
	sessionDir string
	maxAge     time.Duration
}

// NewTempManager creates the session directory and sweeps stale sessions
func NewTempManager(baseDir string, maxAge time.Duration) (*TempManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp root: %w", err)
	}

	name := fmt.Sprintf("%s%d_%d", sessionPrefix, time.Now().Unix(), os.Getpid())
	sessionDir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	m := &TempManager{
		baseDir:    baseDir,
		sessionDir: sessionDir,
		maxAge:     maxAge,
	}
	m.RemoveStaleSessions(time.Now())
	return m, nil
}

// SessionDir returns the directory owned by this process
func (m *TempManager) SessionDir() string {
	return m.sessionDir
}

// ImagePath returns the export path for an image record
func (m *TempManager) ImagePath(id int64, ext string) string {
	return filepath.Join(m.sessionDir, fmt.Sprintf("image_%d.%s", id, strings.ToLower(ext)))
}

// WriteFile writes data under the session directory and returns the full path
func (m *TempManager) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(m.sessionDir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, nil
}

// RemoveStaleSessions deletes other sessions whose creation time is older
// than maxAge relative to now. It returns the number of directories removed.
func (m *TempManager) RemoveStaleSessions(now time.Time) int {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionPrefix) {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		if path == m.sessionDir {
			continue
		}
		created, ok := sessionTime(entry.Name())
		if !ok || now.Sub(created) < m.maxAge {
			continue
		}
		if err := os.RemoveAll(path); err == nil {
			removed++
		}
	}
	return removed
}

// Cleanup removes this process's session directory
func (m *TempManager) Cleanup() error {
	return os.RemoveAll(m.sessionDir)
}

// sessionTime parses the unix timestamp out of session_<unix>_<pid>
func sessionTime(name string) (time.Time, bool) {
	parts := strings.Split(strings.TrimPrefix(name, sessionPrefix), "_")
	if len(parts) != 2 {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// RemoveTempFile safely deletes a temp file.
func RemoveTempFile(path string) error {
	return os.Remove(path)
}

// TempFileExists checks if a temp file exists.
func TempFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
