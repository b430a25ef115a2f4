//go:build linux

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const targetTimeout = time.Second

// externalTargetReader picks wl-paste under Wayland and xclip otherwise.
// It returns nil when neither tool is installed.
func externalTargetReader() TargetReader {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return func(ctx context.Context, mime string) (string, error) {
				return runTarget(ctx, "wl-paste", "--no-newline", "--type", mime)
			}
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return func(ctx context.Context, mime string) (string, error) {
			return runTarget(ctx, "xclip", "-selection", "clipboard", "-t", mime, "-o")
		}
	}
	return nil
}

// externalTargetWriter picks wl-copy under Wayland and xclip otherwise.
// Both tools fork to keep serving the selection after they return.
func externalTargetWriter() TargetWriter {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return func(ctx context.Context, mime, data string) error {
				return feedTarget(ctx, data, "wl-copy", "--type", mime)
			}
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return func(ctx context.Context, mime, data string) error {
			return feedTarget(ctx, data, "xclip", "-selection", "clipboard", "-t", mime, "-i")
		}
	}
	return nil
}

func feedTarget(ctx context.Context, data string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

// runTarget runs a clipboard tool and returns its stdout. A target the
// current owner does not offer makes the tool exit non-zero, which is
// reported as empty content.
func runTarget(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, targetTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", nil
		}
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}
	return stdout.String(), nil
}
