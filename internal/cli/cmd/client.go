package cmd

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/ipc"
)

// send issues one request to the running daemon and converts an error
// response into a Go error
func send(ctx context.Context, command string, kv ...interface{}) (*ipc.Response, error) {
	req := ipc.NewRequest(command, kv...)
	logger.Debug("Sending request", zap.String("command", command), zap.String("socket", cfg.IPC.SocketPath))

	resp, err := ipc.SendRequest(ctx, cfg.IPC.SocketPath, req)
	if err != nil {
		if kerrors.Is(err, kerrors.ErrUnavailable) {
			return nil, fmt.Errorf("daemon is not running (start it with 'clipkeep daemon start'): %w", err)
		}
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// sendDecode issues a request and decodes its payload into v
func sendDecode(ctx context.Context, v interface{}, command string, kv ...interface{}) error {
	resp, err := send(ctx, command, kv...)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// parseID parses a record id argument
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}
