package ipc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
)

// Commands understood by the daemon
const (
	CmdPing           = "ping"
	CmdHistoryList    = "history.list"
	CmdHistoryShow    = "history.show"
	CmdHistoryUpdate  = "history.update"
	CmdHistoryDelete  = "history.delete"
	CmdHistoryClear   = "history.clear"
	CmdHistoryTrim    = "history.trim"
	CmdHistoryCount   = "history.count"
	CmdHistorySearch  = "history.search"
	CmdCopy           = "copy"
	CmdSettingsReload = "settings.reload"
	CmdSelfCheck      = "selfcheck"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a command sent from the CLI to the daemon.
type Request struct {
	Command string                 `json:"command"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// Response represents a reply from the daemon to the CLI.
type Response struct {
	Status  string          `json:"status"`            // "ok" or "error"
	Message string          `json:"message,omitempty"` // Human-readable message or error
	Code    kerrors.Code    `json:"code,omitempty"`    // Error code when Status is "error"
	Data    json.RawMessage `json:"data,omitempty"`    // Command-specific payload
}

// NewRequest builds a request from alternating key, value pairs
func NewRequest(command string, kv ...interface{}) *Request {
	req := &Request{Command: command}
	if len(kv) > 0 {
		req.Args = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			req.Args[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return req
}

// OK builds a success response carrying data
func OK(message string, data interface{}) *Response {
	resp := &Response{Status: StatusOK, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Fail(kerrors.NewEncoding("encode response", err))
		}
		resp.Data = raw
	}
	return resp
}

// Fail builds an error response, keeping the error code when there is one
func Fail(err error) *Response {
	return &Response{Status: StatusError, Message: err.Error(), Code: kerrors.CodeOf(err)}
}

// Err turns an error response back into an error
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Code != "" {
		msg := strings.TrimPrefix(r.Message, string(r.Code)+": ")
		return &kerrors.Error{Code: r.Code, Message: msg}
	}
	return fmt.Errorf("daemon error: %s", r.Message)
}

// Decode unmarshals the payload into v
func (r *Response) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Int reads an integer argument. JSON numbers arrive as float64.
func (r *Request) Int(key string) (int64, error) {
	v, ok := r.Args[key]
	if !ok {
		return 0, kerrors.NewInvalidInput(fmt.Sprintf("missing argument %q", key))
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, kerrors.NewInvalidInput(fmt.Sprintf("argument %q is not a number", key))
		}
		return i, nil
	default:
		return 0, kerrors.NewInvalidInput(fmt.Sprintf("argument %q is not a number", key))
	}
}

// IntOr reads an optional integer argument
func (r *Request) IntOr(key string, def int64) (int64, error) {
	if _, ok := r.Args[key]; !ok {
		return def, nil
	}
	return r.Int(key)
}

// String reads a string argument
func (r *Request) String(key string) (string, error) {
	v, ok := r.Args[key].(string)
	if !ok {
		return "", kerrors.NewInvalidInput(fmt.Sprintf("missing string argument %q", key))
	}
	return v, nil
}

// Bool reads an optional boolean argument
func (r *Request) Bool(key string) bool {
	v, _ := r.Args[key].(bool)
	return v
}
