package daemon

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/ipc"
	"github.com/berrythewa/clipkeep/internal/pipeline"
	"github.com/berrythewa/clipkeep/internal/types"
)

// Handler maps IPC commands onto the pipeline
type Handler struct {
	pipeline *pipeline.Pipeline
	// reload reads the settings document from disk
	reload func() (types.Settings, error)
	logger *zap.Logger
}

// NewHandler creates a handler over p
func NewHandler(p *pipeline.Pipeline, reload func() (types.Settings, error), logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: p, reload: reload, logger: logger}
}

// Handle answers one request
func (h *Handler) Handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	resp, err := h.dispatch(ctx, req)
	if err != nil {
		h.logger.Debug("IPC command failed", zap.String("command", req.Command), zap.Error(err))
		return ipc.Fail(err)
	}
	return resp
}

func (h *Handler) dispatch(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	p := h.pipeline

	switch req.Command {
	case ipc.CmdPing:
		return ipc.OK("pong", nil), nil

	case ipc.CmdHistoryList:
		limit, err := req.IntOr("limit", 0)
		if err != nil {
			return nil, err
		}
		summaries, err := p.ListSummaries(ctx, int(limit))
		if err != nil {
			return nil, err
		}
		return ipc.OK("", summaries), nil

	case ipc.CmdHistoryShow:
		id, err := req.Int("id")
		if err != nil {
			return nil, err
		}
		detail, err := p.GetDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		return ipc.OK("", detail.Record), nil

	case ipc.CmdHistoryUpdate:
		id, err := req.Int("id")
		if err != nil {
			return nil, err
		}
		text, err := req.String("text")
		if err != nil {
			return nil, err
		}
		p.UpdateText(id, text)
		if !req.Bool("flush") {
			return ipc.OK(fmt.Sprintf("edit to record %d scheduled", id), nil), nil
		}
		if err := p.FlushEdits(ctx); err != nil {
			return nil, err
		}
		// a read after the flush observes the write
		detail, err := p.GetDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		return ipc.OK(fmt.Sprintf("record %d updated", id), detail.Record), nil

	case ipc.CmdHistoryDelete:
		id, err := req.Int("id")
		if err != nil {
			return nil, err
		}
		if err := p.DeleteRecord(ctx, id); err != nil {
			return nil, err
		}
		return ipc.OK(fmt.Sprintf("record %d deleted", id), nil), nil

	case ipc.CmdHistoryClear:
		if err := p.ClearHistory(ctx); err != nil {
			return nil, err
		}
		return ipc.OK("history cleared", nil), nil

	case ipc.CmdHistoryTrim:
		max, err := req.Int("max")
		if err != nil {
			return nil, err
		}
		removed, err := p.Trim(ctx, int(max))
		if err != nil {
			return nil, err
		}
		return ipc.OK(fmt.Sprintf("removed %d records", removed), removed), nil

	case ipc.CmdHistoryCount:
		n, err := p.CountRecords(ctx)
		if err != nil {
			return nil, err
		}
		return ipc.OK("", n), nil

	case ipc.CmdHistorySearch:
		query, err := req.String("query")
		if err != nil {
			return nil, err
		}
		limit, err := req.IntOr("limit", 0)
		if err != nil {
			return nil, err
		}
		summaries, err := p.ListSummaries(ctx, 0)
		if err != nil {
			return nil, err
		}
		matches := pipeline.Filter(summaries, query, req.Bool("fuzzy"))
		if limit > 0 && len(matches) > int(limit) {
			matches = matches[:limit]
		}
		return ipc.OK("", matches), nil

	case ipc.CmdCopy:
		id, err := req.Int("id")
		if err != nil {
			return nil, err
		}
		if err := p.Copy(ctx, id); err != nil {
			return nil, err
		}
		return ipc.OK(fmt.Sprintf("record %d copied to clipboard", id), nil), nil

	case ipc.CmdSettingsReload:
		if h.reload == nil {
			return nil, fmt.Errorf("settings reload is not configured")
		}
		settings, err := h.reload()
		if err != nil {
			return nil, err
		}
		p.ApplySettings(settings)
		applied, err := p.Settings(ctx)
		if err != nil {
			return nil, err
		}
		return ipc.OK("settings reloaded", applied), nil

	case ipc.CmdSelfCheck:
		report, err := p.SelfCheck(ctx)
		if err != nil {
			return nil, err
		}
		return ipc.OK("", report), nil

	default:
		return nil, fmt.Errorf("unknown command %q", req.Command)
	}
}
