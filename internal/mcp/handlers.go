package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/pipeline"
	"github.com/hpungsan/snapstrip/internal/ranking"
)

// runner is the pipeline surface the manual-trigger tools need.
type runner interface {
	CaptureTick(ctx context.Context, day string) error
	Publish(ctx context.Context, day string) error
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config

	// newRunner is swapped out by tests. The default assembles the real
	// pipeline on first use.
	newRunner func(ctx context.Context) (runner, error)
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	h := &Handlers{db: db, cfg: cfg}
	h.newRunner = func(ctx context.Context) (runner, error) {
		// Tool output is the transport; keep pipeline logs off stdio.
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		return pipeline.New(ctx, cfg, db, log)
	}
	return h
}

// Request types for each tool

// RankingsRequest represents the arguments for strip_rankings.
type RankingsRequest struct {
	Day    string `json:"day,omitempty"`
	ByTime bool   `json:"by_time,omitempty"`
}

// GetRequest represents the arguments for strip_get.
type GetRequest struct {
	ID string `json:"id"`
}

// StatusRequest represents the arguments for strip_status.
type StatusRequest struct {
	Day string `json:"day,omitempty"`
}

// PublishRequest represents the arguments for strip_publish.
type PublishRequest struct {
	Day string `json:"day,omitempty"`
}

// ClearRequest represents the arguments for strip_clear.
type ClearRequest struct {
	Day string `json:"day"`
}

func orToday(day string) string {
	if day == "" {
		return ranking.DayOf(time.Now())
	}
	return day
}

// HandleRankings handles the strip_rankings tool call.
func (h *Handlers) HandleRankings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RankingsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	day := orToday(input.Day)
	var entries []*ranking.Entry
	if input.ByTime {
		entries, err = ranking.ByTime(h.db, day)
	} else {
		entries, err = ranking.TopN(h.db, day)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"day":     day,
		"entries": entries,
	})
}

// HandleDays handles the strip_days tool call.
func (h *Handlers) HandleDays(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := ranking.Days(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"days": days})
}

// HandleGet handles the strip_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	entry, err := ranking.Get(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(entry)
}

// HandleStatus handles the strip_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	day := orToday(input.Day)

	entries, err := ranking.TopN(h.db, day)
	if err != nil {
		return errorResult(err), nil
	}

	status := map[string]any{
		"day":       day,
		"ranked":    len(entries),
		"top_n":     h.cfg.Capture.TopN,
		"degraded":  false,
		"strip":     nil,
		"published": false,
	}
	for _, e := range entries {
		if e.Degraded {
			status["degraded"] = true
		}
	}

	strip, err := ranking.GetStrip(h.db, day)
	switch {
	case err == nil:
		status["strip"] = strip
		status["published"] = strip.PushedAt != nil
	case errors.Is(err, errors.ErrNotFound):
	default:
		return errorResult(err), nil
	}

	return successResult(status)
}

// HandleCapture handles the strip_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipe, err := h.newRunner(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	day := ranking.DayOf(time.Now())
	if err := pipe.CaptureTick(ctx, day); err != nil {
		return errorResult(err), nil
	}

	entries, err := ranking.TopN(h.db, day)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"day":    day,
		"ranked": len(entries),
	})
}

// HandlePublish handles the strip_publish tool call.
func (h *Handlers) HandlePublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PublishRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	day := orToday(input.Day)

	pipe, err := h.newRunner(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if err := pipe.Publish(ctx, day); err != nil {
		return errorResult(err), nil
	}

	out := map[string]any{"day": day, "published": false}
	strip, err := ranking.GetStrip(h.db, day)
	switch {
	case err == nil:
		out["strip"] = strip
		out["published"] = strip.PushedAt != nil
	case errors.Is(err, errors.ErrNotFound):
		// Empty day: publish was a no-op.
	default:
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleClear handles the strip_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Day == "" {
		return errorResult(errors.NewInvalidRequest("day is required")), nil
	}

	removed, err := ranking.ClearDay(h.db, input.Day)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"day":     input.Day,
		"removed": removed,
	})
}

// errorResult builds an error tool result from a PipeError.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if pipeErr, ok := err.(*errors.PipeError); ok {
		errorObj := map[string]any{
			"code":    pipeErr.Code,
			"message": pipeErr.Message,
			"status":  pipeErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if pipeErr.Code != errors.ErrInternal && pipeErr.Details != nil {
			errorObj["details"] = pipeErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult builds a JSON tool result.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
