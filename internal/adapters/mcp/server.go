// Package mcpadapter exposes analysis tasks as MCP tools so assistants can
// start analyses and read their results.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

const (
	serverName          = "historical-text-analysis"
	defaultWordPageSize = 50
)

type Tools struct {
	analyses      ports.AnalysisManager
	results       ports.AnalysisResultReader
	defaultUserID string
}

// NewTools binds tool handlers to the use cases. defaultUserID is used when
// a call carries no user_id argument.
func NewTools(analyses ports.AnalysisManager, results ports.AnalysisResultReader, defaultUserID string) *Tools {
	return &Tools{
		analyses:      analyses,
		results:       results,
		defaultUserID: strings.TrimSpace(defaultUserID),
	}
}

func (t *Tools) NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("create_analysis",
		mcp.WithDescription("Start an analysis of historical documents in a project. Returns the PENDING task."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project that owns the documents")),
		mcp.WithString("kind", mcp.Required(),
			mcp.Description("Analysis kind"),
			mcp.Enum("word-frequency", "timeline", "geography", "text-summary", "multidimensional"),
		),
		mcp.WithArray("file_ids", mcp.Description("Document IDs to analyze"), mcp.WithStringItems()),
		mcp.WithString("description", mcp.Description("Free-form note stored with the task")),
		mcp.WithString("user_id", mcp.Description("Acting user; defaults to the server identity")),
	), t.createAnalysis)

	s.AddTool(mcp.NewTool("get_analysis",
		mcp.WithDescription("Fetch an analysis task with its status and result snapshot."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Analysis task ID")),
		mcp.WithString("user_id", mcp.Description("Acting user; defaults to the server identity")),
	), t.getAnalysis)

	s.AddTool(mcp.NewTool("analysis_progress",
		mcp.WithDescription("Report the status and coarse progress percentage of an analysis task."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Analysis task ID")),
		mcp.WithString("user_id", mcp.Description("Acting user; defaults to the server identity")),
	), t.analysisProgress)

	s.AddTool(mcp.NewTool("cancel_analysis",
		mcp.WithDescription("Cancel a PENDING or PROCESSING analysis task."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Analysis task ID")),
		mcp.WithString("user_id", mcp.Description("Acting user; defaults to the server identity")),
	), t.cancelAnalysis)

	s.AddTool(mcp.NewTool("list_word_frequencies",
		mcp.WithDescription("List word frequency records of a completed analysis, most frequent first."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Analysis task ID")),
		mcp.WithString("category", mcp.Description("Only words of this category, e.g. PERSON or PLACE")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return")),
		mcp.WithString("user_id", mcp.Description("Acting user; defaults to the server identity")),
	), t.listWordFrequencies)

	return s
}

func (t *Tools) createAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := t.userID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task, err := t.analyses.Create(ctx, domain.CreateAnalysisInput{
		ProjectID:   projectID,
		UserID:      userID,
		Kind:        domain.AnalysisKind(kind),
		FileIDs:     req.GetStringSlice("file_ids", nil),
		Description: req.GetString("description", ""),
	})
	if err != nil {
		return toolError("create_analysis", err), nil
	}
	return jsonResult(task)
}

func (t *Tools) getAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.withTask(ctx, req, "get_analysis", func(ctx context.Context, taskID, userID string) (any, error) {
		return t.analyses.Get(ctx, taskID, userID)
	})
}

func (t *Tools) analysisProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.withTask(ctx, req, "analysis_progress", func(ctx context.Context, taskID, userID string) (any, error) {
		return t.analyses.Progress(ctx, taskID, userID)
	})
}

func (t *Tools) cancelAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.withTask(ctx, req, "cancel_analysis", func(ctx context.Context, taskID, userID string) (any, error) {
		return t.analyses.Cancel(ctx, taskID, userID)
	})
}

func (t *Tools) listWordFrequencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := domain.WordFrequencyQuery{}
	if raw := strings.TrimSpace(req.GetString("category", "")); raw != "" {
		query.Category = domain.ParseCategory(raw)
	}
	page := domain.PageRequest{
		Size:   req.GetInt("limit", defaultWordPageSize),
		SortBy: "frequency",
		Desc:   true,
	}
	return t.withTask(ctx, req, "list_word_frequencies", func(ctx context.Context, taskID, userID string) (any, error) {
		return t.results.WordFrequencies(ctx, taskID, userID, query, page)
	})
}

func (t *Tools) withTask(
	ctx context.Context,
	req mcp.CallToolRequest,
	tool string,
	call func(ctx context.Context, taskID, userID string) (any, error),
) (*mcp.CallToolResult, error) {
	userID, err := t.userID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := call(ctx, taskID, userID)
	if err != nil {
		return toolError(tool, err), nil
	}
	return jsonResult(out)
}

func (t *Tools) userID(req mcp.CallToolRequest) (string, error) {
	if userID := strings.TrimSpace(req.GetString("user_id", "")); userID != "" {
		return userID, nil
	}
	if t.defaultUserID != "" {
		return t.defaultUserID, nil
	}
	return "", errors.New("user_id is required")
}

// toolError reports caller mistakes verbatim and hides internal failures.
func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrNotFound),
		domain.IsKind(err, domain.ErrForbidden),
		domain.IsKind(err, domain.ErrIllegalState):
		return mcp.NewToolResultError(err.Error())
	default:
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed, try again later", tool))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
