package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wiki-saikou/mwrest-go/internal/metrics"
	"github.com/wiki-saikou/mwrest-go/internal/tracing"
)

// ToolSpec defines a tool's metadata for declarative registration.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "mwrest_get_page")
	Name string

	// Title is the human-readable tool title for annotations
	Title string

	// Description is the tool description shown to LLMs
	Description string

	// Category groups tools logically (read, write, transform, search)
	Category string

	ReadOnly    bool
	Destructive bool
	Idempotent  bool
}

var allTools = []ToolSpec{
	{
		Name:     "mwrest_get_page",
		Title:    "Get Page Wikitext",
		Category: "read",
		Description: `Read a wiki page's current wikitext and latest revision id.

USE WHEN: the user wants to see or change a page. Always read before editing:
the returned revision_id is the base_revision_id for mwrest_edit_page.

RETURNS: title, revision_id, timestamp, content_model, wikitext and length
(the full size in bytes). Wikitext over 50,000 bytes is truncated; truncated
is then true and revision_id is omitted, so such pages cannot be edited here.`,
		ReadOnly:   true,
		Idempotent: true,
	},
	{
		Name:     "mwrest_edit_page",
		Title:    "Edit Page",
		Category: "write",
		Description: `Replace a page's wikitext, or create the page when base_revision_id is omitted.

An edit whose base revision is no longer the latest is rejected as an edit
conflict; read the page again, merge, and retry with the new revision id.
Requires an access token.`,
		Destructive: true,
	},
	{
		Name:        "mwrest_wikitext_to_html",
		Title:       "Render Wikitext",
		Category:    "transform",
		Description: `Render wikitext to Parsoid HTML without saving anything. Pass title when the text uses magic words that depend on the page name.`,
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        "mwrest_html_to_wikitext",
		Title:       "Convert HTML to Wikitext",
		Category:    "transform",
		Description: `Convert Parsoid HTML back to wikitext without saving anything.`,
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:     "mwrest_search",
		Title:    "Search Pages",
		Category: "search",
		Description: `Search the wiki. Full-text by default; set titles=true for a title
prefix search (autocomplete). limit is 1-100, default 10.`,
		ReadOnly:   true,
		Idempotent: true,
	},
}

// toolRegistry binds ToolSpecs to the wiki handlers.
type toolRegistry struct {
	tools  *wikiTools
	logger *slog.Logger
}

func (r *toolRegistry) registerAll(server *mcp.Server) {
	for _, spec := range allTools {
		tool := buildTool(spec)
		switch spec.Name {
		case "mwrest_get_page":
			register(r, server, tool, spec, r.tools.GetPage)
		case "mwrest_edit_page":
			register(r, server, tool, spec, r.tools.EditPage)
		case "mwrest_wikitext_to_html":
			register(r, server, tool, spec, r.tools.WikitextToHTML)
		case "mwrest_html_to_wikitext":
			register(r, server, tool, spec, r.tools.HTMLToWikitext)
		case "mwrest_search":
			register(r, server, tool, spec, r.tools.Search)
		default:
			r.logger.Error("Unknown tool, not registered", "tool", spec.Name)
		}
	}
	r.logger.Info("Registered all tools", "count", len(allTools))
}

func buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
		OpenWorldHint:  ptr(true),
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	}
	return &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register wraps a handler with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	r *toolRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (_ *mcp.CallToolResult, out Result, err error) {
		defer r.recoverPanic(spec.Name, &err)

		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
		defer span.End()
		tracing.AddToolAttributes(span, spec.Name, spec.Category)
		span.SetAttributes(attribute.Bool("mcp.tool.readonly", spec.ReadOnly))

		start := time.Now()
		result, err := method(ctx, args)
		duration := time.Since(start).Seconds()

		if err != nil {
			tracing.RecordError(span, err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordToolCall(spec.Name, duration, false)
			r.logger.Warn("Tool failed", "tool", spec.Name, "error", err)
			var zero Result
			return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
		}

		span.SetStatus(codes.Ok, "")
		metrics.RecordToolCall(spec.Name, duration, true)
		r.logger.Debug("Tool executed", "tool", spec.Name, "duration", duration)
		return nil, result, nil
	})
}

// recoverPanic turns a handler panic into a tool error.
func (r *toolRegistry) recoverPanic(toolName string, err *error) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		r.logger.Error("Panic recovered",
			"tool", toolName,
			"panic", rec,
			"stack", string(debug.Stack()))
		*err = fmt.Errorf("%s: internal error", toolName)
	}
}

func ptr[T any](v T) *T {
	return &v
}
