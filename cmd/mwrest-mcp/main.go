// Command mwrest-mcp exposes a MediaWiki wiki to MCP clients over stdio,
// using the REST API for reads, edits and wikitext/HTML conversion.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wiki-saikou/mwrest-go/internal/tracing"
	"github.com/wiki-saikou/mwrest-go/mwrest"
)

const (
	ServerName    = "mwrest-mcp"
	ServerVersion = "0.1.0"
)

const instructions = `mwrest-mcp reads and edits one MediaWiki wiki through its REST API.

Available tools:
- mwrest_get_page: page wikitext and latest revision id
- mwrest_edit_page: replace or create a page (requires MWREST_ACCESS_TOKEN)
- mwrest_wikitext_to_html: render wikitext without saving
- mwrest_html_to_wikitext: convert Parsoid HTML to wikitext
- mwrest_search: full-text or title search

Edits are optimistic: pass the revision_id you read as base_revision_id.
Truncated pages come back without a revision_id and cannot be edited.
On an edit conflict, read the page again and retry.

Configure via environment variables:
- MWREST_ENDPOINT: rest.php URL (e.g., https://wiki.example.com/w/rest.php)
- MWREST_WIKI: Wikimedia wiki id instead of an endpoint (e.g., enwiki)
- MWREST_ACCESS_TOKEN: OAuth 2 access token, needed for editing`

func main() {
	// Configure logging to stderr (stdout is used for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Tracing shutdown", "error", err)
		}
	}()

	client, err := newClientFromEnv(logger)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	server := newServer(client, logger)
	logger.Info("Starting MCP server", "name", ServerName, "version", ServerVersion, "wiki", client.Endpoint().WikiID())
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func newServer(client *mwrest.Client, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: instructions,
	})
	reg := &toolRegistry{
		tools:  &wikiTools{client: client, logger: logger},
		logger: logger,
	}
	reg.registerAll(server)
	return server
}

func newClientFromEnv(logger *slog.Logger) (*mwrest.Client, error) {
	var (
		ep  mwrest.Endpoint
		err error
	)
	switch endpoint, wiki := strings.TrimSpace(os.Getenv("MWREST_ENDPOINT")), strings.TrimSpace(os.Getenv("MWREST_WIKI")); {
	case endpoint != "":
		ep, err = mwrest.ParseEndpoint(endpoint)
	case wiki != "":
		ep, err = mwrest.ResolveWikiID(wiki)
	default:
		return nil, errors.New("missing env: MWREST_ENDPOINT or MWREST_WIKI")
	}
	if err != nil {
		return nil, err
	}

	auth := mwrest.Anonymous(mwrest.WithAuthLogger(logger))
	if tok := strings.TrimSpace(os.Getenv("MWREST_ACCESS_TOKEN")); tok != "" {
		auth = mwrest.WithAccessToken(tok, mwrest.WithAuthLogger(logger))
	}
	return mwrest.NewClient(ep, auth,
		mwrest.WithUserAgent(os.Getenv("MWREST_USER_AGENT")),
		mwrest.WithLogger(logger),
	)
}
