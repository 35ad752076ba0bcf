package mwrest

import (
	"context"
	"net/http"
	"strings"
)

// MaxSearchLimit is the largest limit the search routes accept.
const MaxSearchLimit = 100

// SearchPages runs a full-text search. limit <= 0 uses the server default.
func (c *Client) SearchPages(ctx context.Context, q string, limit int) (*SearchResults, error) {
	return c.search(ctx, "SearchPages", "/search/page", q, limit)
}

// SearchTitles returns pages whose titles start with q, for autocompletion.
func (c *Client) SearchTitles(ctx context.Context, q string, limit int) (*SearchResults, error) {
	return c.search(ctx, "SearchTitles", "/search/title", q, limit)
}

func (c *Client) search(ctx context.Context, op, path, q string, limit int) (*SearchResults, error) {
	if strings.TrimSpace(q) == "" {
		return nil, configError(op, "empty search query")
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	r := newRequest(op, "search", http.MethodGet, path)
	r.query = searchQuery{Q: q, Limit: limit}
	var out SearchResults
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
