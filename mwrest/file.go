package mwrest

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GetFile returns file metadata. The title may carry the "File:" prefix or not.
func (c *Client) GetFile(ctx context.Context, title string) (*FileInfo, error) {
	const op = "GetFile"
	title = strings.TrimPrefix(strings.TrimSpace(title), "File:")
	if title == "" {
		return nil, configError(op, "empty file title")
	}
	r := newRequest(op, "file", http.MethodGet, "/file/"+url.PathEscape(title))
	r.title = "File:" + title
	var out FileInfo
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
