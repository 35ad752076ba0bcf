package mwrest

import (
	"context"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/wiki-saikou/mwrest-go/internal/metrics"
)

const resourcePage = "page"

// pageWriteBody is the JSON body of POST /page and PUT /page/{title}.
type pageWriteBody struct {
	Source       string      `json:"source"`
	Comment      string      `json:"comment"`
	ContentModel string      `json:"content_model,omitempty"`
	Title        string      `json:"title,omitempty"`
	Latest       *latestBase `json:"latest,omitempty"`
	Token        string      `json:"token,omitempty"`
}

type latestBase struct {
	ID int64 `json:"id"`
}

func (b *pageWriteBody) setToken(tok string) { b.Token = tok }

func pageRequest(op, method string, h PageHandle, suffix string) *apiRequest {
	r := newRequest(op, resourcePage, method, "/page/"+h.path()+suffix)
	r.title = h.Title
	return r
}

func invalidHandle(op string) error {
	return configError(op, "empty page title")
}

// GetPage reads a page. With opts.Source the wikitext is included; without
// it the bare route is used and HTMLURL points at the rendered page.
func (c *Client) GetPage(ctx context.Context, h PageHandle, opts PageOptions) (*PageSnapshot, error) {
	const op = "GetPage"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	suffix, field := "/bare", "html_url"
	if opts.Source {
		suffix, field = "", "source"
	}
	r := pageRequest(op, http.MethodGet, h, suffix)
	r.query = redirectQuery{Redirect: opts.Redirect}

	var out PageSnapshot
	raw, err := c.getJSON(ctx, r, &out)
	if err != nil {
		return nil, err
	}
	if (opts.Source && !hasField(raw.body, field)) || (!opts.Source && out.HTMLURL == "") {
		return nil, raw.missing(op, field)
	}
	return &out, nil
}

// GetPageHTML returns the page's Parsoid HTML.
func (c *Client) GetPageHTML(ctx context.Context, h PageHandle, opts HTMLOptions) (string, error) {
	const op = "GetPageHTML"
	if !h.valid() {
		return "", invalidHandle(op)
	}
	r := pageRequest(op, http.MethodGet, h, "/html")
	r.query = opts
	r.accept = "text/html"
	return c.getText(ctx, r)
}

// GetPageWithHTML returns page metadata with the HTML inlined.
func (c *Client) GetPageWithHTML(ctx context.Context, h PageHandle, opts HTMLOptions) (*PageSnapshot, error) {
	const op = "GetPageWithHTML"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	r := pageRequest(op, http.MethodGet, h, "/with_html")
	r.query = opts

	var out PageSnapshot
	raw, err := c.getJSON(ctx, r, &out)
	if err != nil {
		return nil, err
	}
	if out.HTML == "" {
		return nil, raw.missing(op, "html")
	}
	return &out, nil
}

func (c *Client) GetPageLanguageLinks(ctx context.Context, h PageHandle) ([]LanguageLink, error) {
	const op = "GetPageLanguageLinks"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	var out []LanguageLink
	if _, err := c.getJSON(ctx, pageRequest(op, http.MethodGet, h, "/links/language"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPageMedia lists the files used on the page.
func (c *Client) GetPageMedia(ctx context.Context, h PageHandle) (*MediaResult, error) {
	const op = "GetPageMedia"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	var out MediaResult
	if _, err := c.getJSON(ctx, pageRequest(op, http.MethodGet, h, "/links/media"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPageLint(ctx context.Context, h PageHandle, redirect bool) ([]Lint, error) {
	const op = "GetPageLint"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	r := pageRequest(op, http.MethodGet, h, "/lint")
	r.query = redirectQuery{Redirect: redirect}
	var out []Lint
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPageHistory returns up to 20 revisions, newest first.
func (c *Client) GetPageHistory(ctx context.Context, h PageHandle, opts HistoryOptions) (*History, error) {
	const op = "GetPageHistory"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	r := pageRequest(op, http.MethodGet, h, "/history")
	r.query = opts
	var out History
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPageHistoryCounts(ctx context.Context, h PageHandle, filter HistoryCountFilter, opts HistoryCountOptions) (*HistoryCounts, error) {
	const op = "GetPageHistoryCounts"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	if !filter.valid() {
		return nil, configError(op, "unknown history count filter "+string(filter))
	}
	r := pageRequest(op, http.MethodGet, h, "/history/counts/"+string(filter))
	r.query = opts
	var out HistoryCounts
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPages reads several pages with at most limit requests in flight
// (limit <= 0 means 4). Results are in handle order; the first failure
// cancels the rest and is returned.
func (c *Client) GetPages(ctx context.Context, handles []PageHandle, opts PageOptions, limit int) ([]*PageSnapshot, error) {
	if limit <= 0 {
		limit = 4
	}
	out := make([]*PageSnapshot, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, h := range handles {
		g.Go(func() error {
			p, err := c.GetPage(gctx, h, opts)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePage creates h with the given wikitext. An existing page is a
// KindConflict.
func (c *Client) CreatePage(ctx context.Context, h PageHandle, req CreateRequest) (*PageSnapshot, error) {
	const op = "CreatePage"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	r := newRequest(op, resourcePage, http.MethodPost, "/page")
	r.title = h.Title
	r.mutating = true
	r.body = &pageWriteBody{
		Source:       req.Wikitext,
		Comment:      req.Comment,
		ContentModel: req.ContentModel,
		Title:        h.Title,
	}
	return c.writePage(ctx, r, "create", len(req.Wikitext))
}

// UpdatePage replaces h's content. req.BaseRevisionID must be the revision
// the new text is based on; if the page has changed since, the result is a
// KindConflict carrying the current revision id when the wiki reports it.
// The caller decides whether to merge and retry.
func (c *Client) UpdatePage(ctx context.Context, h PageHandle, req EditRequest) (*PageSnapshot, error) {
	const op = "UpdatePage"
	if !h.valid() {
		return nil, invalidHandle(op)
	}
	if req.BaseRevisionID <= 0 {
		return nil, configError(op, "base revision id is required")
	}
	r := pageRequest(op, http.MethodPut, h, "")
	r.mutating = true
	r.body = &pageWriteBody{
		Source:       req.Wikitext,
		Comment:      req.Comment,
		ContentModel: req.ContentModel,
		Latest:       &latestBase{ID: req.BaseRevisionID},
	}
	return c.writePage(ctx, r, "update", len(req.Wikitext))
}

func (c *Client) writePage(ctx context.Context, r *apiRequest, kind string, size int) (*PageSnapshot, error) {
	var out PageSnapshot
	_, err := c.getJSON(ctx, r, &out)
	metrics.RecordEdit(kind, err == nil, size)
	if err != nil {
		return nil, err
	}
	c.logger.Info("page saved", "op", r.op, "title", out.Title, "revision", out.Latest.ID)
	return &out, nil
}

// hasField reports whether the top-level JSON object has key. An empty
// page legitimately has source "".
func hasField(body []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	v, ok := m[key]
	return ok && strings.TrimSpace(string(v)) != "null"
}
