package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wiki-saikou/mwrest-go/mwrest"
)

// maxWikitext bounds the wikitext returned to the model.
const maxWikitext = 50_000

type wikiTools struct {
	client *mwrest.Client
	logger *slog.Logger
}

type GetPageArgs struct {
	Title    string `json:"title" jsonschema:"Page title, e.g. Main Page"`
	Redirect bool   `json:"redirect,omitempty" jsonschema:"Follow a redirect to its target"`
}

type PageResult struct {
	Title        string `json:"title"`
	RevisionID   int64  `json:"revision_id,omitempty"`
	Timestamp    string `json:"timestamp"`
	ContentModel string `json:"content_model"`
	Wikitext     string `json:"wikitext"`
	Length       int    `json:"length"`
	Truncated    bool   `json:"truncated"`
}

func (w *wikiTools) GetPage(ctx context.Context, args GetPageArgs) (PageResult, error) {
	if strings.TrimSpace(args.Title) == "" {
		return PageResult{}, fmt.Errorf("title is required")
	}
	p, err := w.client.GetPage(ctx, mwrest.Page(args.Title), mwrest.PageOptions{Source: true, Redirect: args.Redirect})
	if err != nil {
		return PageResult{}, err
	}
	text, truncated := truncate(p.Source, maxWikitext)
	out := PageResult{
		Title:        p.Title,
		RevisionID:   p.LatestRevisionID(),
		Timestamp:    p.LatestTimestamp().UTC().Format(time.RFC3339),
		ContentModel: p.ContentModel,
		Wikitext:     text,
		Length:       len(p.Source),
		Truncated:    truncated,
	}
	// Without a base revision a cut-off copy cannot be saved over the page.
	if truncated {
		out.RevisionID = 0
	}
	return out, nil
}

type EditPageArgs struct {
	Title          string `json:"title" jsonschema:"Page title"`
	Wikitext       string `json:"wikitext" jsonschema:"Complete new wikitext of the page"`
	Comment        string `json:"comment,omitempty" jsonschema:"Edit summary"`
	BaseRevisionID int64  `json:"base_revision_id,omitempty" jsonschema:"revision_id from mwrest_get_page; omit to create a new page"`
}

type EditResult struct {
	Title      string `json:"title"`
	RevisionID int64  `json:"revision_id"`
	Created    bool   `json:"created"`
}

func (w *wikiTools) EditPage(ctx context.Context, args EditPageArgs) (EditResult, error) {
	if strings.TrimSpace(args.Title) == "" {
		return EditResult{}, fmt.Errorf("title is required")
	}
	h := mwrest.Page(args.Title)

	var (
		p   *mwrest.PageSnapshot
		err error
	)
	if args.BaseRevisionID == 0 {
		p, err = w.client.CreatePage(ctx, h, mwrest.CreateRequest{Wikitext: args.Wikitext, Comment: args.Comment})
	} else {
		p, err = w.client.UpdatePage(ctx, h, mwrest.EditRequest{
			BaseRevisionID: args.BaseRevisionID,
			Wikitext:       args.Wikitext,
			Comment:        args.Comment,
		})
	}
	if e, ok := mwrest.AsError(err); ok && e.Kind == mwrest.KindConflict {
		if args.BaseRevisionID == 0 {
			return EditResult{}, fmt.Errorf("page %q already exists; read it with mwrest_get_page and pass its revision_id (pages too long to read in full cannot be edited here)", args.Title)
		}
		if e.LatestRevisionID > 0 {
			return EditResult{}, fmt.Errorf("edit conflict: %q is now at revision %d, not %d; read it again, merge, and retry", args.Title, e.LatestRevisionID, args.BaseRevisionID)
		}
		return EditResult{}, fmt.Errorf("edit conflict: %q changed since revision %d; read it again, merge, and retry", args.Title, args.BaseRevisionID)
	}
	if err != nil {
		return EditResult{}, err
	}
	w.logger.Info("Page saved via MCP", "title", p.Title, "revision", p.LatestRevisionID())
	return EditResult{Title: p.Title, RevisionID: p.LatestRevisionID(), Created: args.BaseRevisionID == 0}, nil
}

type WikitextToHTMLArgs struct {
	Wikitext string `json:"wikitext" jsonschema:"Wikitext to render"`
	Title    string `json:"title,omitempty" jsonschema:"Page title used as parse context"`
}

type HTMLResult struct {
	HTML string `json:"html"`
}

func (w *wikiTools) WikitextToHTML(ctx context.Context, args WikitextToHTMLArgs) (HTMLResult, error) {
	html, err := w.client.WikitextToHTML(ctx, args.Wikitext, mwrest.TransformOptions{Title: args.Title})
	if err != nil {
		return HTMLResult{}, err
	}
	return HTMLResult{HTML: html}, nil
}

type HTMLToWikitextArgs struct {
	HTML  string `json:"html" jsonschema:"Parsoid HTML to convert"`
	Title string `json:"title,omitempty" jsonschema:"Page title used as parse context"`
}

type WikitextResult struct {
	Wikitext string `json:"wikitext"`
}

func (w *wikiTools) HTMLToWikitext(ctx context.Context, args HTMLToWikitextArgs) (WikitextResult, error) {
	text, err := w.client.HTMLToWikitext(ctx, args.HTML, mwrest.TransformOptions{Title: args.Title})
	if err != nil {
		return WikitextResult{}, err
	}
	return WikitextResult{Wikitext: text}, nil
}

type SearchArgs struct {
	Query  string `json:"query" jsonschema:"Search query text"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum results, 1-100 (default 10)"`
	Titles bool   `json:"titles,omitempty" jsonschema:"Title prefix search instead of full text"`
}

type SearchHit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Excerpt     string `json:"excerpt"`
}

type SearchResult struct {
	Pages []SearchHit `json:"pages"`
}

func (w *wikiTools) Search(ctx context.Context, args SearchArgs) (SearchResult, error) {
	if strings.TrimSpace(args.Query) == "" {
		return SearchResult{}, fmt.Errorf("query is required")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, mwrest.MaxSearchLimit)

	search := w.client.SearchPages
	if args.Titles {
		search = w.client.SearchTitles
	}
	res, err := search(ctx, args.Query, limit)
	if err != nil {
		return SearchResult{}, err
	}
	out := SearchResult{Pages: make([]SearchHit, 0, len(res.Pages))}
	for _, p := range res.Pages {
		hit := SearchHit{Title: p.Title, Excerpt: p.Excerpt}
		if p.Description != nil {
			hit.Description = *p.Description
		}
		out.Pages = append(out.Pages, hit)
	}
	return out, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n], true
}
