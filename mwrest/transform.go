package mwrest

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wiki-saikou/mwrest-go/internal/metrics"
)

const resourceTransform = "transform"

// TransformOptions gives a transform a page context. Title matters for
// relative links, {{PAGENAME}} and similar.
type TransformOptions struct {
	Title string
}

type wikitextBody struct {
	Wikitext string `json:"wikitext"`
}

type htmlBody struct {
	HTML string `json:"html"`
}

func transformRequest(op, route string, opts TransformOptions) *apiRequest {
	path := "/transform/" + route
	if opts.Title != "" {
		path += "/" + url.PathEscape(opts.Title)
	}
	r := newRequest(op, resourceTransform, http.MethodPost, path)
	r.title = opts.Title
	return r
}

// WikitextToHTML renders wikitext with the wiki's Parsoid.
func (c *Client) WikitextToHTML(ctx context.Context, wikitext string, opts TransformOptions) (string, error) {
	const op = "WikitextToHTML"
	r := transformRequest(op, "wikitext/to/html", opts)
	r.body = wikitextBody{Wikitext: wikitext}
	r.accept = "text/html"
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(wikitext)))
	return c.getText(ctx, r)
}

// HTMLToWikitext serializes Parsoid HTML back to wikitext.
func (c *Client) HTMLToWikitext(ctx context.Context, html string, opts TransformOptions) (string, error) {
	const op = "HTMLToWikitext"
	r := transformRequest(op, "html/to/wikitext", opts)
	r.body = htmlBody{HTML: html}
	r.accept = "text/plain"
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(html)))
	return c.getText(ctx, r)
}

// WikitextToLint returns Parsoid lint findings for wikitext.
func (c *Client) WikitextToLint(ctx context.Context, wikitext string, opts TransformOptions) ([]Lint, error) {
	const op = "WikitextToLint"
	r := transformRequest(op, "wikitext/to/lint", opts)
	r.body = wikitextBody{Wikitext: wikitext}
	// the lint route rejects Accept: application/json
	r.accept = ""
	var out []Lint
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WikiLink is an internal link found in Parsoid HTML.
type WikiLink struct {
	// Target is the linked title with underscores as spaces.
	Target   string
	Fragment string
	Text     string
	Href     string
	// Missing is set for red links.
	Missing bool
}

// ExtractWikiLinks returns the internal links of Parsoid HTML in document order.
func ExtractWikiLinks(html string) ([]WikiLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Op: "ExtractWikiLinks", Message: "unparseable HTML", Err: err}
	}

	var links []WikiLink
	doc.Find(`a[rel~="mw:WikiLink"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		target, fragment := linkTarget(href)
		links = append(links, WikiLink{
			Target:   target,
			Fragment: fragment,
			Text:     s.Text(),
			Href:     href,
			Missing:  s.HasClass("new"),
		})
	})
	return links, nil
}

// linkTarget turns "./Foo_bar#Sec?action=edit" into ("Foo bar", "Sec").
func linkTarget(href string) (string, string) {
	href = strings.TrimPrefix(href, "./")
	href, fragment, _ := strings.Cut(href, "#")
	href, _, _ = strings.Cut(href, "?")
	if t, err := url.PathUnescape(href); err == nil {
		href = t
	}
	return strings.ReplaceAll(href, "_", " "), fragment
}
