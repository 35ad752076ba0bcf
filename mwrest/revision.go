package mwrest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const resourceRevision = "revision"

func revisionRequest(op string, id int64, suffix string) *apiRequest {
	return newRequest(op, resourceRevision, http.MethodGet, "/revision/"+strconv.FormatInt(id, 10)+suffix)
}

func invalidRevision(op string, id int64) error {
	return configError(op, fmt.Sprintf("invalid revision id %d", id))
}

// GetRevision returns revision metadata with its wikitext in Source.
func (c *Client) GetRevision(ctx context.Context, id int64) (*RevisionInfo, error) {
	const op = "GetRevision"
	if id <= 0 {
		return nil, invalidRevision(op, id)
	}
	var out RevisionInfo
	raw, err := c.getJSON(ctx, revisionRequest(op, id, ""), &out)
	if err != nil {
		return nil, err
	}
	if !hasField(raw.body, "source") {
		return nil, raw.missing(op, "source")
	}
	return &out, nil
}

// GetRevisionBare returns revision metadata with HTMLURL set.
func (c *Client) GetRevisionBare(ctx context.Context, id int64) (*RevisionInfo, error) {
	const op = "GetRevisionBare"
	if id <= 0 {
		return nil, invalidRevision(op, id)
	}
	var out RevisionInfo
	raw, err := c.getJSON(ctx, revisionRequest(op, id, "/bare"), &out)
	if err != nil {
		return nil, err
	}
	if out.HTMLURL == "" {
		return nil, raw.missing(op, "html_url")
	}
	return &out, nil
}

func (c *Client) GetRevisionHTML(ctx context.Context, id int64, stash bool, flavor HTMLFlavor) (string, error) {
	const op = "GetRevisionHTML"
	if id <= 0 {
		return "", invalidRevision(op, id)
	}
	r := revisionRequest(op, id, "/html")
	r.query = revisionHTMLQuery{Stash: stash, Flavor: flavor}
	r.accept = "text/html"
	return c.getText(ctx, r)
}

func (c *Client) GetRevisionWithHTML(ctx context.Context, id int64, stash bool, flavor HTMLFlavor) (*RevisionInfo, error) {
	const op = "GetRevisionWithHTML"
	if id <= 0 {
		return nil, invalidRevision(op, id)
	}
	r := revisionRequest(op, id, "/with_html")
	r.query = revisionHTMLQuery{Stash: stash, Flavor: flavor}
	var out RevisionInfo
	raw, err := c.getJSON(ctx, r, &out)
	if err != nil {
		return nil, err
	}
	if out.HTML == "" {
		return nil, raw.missing(op, "html")
	}
	return &out, nil
}

func (c *Client) GetRevisionLint(ctx context.Context, id int64) ([]Lint, error) {
	const op = "GetRevisionLint"
	if id <= 0 {
		return nil, invalidRevision(op, id)
	}
	var out []Lint
	if _, err := c.getJSON(ctx, revisionRequest(op, id, "/lint"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompareRevisions returns the visual diff from one revision to another.
func (c *Client) CompareRevisions(ctx context.Context, from, to int64) (*Diff, error) {
	const op = "CompareRevisions"
	if from <= 0 {
		return nil, invalidRevision(op, from)
	}
	if to <= 0 {
		return nil, invalidRevision(op, to)
	}
	var out Diff
	if _, err := c.getJSON(ctx, revisionRequest(op, from, "/compare/"+strconv.FormatInt(to, 10)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
