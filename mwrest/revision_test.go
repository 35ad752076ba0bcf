package mwrest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revisionJSON(id int64) map[string]any {
	return map[string]any{
		"id":            id,
		"size":          114334,
		"minor":         false,
		"timestamp":     "2025-10-01T08:30:00Z",
		"content_model": "wikitext",
		"page":          map[string]any{"id": 29414838, "key": "Rust_(programming_language)", "title": "Rust (programming language)"},
		"license":       map[string]any{"url": "https://creativecommons.org/licenses/by-sa/4.0/", "title": "CC BY-SA 4.0"},
		"user":          map[string]any{"id": 12, "name": "Editor"},
		"comment":       "copyedit",
		"delta":         -14,
	}
}

func TestRevisionReads(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		rev := revisionJSON(1316925953)
		switch r.URL.Path {
		case "/w/rest.php/v1/revision/1316925953":
			rev["source"] = "See [[FreeBSD]]."
			writeJSON(rw, http.StatusOK, rev)
		case "/w/rest.php/v1/revision/1316925953/bare":
			rev["html_url"] = "https://en.wikipedia.org/w/rest.php/v1/revision/1316925953/html"
			writeJSON(rw, http.StatusOK, rev)
		case "/w/rest.php/v1/revision/1316925953/with_html":
			assert.Equal(t, "edit", r.URL.Query().Get("flavor"))
			assert.False(t, r.URL.Query().Has("redirect"))
			rev["html"] = "<title>Rust (programming language)</title>"
			writeJSON(rw, http.StatusOK, rev)
		case "/w/rest.php/v1/revision/1316925953/html":
			assert.Equal(t, "text/html", r.Header.Get("Accept"))
			_, _ = rw.Write([]byte("<title>Rust (programming language)</title>"))
		case "/w/rest.php/v1/revision/1316925953/lint":
			writeJSON(rw, http.StatusOK, []any{})
		default:
			http.NotFound(rw, r)
		}
	})
	c := w.client(t, nil)
	ctx := context.Background()
	const id = 1316925953

	rev, err := c.GetRevision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 114334, rev.Size)
	assert.Contains(t, rev.Source, "[[FreeBSD]]")
	assert.Equal(t, "Rust (programming language)", rev.Page.Title)
	require.NotNil(t, rev.User)
	assert.Equal(t, "Editor", rev.User.Name)

	bare, err := c.GetRevisionBare(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/w/rest.php/v1/revision/1316925953/html", bare.HTMLURL)

	withHTML, err := c.GetRevisionWithHTML(ctx, id, false, FlavorEdit)
	require.NoError(t, err)
	assert.Contains(t, withHTML.HTML, "<title>Rust (programming language)</title>")

	html, err := c.GetRevisionHTML(ctx, id, false, FlavorView)
	require.NoError(t, err)
	assert.Contains(t, html, "<title>Rust (programming language)</title>")

	lints, err := c.GetRevisionLint(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, lints)
}

func TestRevision_InvalidID(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, nil)
	c := w.client(t, nil)
	ctx := context.Background()

	_, err := c.GetRevision(ctx, 0)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = c.CompareRevisions(ctx, 5, -1)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Zero(t, w.restCalls.Load())
}

func TestRevision_Missing(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusNotFound, map[string]any{"errorKey": "rest-nonexistent-revision", "httpCode": 404})
	})
	_, err := w.client(t, nil).GetRevision(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
	e, _ := AsError(err)
	assert.Equal(t, "rest-nonexistent-revision", e.Code)
}

func TestCompareRevisions(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/rest.php/v1/revision/1316608902/compare/1316925953", r.URL.Path)
		writeJSON(rw, http.StatusOK, map[string]any{
			"from": map[string]any{"id": 1316608902, "slot_role": "main", "sections": []any{map[string]any{"level": 2, "heading": "History", "offset": 100}}},
			"to":   map[string]any{"id": 1316925953, "slot_role": "main", "sections": []any{}},
			"diff": []any{
				map[string]any{"type": 0, "lineNumber": 1, "text": "unchanged", "offset": map[string]any{"from": 0, "to": 0}},
				map[string]any{"type": 2, "text": "removed", "offset": map[string]any{"from": 10, "to": nil}},
			},
		})
	})

	diff, err := w.client(t, nil).CompareRevisions(context.Background(), 1316608902, 1316925953)
	require.NoError(t, err)
	assert.Equal(t, int64(1316608902), diff.From.ID)
	require.Len(t, diff.From.Sections, 1)
	assert.Equal(t, "History", diff.From.Sections[0].Heading)
	require.Len(t, diff.Diff, 2)
	assert.Equal(t, 2, diff.Diff[1].Type)
	assert.Nil(t, diff.Diff[1].Offset.To)
}
