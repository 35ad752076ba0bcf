package mwrest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// testWiki serves rest.php through a per-test handler and answers the
// api.php token and siteinfo queries itself.
type testWiki struct {
	srv *httptest.Server

	restCalls     atomic.Int32
	tokenCalls    atomic.Int32
	siteinfoCalls atomic.Int32

	generator       string
	tokenDelay      time.Duration
	anonymousTokens bool
}

func newTestWiki(t *testing.T, rest http.HandlerFunc) *testWiki {
	t.Helper()
	w := &testWiki{generator: "MediaWiki 1.43.0-wmf.12"}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/w/api.php":
			w.serveActionAPI(rw, r)
		case strings.HasPrefix(r.URL.Path, "/w/rest.php/"):
			w.restCalls.Add(1)
			if rest == nil {
				http.NotFound(rw, r)
				return
			}
			rest(rw, r)
		default:
			http.NotFound(rw, r)
		}
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *testWiki) serveActionAPI(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("meta") {
	case "tokens":
		n := w.tokenCalls.Add(1)
		if w.tokenDelay > 0 {
			time.Sleep(w.tokenDelay)
		}
		tok := fmt.Sprintf("token-%d+\\", n)
		if w.anonymousTokens {
			tok = "+\\"
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"query": map[string]any{
				"tokens": map[string]any{"csrftoken": tok},
			},
		})
	case "siteinfo":
		w.siteinfoCalls.Add(1)
		writeJSON(rw, http.StatusOK, map[string]any{
			"query": map[string]any{
				"general": map[string]any{
					"sitename":  "Test Wiki",
					"generator": w.generator,
					"wikiid":    "testwiki",
				},
			},
		})
	default:
		writeJSON(rw, http.StatusBadRequest, map[string]any{
			"errors": []any{map[string]any{"code": "badvalue", "text": "unexpected query"}},
		})
	}
}

func (w *testWiki) endpoint(t *testing.T) Endpoint {
	t.Helper()
	ep, err := ParseEndpoint(w.srv.URL + "/w/rest.php")
	require.NoError(t, err)
	return ep
}

func (w *testWiki) client(t *testing.T, auth *AuthContext, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(w.endpoint(t), auth, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func pageJSON(id int64, title string, rev int64) map[string]any {
	return map[string]any{
		"id":    id,
		"key":   strings.ReplaceAll(title, " ", "_"),
		"title": title,
		"latest": map[string]any{
			"id":        rev,
			"timestamp": "2024-05-01T10:00:00Z",
		},
		"content_model": "wikitext",
		"license": map[string]any{
			"url":   "https://creativecommons.org/licenses/by-sa/4.0/",
			"title": "Creative Commons Attribution-Share Alike 4.0",
		},
	}
}
