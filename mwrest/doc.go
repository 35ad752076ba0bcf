// Package mwrest is a client for the MediaWiki REST API (rest.php).
//
// A Client is built from an Endpoint, which names the wiki, and an
// AuthContext, which carries an optional OAuth bearer token and the cached
// edit token used by mutating calls:
//
//	ep, _ := mwrest.WikimediaEndpoint(mwrest.Wikipedia, "en")
//	c := mwrest.New(ep, mwrest.WithAccessToken(os.Getenv("MW_ACCESS_TOKEN")))
//
//	page, err := c.GetPage(ctx, mwrest.Page("Go (programming language)"), mwrest.PageOptions{Source: true})
//
// Every failure is returned as an *Error whose Kind says what went wrong.
// Use errors.Is with the sentinel values (ErrNotFound, ErrConflict, ...) or
// AsError to inspect the details. The client never retries on its own; a
// RateLimited error carries the server's Retry-After hint for the caller.
package mwrest
