package mwrest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultEditTokenTTL = 30 * time.Minute

// TokenFetcher fetches a fresh edit token from the wiki.
type TokenFetcher func(ctx context.Context) (string, error)

type AuthOption func(*AuthContext)

// WithEditTokenTTL sets how long a fetched edit token is reused.
func WithEditTokenTTL(d time.Duration) AuthOption {
	return func(a *AuthContext) {
		if d > 0 {
			a.ttl = d
		}
	}
}

// WithClock replaces time.Now for edit token expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(a *AuthContext) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAuthLogger sets the logger for token refresh events.
func WithAuthLogger(l *slog.Logger) AuthOption {
	return func(a *AuthContext) {
		if l != nil {
			a.logger = l
		}
	}
}

// AuthContext holds the OAuth bearer token and the cached edit token of one
// client. It is safe for concurrent use; only the edit token ever changes.
type AuthContext struct {
	accessToken string
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	editToken string
	expiry    time.Time
	gen       uint64 // bumped by InvalidateEditToken

	refresh singleflight.Group
}

// Anonymous returns an AuthContext without credentials. Reads work;
// mutations fail with KindUnauthorized.
func Anonymous(opts ...AuthOption) *AuthContext {
	return WithAccessToken("", opts...)
}

// WithAccessToken returns an AuthContext carrying an OAuth 2 bearer token.
// The token is not validated until the wiki sees it.
func WithAccessToken(token string, opts ...AuthOption) *AuthContext {
	a := &AuthContext{
		accessToken: token,
		ttl:         defaultEditTokenTTL,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *AuthContext) AccessToken() string {
	return a.accessToken
}

// EditToken returns the cached edit token, or fetches one when there is
// none or it has expired. Concurrent callers share a single fetch.
func (a *AuthContext) EditToken(ctx context.Context, fetch TokenFetcher) (string, error) {
	if a.accessToken == "" {
		return "", &Error{Kind: KindUnauthorized, Op: "EditToken", Message: "mutations require an access token"}
	}
	if tok, ok := a.cached(); ok {
		return tok, nil
	}

	ch := a.refresh.DoChan("edit", func() (any, error) {
		if tok, ok := a.cached(); ok {
			return tok, nil
		}
		a.mu.Lock()
		gen := a.gen
		a.mu.Unlock()

		// the fetch outlives any single caller's cancellation
		tok, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		a.mu.Lock()
		stored := a.gen == gen
		if stored {
			a.editToken = tok
			a.expiry = a.now().Add(a.ttl)
		}
		a.mu.Unlock()
		a.logger.Debug("edit token refreshed", "ttl", a.ttl, "cached", stored)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", transportError("EditToken", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (a *AuthContext) cached() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.editToken == "" || !a.now().Before(a.expiry) {
		return "", false
	}
	return a.editToken, true
}

// InvalidateEditToken drops the cached edit token; the next mutation fetches
// a new one. A refresh already in flight is not cached.
func (a *AuthContext) InvalidateEditToken() {
	a.mu.Lock()
	a.gen++
	a.editToken = ""
	a.expiry = time.Time{}
	a.mu.Unlock()
}

// invalidate drops tok only if it is still the cached token, so a rejection
// of an old token does not discard a newer one.
func (a *AuthContext) invalidate(tok string) {
	if tok == "" {
		return
	}
	a.mu.Lock()
	if a.editToken == tok {
		a.editToken = ""
		a.expiry = time.Time{}
	}
	a.mu.Unlock()
}

// sign attaches credentials to r. Mutating requests also get an edit token;
// without an access token they fail before any network call.
func (a *AuthContext) sign(ctx context.Context, r *apiRequest, fetch TokenFetcher) error {
	if r.header == nil {
		r.header = http.Header{}
	}
	if r.mutating {
		tok, err := a.EditToken(ctx, fetch)
		if err != nil {
			if e, ok := AsError(err); ok {
				// waiters share the refresh error, so report a copy
				cp := *e
				cp.Op = r.op
				return &cp
			}
			return err
		}
		r.editToken = tok
		if b, ok := r.body.(tokenCarrier); ok {
			b.setToken(tok)
		}
	}
	if a.accessToken != "" {
		r.header.Set("Authorization", "Bearer "+a.accessToken)
	}
	return nil
}

// tokenCarrier is implemented by request bodies of mutating routes.
type tokenCarrier interface {
	setToken(string)
}
