package mwrest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationWithoutAccessToken_FailsBeforeNetwork(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected REST call: %s %s", r.Method, r.URL.Path)
	})
	c := w.client(t, Anonymous())
	ctx := context.Background()

	_, err := c.UpdatePage(ctx, Page("Sandbox"), EditRequest{BaseRevisionID: 10, Wikitext: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	e, _ := AsError(err)
	assert.Equal(t, "UpdatePage", e.Op)

	_, err = c.CreatePage(ctx, Page("Sandbox"), CreateRequest{Wikitext: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Zero(t, w.restCalls.Load())
	assert.Zero(t, w.tokenCalls.Load())
}

func TestSign_ReadsCarryBearerOnly(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	r := newRequest("GetPage", resourcePage, http.MethodGet, "/page/Foo")
	err := a.sign(context.Background(), r, func(context.Context) (string, error) {
		t.Fatal("reads must not fetch an edit token")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer ACCESS", r.header.Get("Authorization"))
	assert.Empty(t, r.editToken)

	anon := Anonymous()
	r = newRequest("GetPage", resourcePage, http.MethodGet, "/page/Foo")
	require.NoError(t, anon.sign(context.Background(), r, nil))
	assert.Empty(t, r.header.Get("Authorization"))
}

func TestSign_MutationGetsEditTokenInBody(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	r := newRequest("UpdatePage", resourcePage, http.MethodPut, "/page/Foo")
	r.mutating = true
	body := &pageWriteBody{Source: "x"}
	r.body = body

	err := a.sign(context.Background(), r, func(context.Context) (string, error) {
		return "CSRF+\\", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "CSRF+\\", body.Token)
	assert.Equal(t, "CSRF+\\", r.editToken)
	assert.Equal(t, "Bearer ACCESS", r.header.Get("Authorization"))
}

func TestEditToken_SingleFlight(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	var fetches atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		fetches.Add(1)
		<-release
		return "tok", nil
	}

	const n = 16
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = a.EditToken(context.Background(), fetch)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok", tokens[i])
	}
	assert.Equal(t, int32(1), fetches.Load())
}

func TestEditToken_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	a := WithAccessToken("ACCESS", WithEditTokenTTL(10*time.Minute), WithClock(clock))
	var fetches atomic.Int32
	fetch := func(context.Context) (string, error) {
		fetches.Add(1)
		return "tok", nil
	}

	ctx := context.Background()
	_, err := a.EditToken(ctx, fetch)
	require.NoError(t, err)
	advance(9 * time.Minute)
	_, err = a.EditToken(ctx, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load(), "token still fresh")

	advance(time.Minute)
	_, err = a.EditToken(ctx, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load(), "token expired at TTL")
}

func TestEditToken_FetchErrorIsNotCached(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	var fetches atomic.Int32
	fetch := func(context.Context) (string, error) {
		if fetches.Add(1) == 1 {
			return "", &Error{Kind: KindTransport, Op: "EditToken", Err: errors.New("connection reset")}
		}
		return "tok", nil
	}

	_, err := a.EditToken(context.Background(), fetch)
	assert.ErrorIs(t, err, ErrTransport)

	tok, err := a.EditToken(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestEditToken_CallerCancellation(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.EditToken(ctx, func(context.Context) (string, error) {
			<-release
			return "tok", nil
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("EditToken did not return after cancellation")
	}
}

func TestInvalidate_OnlyDropsCurrentToken(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	var n atomic.Int32
	fetch := func(context.Context) (string, error) {
		if n.Add(1) == 1 {
			return "old", nil
		}
		return "new", nil
	}
	ctx := context.Background()

	tok, _ := a.EditToken(ctx, fetch)
	assert.Equal(t, "old", tok)

	a.invalidate("stale")
	tok, _ = a.EditToken(ctx, fetch)
	assert.Equal(t, "old", tok, "a different token must not be dropped")

	a.invalidate("old")
	tok, _ = a.EditToken(ctx, fetch)
	assert.Equal(t, "new", tok)

	a.InvalidateEditToken()
	tok, _ = a.EditToken(ctx, fetch)
	assert.Equal(t, "new", tok)
	assert.Equal(t, int32(3), n.Load())
}

func TestInvalidate_DuringRefresh(t *testing.T) {
	t.Parallel()

	a := WithAccessToken("ACCESS")
	var fetches atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if fetches.Add(1) == 1 {
			close(started)
			<-release
			return "stale", nil
		}
		return "fresh", nil
	}

	done := make(chan string)
	go func() {
		tok, err := a.EditToken(context.Background(), fetch)
		assert.NoError(t, err)
		done <- tok
	}()
	<-started
	a.InvalidateEditToken()
	close(release)
	assert.Equal(t, "stale", <-done)

	_, ok := a.cached()
	assert.False(t, ok)

	tok, err := a.EditToken(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestConcurrentMutations_FetchTokenOnce(t *testing.T) {
	t.Parallel()

	var puts atomic.Int32
	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ACCESS" {
			t.Errorf("Authorization = %q", got)
		}
		body := decodeBody(t, r)
		if body["token"] != "token-1+\\" {
			t.Errorf("token = %v, want token-1+\\", body["token"])
		}
		n := puts.Add(1)
		writeJSON(rw, http.StatusOK, pageJSON(7, "Sandbox", 100+int64(n)))
	})
	w.tokenDelay = 50 * time.Millisecond
	c := w.client(t, WithAccessToken("ACCESS"))

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.UpdatePage(context.Background(), Page("Sandbox"), EditRequest{BaseRevisionID: 100, Wikitext: "x"})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), w.tokenCalls.Load())
	assert.Equal(t, int32(n), puts.Load())
}

func TestRejectedMutation_DropsEditToken(t *testing.T) {
	t.Parallel()

	var puts atomic.Int32
	w := newTestWiki(t, func(rw http.ResponseWriter, r *http.Request) {
		if puts.Add(1) == 1 {
			writeJSON(rw, http.StatusForbidden, map[string]any{
				"errorKey": "rest-badtoken",
				"message":  "Invalid CSRF token",
			})
			return
		}
		writeJSON(rw, http.StatusOK, pageJSON(7, "Sandbox", 101))
	})
	c := w.client(t, WithAccessToken("ACCESS"))
	ctx := context.Background()
	req := EditRequest{BaseRevisionID: 100, Wikitext: "x"}

	_, err := c.UpdatePage(ctx, Page("Sandbox"), req)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), puts.Load(), "no automatic retry")

	_, err = c.UpdatePage(ctx, Page("Sandbox"), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), w.tokenCalls.Load(), "second call refetched the token")
}

func TestTokenFetchFailure_AbortsMutation(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, nil)
	c := w.client(t, WithAccessToken("ACCESS"), WithTokenFetcher(func(ctx context.Context) (string, error) {
		return "", metaError("EditToken", errors.New("missing csrf token"))
	}))
	_, err := c.CreatePage(context.Background(), Page("X"), CreateRequest{Wikitext: "x"})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, w.restCalls.Load())
}

func TestAnonymousEditToken_IsUnauthorized(t *testing.T) {
	t.Parallel()

	w := newTestWiki(t, nil)
	w.anonymousTokens = true
	c := w.client(t, WithAccessToken("EXPIRED"))

	_, err := c.UpdatePage(context.Background(), Page("X"), EditRequest{BaseRevisionID: 1, Wikitext: "x"})
	require.ErrorIs(t, err, ErrUnauthorized)
	e, _ := AsError(err)
	assert.Equal(t, "UpdatePage", e.Op)
	assert.Equal(t, "notloggedin", e.Code)
	assert.Equal(t, int32(1), w.tokenCalls.Load())
	assert.Zero(t, w.restCalls.Load())
}
