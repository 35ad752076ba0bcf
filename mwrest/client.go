package mwrest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wiki-saikou/mwrest-go/internal/metrics"
	"github.com/wiki-saikou/mwrest-go/internal/tracing"
	"github.com/wiki-saikou/mwrest-go/mwapi"
)

const (
	DefaultUserAgent = "mwrest-go/0.1 (https://github.com/wiki-saikou/mwrest-go)"

	defaultMaxBody = 32 << 20 // 32MiB
)

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.ua = ua
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if c.hc == nil {
			return
		}
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.hc == nil {
			return
		}
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimiter paces outgoing requests. Calls wait for the limiter; a
// call whose context ends while waiting fails with KindTransport.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tracing.TracerFrom(tp)
		}
	}
}

// WithMaxBodySize caps the response body size; larger bodies are Malformed.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithTokenFetcher replaces the Action API edit token fetch.
func WithTokenFetcher(f TokenFetcher) Option {
	return func(c *Client) {
		c.fetchToken = f
	}
}

// Client is a MediaWiki REST API client bound to one Endpoint and one
// AuthContext. It is safe for concurrent use.
type Client struct {
	endpoint Endpoint
	auth     *AuthContext
	hc       *http.Client
	ua       string
	logger   *slog.Logger
	limiter  *rate.Limiter
	tracer   trace.Tracer
	maxBody  int64

	meta       *mwapi.Client
	fetchToken TokenFetcher
}

func New(ep Endpoint, auth *AuthContext, opts ...Option) *Client {
	c, err := NewClient(ep, auth, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewClient builds a client. A nil auth means anonymous access.
func NewClient(ep Endpoint, auth *AuthContext, opts ...Option) (*Client, error) {
	if ep.IsZero() {
		return nil, configError("NewClient", "endpoint is not resolved")
	}
	if auth == nil {
		auth = Anonymous()
	}

	hc := &http.Client{
		Timeout: 30 * time.Second,
	}

	c := &Client{
		endpoint: ep,
		auth:     auth,
		hc:       hc,
		ua:       DefaultUserAgent,
		logger:   slog.Default(),
		tracer:   tracing.Tracer(),
		maxBody:  defaultMaxBody,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.hc == nil {
		c.hc = hc
	}

	meta, err := mwapi.NewClient(ep.ActionAPI(),
		mwapi.WithHTTPClient(c.hc),
		mwapi.WithUserAgent(c.ua),
		mwapi.WithAccessToken(auth.AccessToken()),
		mwapi.WithLogger(c.logger),
	)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Op: "NewClient", Message: "invalid action API endpoint", Err: err}
	}
	c.meta = meta
	if c.fetchToken == nil {
		c.fetchToken = c.fetchEditToken
	}

	return c, nil
}

func (c *Client) Endpoint() Endpoint { return c.endpoint }

func (c *Client) Auth() *AuthContext { return c.auth }

// apiRequest is one REST call before it is signed and serialized.
type apiRequest struct {
	op       string // client method, used in errors, logs and spans
	resource string // metrics label: page, revision, transform, ...
	method   string
	path     string // escaped route below /v{N}
	query    any    // go-querystring struct, or nil
	body     any    // JSON-encoded when non-nil
	accept   string // empty sends no Accept header
	mutating bool
	title    string

	header    http.Header
	editToken string
}

func newRequest(op, resource, method, path string) *apiRequest {
	return &apiRequest{
		op:       op,
		resource: resource,
		method:   method,
		path:     path,
		accept:   "application/json",
		header:   http.Header{},
	}
}

type rawResponse struct {
	status    int
	header    http.Header
	body      []byte
	requestID string
}

// malformed reports a 2xx body that does not have the expected shape.
func (raw *rawResponse) malformed(op string, err error) *Error {
	e := malformedError(op, raw.status, err)
	e.RequestID = raw.requestID
	return e
}

func (raw *rawResponse) missing(op, field string) *Error {
	e := missingField(op, raw.status, field)
	e.RequestID = raw.requestID
	return e
}

func (c *Client) do(ctx context.Context, r *apiRequest) (_ *rawResponse, err error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, r.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	tracing.AddRequestAttributes(span, r.method, r.path, requestID)
	tracing.AddPageAttributes(span, c.endpoint.WikiID(), r.title)

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
			if e, ok := AsError(err); ok && e.RequestID == "" {
				e.RequestID = requestID
			}
			tracing.RecordError(span, err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordRequest(r.resource, r.op, outcome, time.Since(start).Seconds())
	}()

	if err := c.auth.sign(ctx, r, c.fetchToken); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(r.op, err)
		}
		metrics.LimiterWaitSeconds.Observe(time.Since(waitStart).Seconds())
	}

	req, err := c.buildRequest(ctx, r, requestID)
	if err != nil {
		return nil, err
	}

	inFlight := metrics.RequestsInFlight.WithLabelValues(r.resource)
	inFlight.Inc()
	res, err := c.hc.Do(req)
	inFlight.Dec()
	if err != nil {
		return nil, transportError(r.op, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: r.op, Status: res.StatusCode, Err: err}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{Kind: KindMalformed, Op: r.op, Status: res.StatusCode, Message: "response body too large"}
	}

	c.logger.Debug("rest api request",
		"method", r.method,
		"path", r.path,
		"status", res.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if err := ClassifyResponse(r.op, res.StatusCode, res.Header, body); err != nil {
		c.afterFailure(r, err)
		return nil, err
	}

	return &rawResponse{status: res.StatusCode, header: res.Header, body: body, requestID: requestID}, nil
}

func (c *Client) afterFailure(r *apiRequest, err error) {
	switch KindOf(err) {
	case KindUnauthorized:
		if r.mutating {
			c.auth.invalidate(r.editToken)
			c.logger.Warn("mutation rejected, edit token dropped", "op", r.op, "title", r.title)
		}
	case KindRateLimited:
		metrics.RateLimited.Inc()
	}
}

func (c *Client) buildRequest(ctx context.Context, r *apiRequest, requestID string) (*http.Request, error) {
	target := c.endpoint.URL(r.path)
	if r.query != nil {
		v, err := query.Values(r.query)
		if err != nil {
			return nil, &Error{Kind: KindConfig, Op: r.op, Message: "invalid query parameters", Err: err}
		}
		if len(v) > 0 {
			target += "?" + v.Encode()
		}
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, &Error{Kind: KindConfig, Op: r.op, Message: "cannot encode request body", Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, &Error{Kind: KindConfig, Op: r.op, Message: "invalid request URL", Err: err}
		}
		return nil, transportError(r.op, err)
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("X-Request-Id", requestID)
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getJSON runs r and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, r *apiRequest, out any) (*rawResponse, error) {
	raw, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return nil, raw.malformed(r.op, err)
	}
	return raw, nil
}

// getText runs r and returns the body as-is.
func (c *Client) getText(ctx context.Context, r *apiRequest) (string, error) {
	raw, err := c.do(ctx, r)
	if err != nil {
		return "", err
	}
	return string(raw.body), nil
}

// fetchEditToken asks the Action API for a CSRF token using the same
// credentials as the REST calls.
func (c *Client) fetchEditToken(ctx context.Context) (string, error) {
	tok, err := c.meta.FetchToken(ctx, mwapi.TokenCSRF)
	metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		return "", metaError("EditToken", err)
	}
	return tok, nil
}

// metaError classifies an Action API failure with the REST kinds.
func metaError(op string, err error) error {
	if mwapi.IsAuthError(err) {
		e, _ := mwapi.IsMediaWikiApiError(err)
		return &Error{Kind: KindUnauthorized, Op: op, Status: e.HTTPStatus, Code: e.Code, Message: e.Message, Err: err}
	}
	if e, ok := mwapi.IsMediaWikiApiError(err); ok {
		kind := KindMalformed
		switch e.HTTPStatus {
		case http.StatusTooManyRequests:
			kind = KindRateLimited
		case http.StatusNotFound:
			kind = KindNotFound
		}
		return &Error{Kind: kind, Op: op, Status: e.HTTPStatus, Code: e.Code, Message: e.Message, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(op, err)
	}
	return malformedError(op, 0, err)
}
