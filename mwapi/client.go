package mwapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// maxResponseBody caps metadata responses; token and siteinfo replies are tiny.
const maxResponseBody = 1 << 20

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.ua = ua
		}
	}
}

// WithHTTPClient shares an http.Client, typically the one the REST client uses,
// so both APIs go through the same transport and timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithAccessToken sends "Authorization: Bearer <token>" on every request.
// An empty token leaves requests anonymous.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues read-only Action API queries against one api.php endpoint.
type Client struct {
	endpoint    *url.URL
	hc          *http.Client
	ua          string
	logger      *slog.Logger
	accessToken string
}

func New(endpoint string, opts ...Option) *Client {
	c, err := NewClient(endpoint, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint URL (expect full URL): %q", endpoint)
	}
	if !strings.HasSuffix(u.Path, "api.php") {
		return nil, fmt.Errorf("invalid endpoint path (expect .../api.php): %q", u.Path)
	}

	c := &Client{
		endpoint: u,
		hc:       &http.Client{Timeout: 30 * time.Second},
		ua:       "mwapi-go/0.3",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Endpoint returns the api.php URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Get runs a query. Non-2xx statuses and error envelopes are returned as
// *MediaWikiApiError together with the response.
func (c *Client) Get(ctx context.Context, p any) (*Response, error) {
	np, err := normalizeParams(p)
	if err != nil {
		return nil, err
	}

	u := *c.endpoint
	q := u.Query()
	for k, vs := range np.Values {
		q.Set(k, vs[0])
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("action api request",
		"meta", np.Values.Get("meta"),
		"status", res.StatusCode,
		"duration", time.Since(start))

	resp := &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Raw:        json.RawMessage(body),
	}
	// Best-effort parse the minimal envelope fields.
	_ = json.Unmarshal(body, &resp.Envelope)

	if apiErr := responseApiError(resp); apiErr != nil {
		return resp, apiErr
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return resp, &MediaWikiApiError{
			Code:       "http",
			Message:    fmt.Sprintf("unexpected HTTP status %d", res.StatusCode),
			HTTPStatus: res.StatusCode,
			Response:   resp,
		}
	}
	return resp, nil
}

func responseApiError(r *Response) *MediaWikiApiError {
	if r.Error == nil && len(r.Errors) == 0 {
		return nil
	}
	var errs []MWError
	if r.Error != nil {
		errs = append(errs, *r.Error)
	}
	errs = append(errs, r.Errors...)

	first := errs[0]
	msg := first.Info
	if msg == "" {
		msg = first.Text
	}
	if msg == "" {
		msg = "MediaWiki API error"
	}
	return &MediaWikiApiError{
		Code:       first.Code,
		Message:    msg,
		HTTPStatus: r.StatusCode,
		Errors:     errs,
		Response:   r,
	}
}
