// Package eventstream consumes the Wikimedia EventStreams recent-change feed,
// the push counterpart of polling page history over the REST API.
package eventstream

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tmaxmax/go-sse"

	"github.com/wiki-saikou/mwrest-go/internal/metrics"
	"github.com/wiki-saikou/mwrest-go/mwrest"
)

const DefaultStreamURL = "https://stream.wikimedia.org/v2/stream/recentchange"

type Option func(*Client)

func WithStreamURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.streamURL = u
		}
	}
}

// WithHTTPClient sets the client used for the long-lived stream request.
// It should not have a Timeout, which would cut the stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.ua = ua
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

// WithMaxEventSize caps a single event; larger events end the stream with an error.
func WithMaxEventSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxEventSize = n
		}
	}
}

type Client struct {
	streamURL    string
	hc           *http.Client
	ua           string
	logger       *slog.Logger
	maxEventSize int
}

func New(opts ...Option) *Client {
	c := &Client{
		streamURL:    DefaultStreamURL,
		hc:           &http.Client{},
		ua:           mwrest.DefaultUserAgent,
		logger:       slog.Default(),
		maxEventSize: 1 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	// Wiki is a database name such as "enwiki"; see mwrest.Endpoint.WikiID.
	Wiki string
	// Types limits change types: edit, new, log, categorize.
	Types []string
	// Since replays events from this time, if the server still has them.
	Since time.Time
	// LastEventID resumes after a previously seen event and wins over Since.
	LastEventID string
}

func (f Filter) match(rc *RecentChange) bool {
	if f.Wiki != "" && rc.Wiki != f.Wiki {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, rc.Type) {
		return false
	}
	return true
}

type Meta struct {
	URI       string    `json:"uri"`
	RequestID string    `json:"request_id"`
	ID        string    `json:"id"`
	DT        time.Time `json:"dt"`
	Domain    string    `json:"domain"`
	Stream    string    `json:"stream"`
}

type OldNew struct {
	Old *int64 `json:"old"`
	New *int64 `json:"new"`
}

// RecentChange is one event of the recentchange stream.
type RecentChange struct {
	Meta       Meta    `json:"meta"`
	ID         int64   `json:"id"`
	Type       string  `json:"type"`
	Namespace  int     `json:"namespace"`
	Title      string  `json:"title"`
	TitleURL   string  `json:"title_url"`
	Comment    string  `json:"comment"`
	Timestamp  int64   `json:"timestamp"`
	User       string  `json:"user"`
	Bot        bool    `json:"bot"`
	Minor      bool    `json:"minor"`
	Patrolled  bool    `json:"patrolled"`
	Length     *OldNew `json:"length,omitempty"`
	Revision   *OldNew `json:"revision,omitempty"`
	ServerURL  string  `json:"server_url"`
	ServerName string  `json:"server_name"`
	Wiki       string  `json:"wiki"`
	LogType    string  `json:"log_type,omitempty"`
	LogAction  string  `json:"log_action,omitempty"`

	// EventID is the SSE id; pass it as Filter.LastEventID to resume.
	EventID string `json:"-"`
}

// Page returns a handle usable with the REST client.
func (rc *RecentChange) Page() mwrest.PageHandle {
	return mwrest.Page(rc.Title)
}

// NewRevisionID returns the revision created by an edit, or 0.
func (rc *RecentChange) NewRevisionID() int64 {
	if rc.Revision == nil || rc.Revision.New == nil {
		return 0
	}
	return *rc.Revision.New
}

// RecentChanges connects to the stream and yields matching events until ctx
// ends, the server closes the stream, or an error occurs. Connection
// failures are classified as *mwrest.Error. Undecodable events are skipped.
func (c *Client) RecentChanges(ctx context.Context, f Filter) iter.Seq2[RecentChange, error] {
	const op = "RecentChanges"
	return func(yield func(RecentChange, error) bool) {
		body, err := c.connect(ctx, f)
		if err != nil {
			yield(RecentChange{}, err)
			return
		}
		defer body.Close()

		for ev, err := range sse.Read(body, &sse.ReadConfig{MaxEventSize: c.maxEventSize}) {
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(RecentChange{}, &mwrest.Error{Kind: mwrest.KindTransport, Op: op, Err: err})
				return
			}
			if ev.Type != "" && ev.Type != "message" {
				continue
			}

			var rc RecentChange
			if err := json.Unmarshal([]byte(ev.Data), &rc); err != nil {
				c.logger.Warn("skipping undecodable event", "id", ev.LastEventID, "err", err)
				continue
			}
			if rc.Meta.Domain == "canary" || !f.match(&rc) {
				continue
			}
			rc.EventID = ev.LastEventID
			metrics.RecordStreamEvent(rc.Wiki, rc.Type)

			if !yield(rc, nil) {
				return
			}
		}
	}
}

func (c *Client) connect(ctx context.Context, f Filter) (io.ReadCloser, error) {
	const op = "RecentChanges"

	u, err := url.Parse(c.streamURL)
	if err != nil {
		return nil, &mwrest.Error{Kind: mwrest.KindConfig, Op: op, Message: "invalid stream URL", Err: err}
	}
	if f.LastEventID == "" && !f.Since.IsZero() {
		q := u.Query()
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &mwrest.Error{Kind: mwrest.KindConfig, Op: op, Message: "invalid stream request", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.ua)
	if f.LastEventID != "" {
		req.Header.Set("Last-Event-ID", f.LastEventID)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, &mwrest.Error{Kind: mwrest.KindTransport, Op: op, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		if err := mwrest.ClassifyResponse(op, res.StatusCode, res.Header, b); err != nil {
			return nil, err
		}
		return nil, &mwrest.Error{Kind: mwrest.KindMalformed, Op: op, Status: res.StatusCode, Message: "unexpected status " + res.Status}
	}

	c.logger.Debug("event stream connected", "url", u.String(), "last_event_id", f.LastEventID)
	return res.Body, nil
}
