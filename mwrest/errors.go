package mwrest

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Kind classifies a failed call.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindUnauthorized
	KindNotFound
	KindConflict
	KindRateLimited
	KindMalformed
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client.
type Error struct {
	Kind Kind
	// Op is the client operation that failed, e.g. "GetPage".
	Op string
	// Status is the HTTP status, 0 when no response was received.
	Status int
	// Code is the REST errorKey, e.g. "rest-nonexistent-title".
	Code    string
	Message string

	// LatestRevisionID is the page's current revision for KindConflict,
	// when the server reported it.
	LatestRevisionID int64
	// RetryAfter is the server's Retry-After hint for KindRateLimited.
	RetryAfter time.Duration

	RequestID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("mwrest: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 || e.Code != "" {
		b.WriteString(" (")
		if e.Status != 0 {
			b.WriteString(strconv.Itoa(e.Status))
		}
		if e.Code != "" {
			if e.Status != 0 {
				b.WriteByte(' ')
			}
			b.WriteString(e.Code)
		}
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound)
// works for every not-found failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors.
var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrMalformed    = &Error{Kind: KindMalformed}
	ErrTransport    = &Error{Kind: KindTransport}
)

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns err's Kind, or 0 if err is nil or not an *Error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return 0
}

// restErrorBody is the JSON MediaWiki's REST handlers send with 4xx/5xx.
type restErrorBody struct {
	ErrorKey            string            `json:"errorKey"`
	Message             string            `json:"message"`
	MessageTranslations map[string]string `json:"messageTranslations"`
	HTTPCode            int               `json:"httpCode"`
	HTTPReason          string            `json:"httpReason"`
	Latest              *struct {
		ID int64 `json:"id"`
	} `json:"latest"`
}

func (b *restErrorBody) message() string {
	if b.Message != "" {
		return b.Message
	}
	if m := b.MessageTranslations["en"]; m != "" {
		return m
	}
	if len(b.MessageTranslations) > 0 {
		langs := make([]string, 0, len(b.MessageTranslations))
		for l := range b.MessageTranslations {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		return b.MessageTranslations[langs[0]]
	}
	return b.HTTPReason
}

// ClassifyResponse maps a completed HTTP exchange to nil for 2xx, or to an
// *Error with exactly one Kind:
//
//	401, 403         KindUnauthorized
//	404              KindNotFound
//	409              KindConflict (LatestRevisionID from the body, if any)
//	429              KindRateLimited (RetryAfter from the header)
//	other, with body KindMalformed
//	other, no body   KindTransport
func ClassifyResponse(op string, status int, header http.Header, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}

	e := &Error{Op: op, Status: status}
	var rb restErrorBody
	if len(body) > 0 && json.Unmarshal(body, &rb) == nil {
		e.Code = rb.ErrorKey
		e.Message = rb.message()
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
		if rb.Latest != nil {
			e.LatestRevisionID = rb.Latest.ID
		}
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	case len(body) > 0:
		e.Kind = KindMalformed
	default:
		e.Kind = KindTransport
	}
	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable and
// past values yield 0; delays beyond time.Duration's range saturate.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		switch {
		case secs < 0:
			return 0
		case secs > math.MaxInt64/int64(time.Second):
			return math.MaxInt64
		}
		return time.Duration(secs) * time.Second
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := t.Sub(now); d > 0 {
		return d
	}
	return 0
}

func configError(op, msg string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: msg}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func malformedError(op string, status int, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, Status: status, Message: "undecodable response body", Err: err}
}

func missingField(op string, status int, field string) *Error {
	return &Error{Kind: KindMalformed, Op: op, Status: status, Message: fmt.Sprintf("response has no %q field", field)}
}
