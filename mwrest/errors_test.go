package mwrest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		header     http.Header
		body       string
		kind       Kind
		code       string
		message    string
		latest     int64
		retryAfter time.Duration
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			kind:   KindUnauthorized,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"errorKey":"rest-permission-denied-title","messageTranslations":{"en":"You do not have permission to edit"},"httpCode":403}`,
			kind:    KindUnauthorized,
			code:    "rest-permission-denied-title",
			message: "You do not have permission to edit",
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    `{"errorKey":"rest-nonexistent-title","messageTranslations":{"de":"Seite fehlt","en":"The specified page does not exist"},"httpCode":404,"httpReason":"Not Found"}`,
			kind:    KindNotFound,
			code:    "rest-nonexistent-title",
			message: "The specified page does not exist",
		},
		{
			name:   "conflict with latest revision",
			status: http.StatusConflict,
			body:   `{"errorKey":"rest-update-mismatch","httpCode":409,"latest":{"id":1234,"timestamp":"2024-05-01T10:00:00Z"}}`,
			kind:   KindConflict,
			code:   "rest-update-mismatch",
			latest: 1234,
		},
		{
			name:   "conflict without body",
			status: http.StatusConflict,
			kind:   KindConflict,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			header:     http.Header{"Retry-After": []string{"120"}},
			kind:       KindRateLimited,
			retryAfter: 2 * time.Minute,
		},
		{
			name:    "bad request with body",
			status:  http.StatusBadRequest,
			body:    `{"errorKey":"rest-bad-json-body","message":"Bad JSON body"}`,
			kind:    KindMalformed,
			code:    "rest-bad-json-body",
			message: "Bad JSON body",
		},
		{
			name:    "server error with html body",
			status:  http.StatusInternalServerError,
			body:    `<html>oops</html>`,
			kind:    KindMalformed,
			message: "Internal Server Error",
		},
		{
			name:    "gateway error without body",
			status:  http.StatusBadGateway,
			kind:    KindTransport,
			message: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			err := ClassifyResponse("GetPage", tt.status, header, []byte(tt.body))
			require.Error(t, err)

			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, "GetPage", e.Op)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.code, e.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Message)
			}
			assert.Equal(t, tt.latest, e.LatestRevisionID)
			assert.Equal(t, tt.retryAfter, e.RetryAfter)
		})
	}
}

func TestClassifyResponse_Success(t *testing.T) {
	t.Parallel()

	for _, status := range []int{200, 201, 204} {
		assert.NoError(t, ClassifyResponse("GetPage", status, http.Header{}, []byte("not json")))
	}
}

func TestClassifyResponse_EveryFailureHasOneKind(t *testing.T) {
	t.Parallel()

	for status := 300; status < 600; status++ {
		for _, body := range []string{"", "x"} {
			err := ClassifyResponse("op", status, http.Header{}, []byte(body))
			e, ok := AsError(err)
			require.True(t, ok, "status %d", status)
			assert.NotEqual(t, "unknown", e.Kind.String(), "status %d", status)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{" 5 ", 5 * time.Second},
		{"-5", 0},
		{"soon", 0},
		{"9223372036", 9223372036 * time.Second},
		{"99999999999", math.MaxInt64},
		{"99999999999999999999", math.MaxInt64},
		{"-99999999999999999999", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Hour).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.in, now), "Retry-After %q", tt.in)
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := context.DeadlineExceeded
	err := fmt.Errorf("loading page: %w", transportError("GetPage", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(0), KindOf(nil))

	_, ok := AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	e := &Error{Kind: KindNotFound, Op: "GetPage", Status: 404, Code: "rest-nonexistent-title", Message: "The specified page does not exist"}
	assert.Equal(t, "mwrest: GetPage: not_found (404 rest-nonexistent-title): The specified page does not exist", e.Error())

	e = &Error{Kind: KindTransport, Op: "GetPage", Err: errors.New("connection refused")}
	assert.Equal(t, "mwrest: GetPage: transport: connection refused", e.Error())

	e = &Error{Kind: KindConfig, Message: "empty wiki id"}
	assert.Equal(t, "mwrest: config: empty wiki id", e.Error())
}
