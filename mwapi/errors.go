package mwapi

import (
	"errors"
	"fmt"
	"strings"
)

type MediaWikiApiError struct {
	Code       string
	Message    string
	HTTPStatus int
	Errors     []MWError
	Response   *Response
}

func (e *MediaWikiApiError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsMediaWikiApiError(err error) (*MediaWikiApiError, bool) {
	var e *MediaWikiApiError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsAuthError reports whether the Action API rejected the caller's credentials,
// either through the HTTP status or through an error code in the envelope.
func IsAuthError(err error) bool {
	e, ok := IsMediaWikiApiError(err)
	if !ok {
		return false
	}
	if e.HTTPStatus == 401 || e.HTTPStatus == 403 {
		return true
	}
	return isAuthErrorCode(e.Code)
}

func isAuthErrorCode(code string) bool {
	code = strings.ToLower(code)
	switch code {
	case "permissiondenied", "readapidenied", "notloggedin", "assertuserfailed", "assertnameduserfailed":
		return true
	}
	// OAuth rejections: mwoauth-invalid-authorization, mwoauth-invalid-authorization-invalid-user, ...
	return strings.HasPrefix(code, "mwoauth-invalid-authorization")
}
