package mwapi

import (
	"net/http"

	json "github.com/goccy/go-json"
)

type TokenType string

const (
	TokenCSRF  TokenType = "csrf"
	TokenWatch TokenType = "watch"
)

// MWError is one entry of an Action API error envelope. With
// errorformat=plaintext the message is in Text; older wikis fill Info.
type MWError struct {
	Code string `json:"code"`
	Info string `json:"info,omitempty"`
	Text string `json:"text,omitempty"`
}

type Envelope struct {
	Error  *MWError  `json:"error,omitempty"`
	Errors []MWError `json:"errors,omitempty"`
}

type Response struct {
	StatusCode int
	Header     http.Header
	Envelope

	Raw json.RawMessage
}

func (r *Response) Into(out any) error {
	return json.Unmarshal(r.Raw, out)
}
