package mwapi

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// anonymousToken is what MediaWiki hands out to sessions that are not logged in.
const anonymousToken = `+\`

type tokenQuery struct {
	Action string `url:"action"`
	Meta   string `url:"meta"`
	Type   string `url:"type"`
}

// FetchToken asks the wiki for a fresh token of the given type. It performs no
// caching: every call is a network round trip.
func (c *Client) FetchToken(ctx context.Context, tokenType TokenType) (string, error) {
	resp, err := c.Get(ctx, tokenQuery{
		Action: "query",
		Meta:   "tokens",
		Type:   string(tokenType),
	})
	if err != nil {
		return "", err
	}

	tok, err := extractToken(resp.Raw, tokenType)
	if err != nil {
		return "", err
	}
	if tok == anonymousToken {
		return "", &MediaWikiApiError{
			Code:       "notloggedin",
			Message:    fmt.Sprintf("wiki issued an anonymous %s token", tokenType),
			HTTPStatus: resp.StatusCode,
			Response:   resp,
		}
	}
	return tok, nil
}

func extractToken(raw json.RawMessage, tokenType TokenType) (string, error) {
	var r struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", err
	}

	key := strings.ToLower(string(tokenType)) + "token"
	tok := r.Query.Tokens[key]
	if tok == "" {
		return "", fmt.Errorf("missing %s token", tokenType)
	}
	return tok, nil
}
