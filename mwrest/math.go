package mwrest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// MathPopup returns the popup summary for a Wikidata item used in a formula.
// qid is numeric; a leading "Q" is accepted.
func (c *Client) MathPopup(ctx context.Context, qid string) (*PopupInfo, error) {
	const op = "MathPopup"
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(qid), "Q"), 10, 64)
	if err != nil || n == 0 {
		return nil, configError(op, fmt.Sprintf("invalid item id %q", qid))
	}
	r := newRequest(op, "math", http.MethodGet, "/math/v0/popup/html/"+strconv.FormatUint(n, 10))
	var out PopupInfo
	if _, err := c.getJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
