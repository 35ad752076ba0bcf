package mwapi

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/google/go-querystring/query"
)

type normalizedParams struct {
	Values url.Values
}

// normalizeParams accepts a `url`-tagged struct or url.Values. Multi-valued
// fields are joined with "|", the Action API's list separator.
func normalizeParams(p any) (normalizedParams, error) {
	var (
		values url.Values
		err    error
	)
	switch v := p.(type) {
	case nil:
		values = url.Values{}
	case url.Values:
		values = v
	default:
		rv := reflect.ValueOf(p)
		if rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return normalizedParams{}, fmt.Errorf("unsupported params type: %T", p)
		}
		values, err = query.Values(p)
		if err != nil {
			return normalizedParams{}, err
		}
	}

	np := normalizedParams{Values: url.Values{}}
	for k, vs := range values {
		if len(vs) > 0 {
			np.Values.Set(k, strings.Join(vs, "|"))
		}
	}
	for k, def := range map[string]string{
		"action":        "query",
		"format":        "json",
		"formatversion": "2",
		"errorformat":   "plaintext",
	} {
		if np.Values.Get(k) == "" {
			np.Values.Set(k, def)
		}
	}
	return np, nil
}
