package mwapi

import (
	"context"
	"errors"
)

type SiteInfo struct {
	SiteName   string `json:"sitename"`
	Generator  string `json:"generator"`
	Server     string `json:"server"`
	WikiID     string `json:"wikiid"`
	Lang       string `json:"lang"`
	MainPage   string `json:"mainpage"`
	ScriptPath string `json:"scriptpath"`
}

type siteInfoQuery struct {
	Action string   `url:"action"`
	Meta   string   `url:"meta"`
	SIProp []string `url:"siprop"`
}

// SiteInfo returns the general site information block. Generator carries the
// MediaWiki version string, e.g. "MediaWiki 1.43.0-wmf.12".
func (c *Client) SiteInfo(ctx context.Context) (*SiteInfo, error) {
	resp, err := c.Get(ctx, siteInfoQuery{
		Action: "query",
		Meta:   "siteinfo",
		SIProp: []string{"general"},
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Query struct {
			General SiteInfo `json:"general"`
		} `json:"query"`
	}
	if err := resp.Into(&out); err != nil {
		return nil, err
	}
	if out.Query.General.Generator == "" {
		return nil, errors.New("missing query.general.generator in response")
	}
	return &out.Query.General, nil
}
