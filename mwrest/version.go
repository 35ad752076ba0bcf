package mwrest

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MinServerVersion is the oldest MediaWiki whose REST API has the page and
// transform routes this client uses.
const MinServerVersion = "1.35.0"

const serverVersionConstraint = ">= " + MinServerVersion

type CompatibilityStatus string

const (
	Compatible   CompatibilityStatus = "compatible"
	Incompatible CompatibilityStatus = "incompatible"
	Unknown      CompatibilityStatus = "unknown"
)

// CompatibilityResult describes whether a wiki can serve this client.
type CompatibilityResult struct {
	Status        CompatibilityStatus
	SiteName      string
	Generator     string
	ServerVersion string
	Constraint    string
	Message       string
}

// IsCompatible returns true if the server version is known to satisfy
// MinServerVersion.
func (r CompatibilityResult) IsCompatible() bool {
	return r.Status == Compatible
}

// CheckServer reads siteinfo over the Action API and checks the MediaWiki
// version. Failing to read siteinfo is an error; an unparseable generator
// string yields Unknown.
func (c *Client) CheckServer(ctx context.Context) (*CompatibilityResult, error) {
	si, err := c.meta.SiteInfo(ctx)
	if err != nil {
		return nil, metaError("CheckServer", err)
	}
	res := CheckCompatibility(si.Generator)
	res.SiteName = si.SiteName
	return &res, nil
}

// CheckCompatibility evaluates a siteinfo generator string such as
// "MediaWiki 1.43.0-wmf.12".
func CheckCompatibility(generator string) CompatibilityResult {
	res := CompatibilityResult{
		Status:     Unknown,
		Generator:  generator,
		Constraint: serverVersionConstraint,
	}

	v, err := parseGenerator(generator)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.ServerVersion = v.String()

	constraint, err := semver.NewConstraint(serverVersionConstraint)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	if constraint.Check(v) {
		res.Status = Compatible
		res.Message = fmt.Sprintf("MediaWiki %s satisfies %s", v, serverVersionConstraint)
	} else {
		res.Status = Incompatible
		res.Message = fmt.Sprintf("MediaWiki %s does not satisfy %s", v, serverVersionConstraint)
	}
	return res
}

// parseGenerator drops the "MediaWiki " prefix and any pre-release suffix;
// branch builds like 1.43.0-wmf.12 are treated as 1.43.0.
func parseGenerator(generator string) (*semver.Version, error) {
	s := strings.TrimSpace(generator)
	s = strings.TrimSpace(strings.TrimPrefix(s, "MediaWiki"))
	if s == "" {
		return nil, fmt.Errorf("no version in generator %q", generator)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse generator %q: %w", generator, err)
	}
	return semver.New(v.Major(), v.Minor(), v.Patch(), "", ""), nil
}
