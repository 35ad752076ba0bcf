package mwrest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Project is a Wikimedia project family.
type Project string

const (
	Wikipedia   Project = "wikipedia"
	Wiktionary  Project = "wiktionary"
	Wikivoyage  Project = "wikivoyage"
	Wikibooks   Project = "wikibooks"
	Wikinews    Project = "wikinews"
	Wikisource  Project = "wikisource"
	Wikiversity Project = "wikiversity"
	Wikiquote   Project = "wikiquote"

	Commons     Project = "commons"
	Wikidata    Project = "wikidata"
	Wikispecies Project = "wikispecies"
	Meta        Project = "meta"
)

// single-site projects: host and database name
var fixedProjects = map[Project]struct{ host, wikiID string }{
	Commons:     {"commons.wikimedia.org", "commonswiki"},
	Wikidata:    {"www.wikidata.org", "wikidatawiki"},
	Wikispecies: {"species.wikimedia.org", "specieswiki"},
	Meta:        {"meta.wikimedia.org", "metawiki"},
}

// suffix order matters: "wiki" must be tried last
var multilingualSuffixes = []struct {
	suffix  string
	project Project
}{
	{"wiktionary", Wiktionary},
	{"wikivoyage", Wikivoyage},
	{"wikibooks", Wikibooks},
	{"wikinews", Wikinews},
	{"wikisource", Wikisource},
	{"wikiversity", Wikiversity},
	{"wikiquote", Wikiquote},
	{"wiki", Wikipedia},
}

var langCode = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const defaultAPIVersion = 1

// Endpoint is a resolved REST API root such as https://en.wikipedia.org/w/rest.php.
// The zero value is not usable; build one with ParseEndpoint,
// WikimediaEndpoint or ResolveWikiID.
type Endpoint struct {
	scheme     string
	host       string
	basePath   string
	wikiID     string
	apiVersion int
}

// ParseEndpoint accepts an explicit rest.php URL. Anything after /rest.php
// (a version prefix, a route, a query) is dropped.
func ParseEndpoint(rawURL string) (Endpoint, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Endpoint{}, configError("ParseEndpoint", "empty endpoint URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, &Error{Kind: KindConfig, Op: "ParseEndpoint", Message: "invalid endpoint URL", Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, configError("ParseEndpoint", fmt.Sprintf("invalid endpoint URL (expect full URL): %q", rawURL))
	}
	idx := restSegment(u.Path)
	if idx < 0 {
		return Endpoint{}, configError("ParseEndpoint", fmt.Sprintf("invalid endpoint path (expect .../rest.php): %q", u.Path))
	}
	return Endpoint{
		scheme:     u.Scheme,
		host:       u.Host,
		basePath:   u.Path[:idx],
		wikiID:     u.Hostname(),
		apiVersion: defaultAPIVersion,
	}, nil
}

// restSegment returns the offset of the first path segment that is exactly
// "rest.php", or -1.
func restSegment(p string) int {
	const seg = "/rest.php"
	for off := 0; ; {
		i := strings.Index(p[off:], seg)
		if i < 0 {
			return -1
		}
		i += off
		if end := i + len(seg); end == len(p) || p[end] == '/' {
			return i
		}
		off = i + len(seg)
	}
}

// WikimediaEndpoint resolves a Wikimedia project and language code, e.g.
// (Wikipedia, "de") to https://de.wikipedia.org/w/rest.php. The language is
// ignored for single-site projects like Commons and Wikidata.
func WikimediaEndpoint(project Project, lang string) (Endpoint, error) {
	if project == "" {
		return Endpoint{}, configError("WikimediaEndpoint", "empty project")
	}
	if fixed, ok := fixedProjects[project]; ok {
		return wikimedia(fixed.host, fixed.wikiID), nil
	}
	if !isMultilingual(project) {
		return Endpoint{}, configError("WikimediaEndpoint", fmt.Sprintf("unknown project %q", project))
	}
	if lang == "" {
		return Endpoint{}, configError("WikimediaEndpoint", "empty language code")
	}
	if !langCode.MatchString(lang) {
		return Endpoint{}, configError("WikimediaEndpoint", fmt.Sprintf("invalid language code %q", lang))
	}

	dbLang := strings.ReplaceAll(lang, "-", "_")
	wikiID := dbLang + string(project)
	if project == Wikipedia {
		wikiID = dbLang + "wiki"
	}
	return wikimedia(lang+"."+string(project)+".org", wikiID), nil
}

// ResolveWikiID resolves a Wikimedia database name such as "enwiki",
// "dewiktionary" or "commonswiki".
func ResolveWikiID(id string) (Endpoint, error) {
	if id == "" {
		return Endpoint{}, configError("ResolveWikiID", "empty wiki id")
	}
	for project, fixed := range fixedProjects {
		if fixed.wikiID == id {
			return WikimediaEndpoint(project, "")
		}
	}
	for _, s := range multilingualSuffixes {
		lang, ok := strings.CutSuffix(id, s.suffix)
		if !ok || lang == "" {
			continue
		}
		ep, err := WikimediaEndpoint(s.project, strings.ReplaceAll(lang, "_", "-"))
		if err != nil {
			return Endpoint{}, configError("ResolveWikiID", fmt.Sprintf("unknown wiki id %q", id))
		}
		return ep, nil
	}
	return Endpoint{}, configError("ResolveWikiID", fmt.Sprintf("unknown wiki id %q", id))
}

func wikimedia(host, wikiID string) Endpoint {
	return Endpoint{
		scheme:     "https",
		host:       host,
		basePath:   "/w",
		wikiID:     wikiID,
		apiVersion: defaultAPIVersion,
	}
}

func isMultilingual(p Project) bool {
	for _, s := range multilingualSuffixes {
		if s.project == p {
			return true
		}
	}
	return false
}

// Root returns the rest.php URL without a version prefix.
func (e Endpoint) Root() string {
	return e.scheme + "://" + e.host + e.basePath + "/rest.php"
}

// URL joins an escaped route onto the root. Routes are prefixed with
// /v{N}, except routes that carry their own /v0/ segment (math), which are
// used verbatim.
func (e Endpoint) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.Contains(path, "/v0/") {
		return e.Root() + path
	}
	return fmt.Sprintf("%s/v%d%s", e.Root(), e.APIVersion(), path)
}

// ActionAPI returns the api.php sibling of the REST root.
func (e Endpoint) ActionAPI() string {
	return e.scheme + "://" + e.host + e.basePath + "/api.php"
}

// WikiID is the database name for Wikimedia wikis and the host name otherwise.
func (e Endpoint) WikiID() string { return e.wikiID }

func (e Endpoint) Host() string { return e.host }

func (e Endpoint) APIVersion() int {
	if e.apiVersion < 1 {
		return defaultAPIVersion
	}
	return e.apiVersion
}

// WithAPIVersion returns a copy using /v{n} routes.
func (e Endpoint) WithAPIVersion(n int) Endpoint {
	if n < 1 {
		n = defaultAPIVersion
	}
	e.apiVersion = n
	return e
}

// IsZero reports whether e was never resolved.
func (e Endpoint) IsZero() bool { return e.host == "" }

func (e Endpoint) String() string {
	if e.IsZero() {
		return ""
	}
	return e.Root()
}
