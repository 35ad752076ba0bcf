package mwrest

import (
	"net/url"
	"strings"
	"time"
)

// PageHandle identifies a page by title.
type PageHandle struct {
	Title string
}

// Page returns a handle for title.
func Page(title string) PageHandle {
	return PageHandle{Title: title}
}

// path returns the escaped title segment. MediaWiki accepts spaces and
// underscores interchangeably; the title is sent as given.
func (h PageHandle) path() string {
	return url.PathEscape(h.Title)
}

func (h PageHandle) valid() bool {
	return strings.TrimSpace(h.Title) != ""
}

type LicenseModel struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type RevisionRef struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// PageSnapshot is a page as returned by a read or a successful mutation.
// Source is set by GetPage with Source, by CreatePage and by UpdatePage;
// HTMLURL by bare reads; HTML by GetPageWithHTML.
type PageSnapshot struct {
	ID           int64        `json:"id"`
	Key          string       `json:"key"`
	Title        string       `json:"title"`
	Latest       RevisionRef  `json:"latest"`
	ContentModel string       `json:"content_model"`
	License      LicenseModel `json:"license"`
	Source       string       `json:"source,omitempty"`
	HTMLURL      string       `json:"html_url,omitempty"`
	HTML         string       `json:"html,omitempty"`
}

// LatestRevisionID is the revision the snapshot reflects; pass it as the
// base of the next UpdatePage.
func (p *PageSnapshot) LatestRevisionID() int64 { return p.Latest.ID }

func (p *PageSnapshot) LatestTimestamp() time.Time { return p.Latest.Timestamp }

// Handle returns a handle for the snapshot's page.
func (p *PageSnapshot) Handle() PageHandle { return PageHandle{Title: p.Title} }

// EditRequest replaces the content of an existing page. BaseRevisionID is
// the revision the edit was made against; when the page has moved on, the
// wiki rejects the edit with KindConflict.
type EditRequest struct {
	BaseRevisionID int64
	Wikitext       string
	Comment        string
	ContentModel   string
}

// CreateRequest creates a new page.
type CreateRequest struct {
	Wikitext     string
	Comment      string
	ContentModel string
}

type UserInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PageRef struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Title string `json:"title"`
}

// RevisionInfo describes one revision. Source, HTMLURL and HTML are filled
// depending on the route that produced it.
type RevisionInfo struct {
	ID           int64        `json:"id"`
	Size         int          `json:"size"`
	Minor        bool         `json:"minor"`
	Timestamp    time.Time    `json:"timestamp"`
	ContentModel string       `json:"content_model"`
	Page         PageRef      `json:"page"`
	License      LicenseModel `json:"license"`
	User         *UserInfo    `json:"user"`
	Comment      *string      `json:"comment"`
	Delta        *int         `json:"delta"`
	Source       string       `json:"source,omitempty"`
	HTMLURL      string       `json:"html_url,omitempty"`
	HTML         string       `json:"html,omitempty"`
}

type HistoryRevision struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Minor     bool      `json:"minor"`
	Size      int       `json:"size"`
	Comment   *string   `json:"comment"`
	User      *UserInfo `json:"user"`
	Delta     *int      `json:"delta"`
}

// History is one page of a page's revision history, newest first. Older
// and Newer are URLs of the adjacent pages when they exist.
type History struct {
	Latest    string            `json:"latest"`
	Older     string            `json:"older,omitempty"`
	Newer     string            `json:"newer,omitempty"`
	Revisions []HistoryRevision `json:"revisions"`
}

type HistoryCounts struct {
	Count int64 `json:"count"`
	// Limit is true when the wiki stopped counting at its cap.
	Limit bool `json:"limit"`
}

// Lint is a Parsoid lint finding. DSR holds the source offsets
// [start, end, openWidth, closeWidth].
type Lint struct {
	Type         string         `json:"type"`
	DSR          []int          `json:"dsr"`
	Params       map[string]any `json:"params,omitempty"`
	TemplateInfo map[string]any `json:"templateInfo,omitempty"`
}

type LanguageLink struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Key   string `json:"key"`
	Title string `json:"title"`
}

type MediaType struct {
	MediaType string   `json:"mediatype"`
	Size      *int64   `json:"size"`
	Width     *int     `json:"width"`
	Height    *int     `json:"height"`
	Duration  *float64 `json:"duration"`
	URL       string   `json:"url"`
}

type FileRevision struct {
	Timestamp time.Time `json:"timestamp"`
	User      UserInfo  `json:"user"`
}

type FileInfo struct {
	Title              string       `json:"title"`
	FileDescriptionURL string       `json:"file_description_url"`
	Latest             FileRevision `json:"latest"`
	Preferred          MediaType    `json:"preferred"`
	Original           MediaType    `json:"original"`
	Thumbnail          *MediaType   `json:"thumbnail,omitempty"`
}

type MediaResult struct {
	Files []FileInfo `json:"files"`
}

type DiffSection struct {
	Level   int    `json:"level"`
	Heading string `json:"heading"`
	Offset  int    `json:"offset"`
}

type DiffSide struct {
	ID       int64         `json:"id"`
	SlotRole string        `json:"slot_role"`
	Sections []DiffSection `json:"sections"`
}

type DiffOffset struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

type HighlightRange struct {
	Start  int `json:"start"`
	Length int `json:"length"`
	Type   int `json:"type"`
}

// DiffLine is one line of a visual diff. Type is 0 for context, 1 for an
// added line, 2 for a removed line, 3 for a changed line and 4/5 for a
// paragraph moved away or into place.
type DiffLine struct {
	Type            int              `json:"type"`
	LineNumber      int              `json:"lineNumber,omitempty"`
	Text            string           `json:"text"`
	Offset          DiffOffset       `json:"offset"`
	HighlightRanges []HighlightRange `json:"highlightRanges,omitempty"`
	MoveInfo        map[string]any   `json:"moveInfo,omitempty"`
}

type Diff struct {
	From DiffSide   `json:"from"`
	To   DiffSide   `json:"to"`
	Diff []DiffLine `json:"diff"`
}

type Thumbnail struct {
	MimeType string   `json:"mimetype"`
	Size     *int64   `json:"size"`
	Width    *int     `json:"width"`
	Height   *int     `json:"height"`
	Duration *float64 `json:"duration"`
	URL      string   `json:"url"`
}

type SearchPage struct {
	ID           int64      `json:"id"`
	Key          string     `json:"key"`
	Title        string     `json:"title"`
	Excerpt      string     `json:"excerpt"`
	MatchedTitle *string    `json:"matched_title"`
	Description  *string    `json:"description"`
	Thumbnail    *Thumbnail `json:"thumbnail"`
}

type SearchResults struct {
	Pages []SearchPage `json:"pages"`
}

// PopupInfo is the Wikidata summary behind a math formula popup.
type PopupInfo struct {
	Title        string `json:"title"`
	ContentModel string `json:"contentmodel"`
	PageLanguage string `json:"pagelanguage"`
	Extract      string `json:"extract"`
	CanonicalURL string `json:"canonicalurl"`
	FullURL      string `json:"fullurl"`
}
