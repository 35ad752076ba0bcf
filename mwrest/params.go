package mwrest

// HTMLFlavor selects the Parsoid HTML variant.
type HTMLFlavor string

const (
	FlavorView     HTMLFlavor = "view"
	FlavorStash    HTMLFlavor = "stash"
	FlavorFragment HTMLFlavor = "fragment"
	FlavorEdit     HTMLFlavor = "edit"
)

// HistoryFilter restricts GetPageHistory to one kind of edit.
type HistoryFilter string

const (
	HistoryReverted  HistoryFilter = "reverted"
	HistoryAnonymous HistoryFilter = "anonymous"
	HistoryBot       HistoryFilter = "bot"
	HistoryMinor     HistoryFilter = "minor"
)

// HistoryCountFilter is the kind of edit counted by GetPageHistoryCounts.
type HistoryCountFilter string

const (
	CountAnonymous HistoryCountFilter = "anonymous"
	CountTemporary HistoryCountFilter = "temporary"
	CountBot       HistoryCountFilter = "bot"
	CountEditors   HistoryCountFilter = "editors"
	CountEdits     HistoryCountFilter = "edits"
	CountMinor     HistoryCountFilter = "minor"
	CountReverted  HistoryCountFilter = "reverted"
)

func (f HistoryCountFilter) valid() bool {
	switch f {
	case CountAnonymous, CountTemporary, CountBot, CountEditors, CountEdits, CountMinor, CountReverted:
		return true
	}
	return false
}

// PageOptions controls GetPage. With Source the wikitext is returned;
// otherwise the bare route is used and HTMLURL is set instead.
type PageOptions struct {
	Source   bool `url:"-"`
	Redirect bool `url:"redirect"`
}

type HTMLOptions struct {
	Redirect bool       `url:"redirect"`
	Stash    bool       `url:"stash"`
	Flavor   HTMLFlavor `url:"flavor,omitempty"`
}

// revisionHTMLQuery drops redirect, which revision routes do not take.
type revisionHTMLQuery struct {
	Stash  bool       `url:"stash"`
	Flavor HTMLFlavor `url:"flavor,omitempty"`
}

type redirectQuery struct {
	Redirect bool `url:"redirect"`
}

// HistoryOptions pages through history. OlderThan and NewerThan are
// revision ids and are mutually exclusive on the server side.
type HistoryOptions struct {
	Filter    HistoryFilter `url:"filter,omitempty"`
	OlderThan int64         `url:"older_than,omitempty"`
	NewerThan int64         `url:"newer_than,omitempty"`
}

// HistoryCountOptions bounds a count by revision id.
type HistoryCountOptions struct {
	From int64 `url:"from,omitempty"`
	To   int64 `url:"to,omitempty"`
}

type searchQuery struct {
	Q     string `url:"q"`
	Limit int    `url:"limit,omitempty"`
}
