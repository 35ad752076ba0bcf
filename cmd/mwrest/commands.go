package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/wiki-saikou/mwrest-go/mwrest"
)

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"get":      {"get", "[-source=false] [-redirect] [-raw] TITLE", "print a page and its wikitext", cmdGet},
	"html":     {"html", "[-flavor F] [-redirect] [-stash] (TITLE | -rev ID)", "print Parsoid HTML of a page or revision", cmdHTML},
	"edit":     {"edit", "[-file PATH] [-comment C] [-base REV] TITLE", "replace a page's wikitext (exit 3 on conflict)", cmdEdit},
	"create":   {"create", "[-file PATH] [-comment C] [-model M] TITLE", "create a page", cmdCreate},
	"render":   {"render", "[-title T] [-file PATH]", "convert wikitext to HTML", cmdRender},
	"unrender": {"unrender", "[-title T] [-file PATH]", "convert HTML to wikitext", cmdUnrender},
	"lint":     {"lint", "(TITLE | -rev ID | -file PATH)", "list Parsoid lint errors", cmdLint},
	"history":  {"history", "[-filter F] [-older-than REV] [-newer-than REV] [-count KIND] TITLE", "list page history", cmdHistory},
	"revision": {"revision", "[-bare] [-html] ID", "print a revision", cmdRevision},
	"compare":  {"compare", "FROM TO", "diff two revisions", cmdCompare},
	"file":     {"file", "TITLE", "print file metadata", cmdFile},
	"search":   {"search", "[-titles] [-limit N] QUERY...", "full-text or title search", cmdSearch},
	"links":    {"links", "[-missing] TITLE", "list internal links of a page", cmdLinks},
	"math":     {"math", "QID", "print the Wikidata popup of a formula item", cmdMath},
	"check":    {"check", "", "check the wiki's MediaWiki version", cmdCheck},
	"watch":    {"watch", "[-types edit,new] [-since DUR] [-all] [-metrics ADDR]", "stream recent changes", cmdWatch},
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usagef("%v", err)
	}
	return nil
}

func oneArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", usagef("expected one %s", what)
	}
	return fs.Arg(0), nil
}

func parseRevID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid revision id %q", s)
	}
	return id, nil
}

// readInput reads path, or stdin when path is empty or "-".
func (a *app) readInput(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(a.stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdGet(ctx context.Context, a *app, args []string) error {
	fs := a.flags("get")
	source := fs.Bool("source", true, "include wikitext")
	redirect := fs.Bool("redirect", false, "follow redirects")
	raw := fs.Bool("raw", false, "print only the wikitext")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "title")
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	p, err := c.GetPage(ctx, mwrest.Page(title), mwrest.PageOptions{Source: *source || *raw, Redirect: *redirect})
	if err != nil {
		return err
	}
	if *raw {
		_, err = io.WriteString(a.stdout, p.Source)
		return err
	}
	return a.printJSON(p)
}

func cmdHTML(ctx context.Context, a *app, args []string) error {
	fs := a.flags("html")
	flavor := fs.String("flavor", "", "view, stash, fragment or edit")
	redirect := fs.Bool("redirect", false, "follow redirects")
	stash := fs.Bool("stash", false, "stash the render for a later edit")
	rev := fs.String("rev", "", "revision id instead of a title")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}

	var html string
	if *rev != "" {
		if fs.NArg() != 0 {
			return usagef("-rev takes no title")
		}
		id, err := parseRevID(*rev)
		if err != nil {
			return err
		}
		html, err = c.GetRevisionHTML(ctx, id, *stash, mwrest.HTMLFlavor(*flavor))
		if err != nil {
			return err
		}
	} else {
		title, err := oneArg(fs, "title")
		if err != nil {
			return err
		}
		html, err = c.GetPageHTML(ctx, mwrest.Page(title), mwrest.HTMLOptions{
			Redirect: *redirect,
			Stash:    *stash,
			Flavor:   mwrest.HTMLFlavor(*flavor),
		})
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(a.stdout, html)
	return err
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := a.flags("edit")
	file := fs.String("file", "-", "wikitext file, - for stdin")
	comment := fs.String("comment", "", "edit summary")
	base := fs.Int64("base", 0, "base revision id (default: the page's latest)")
	model := fs.String("model", "", "content model")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "title")
	if err != nil {
		return err
	}
	text, err := a.readInput(*file)
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	h := mwrest.Page(title)

	baseID := *base
	if baseID == 0 {
		cur, err := c.GetPage(ctx, h, mwrest.PageOptions{})
		if err != nil {
			return err
		}
		baseID = cur.LatestRevisionID()
	}

	p, err := c.UpdatePage(ctx, h, mwrest.EditRequest{
		BaseRevisionID: baseID,
		Wikitext:       text,
		Comment:        *comment,
		ContentModel:   *model,
	})
	if mwrest.KindOf(err) == mwrest.KindConflict {
		latest := int64(0)
		if e, ok := mwrest.AsError(err); ok {
			latest = e.LatestRevisionID
		}
		if latest == 0 {
			if cur, gerr := c.GetPage(ctx, h, mwrest.PageOptions{}); gerr == nil {
				latest = cur.LatestRevisionID()
			}
		}
		fmt.Fprintf(a.stderr, "mwrest edit: %s changed since revision %d\n", title, baseID)
		fmt.Fprintf(a.stdout, "%d\n", latest)
		return errConflictReported
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: revision %d\n", p.Title, p.LatestRevisionID())
	return nil
}

func cmdCreate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("create")
	file := fs.String("file", "-", "wikitext file, - for stdin")
	comment := fs.String("comment", "", "edit summary")
	model := fs.String("model", "", "content model")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "title")
	if err != nil {
		return err
	}
	text, err := a.readInput(*file)
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	p, err := c.CreatePage(ctx, mwrest.Page(title), mwrest.CreateRequest{
		Wikitext:     text,
		Comment:      *comment,
		ContentModel: *model,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: revision %d\n", p.Title, p.LatestRevisionID())
	return nil
}

func transformCmd(name string, convert func(*mwrest.Client, context.Context, string, mwrest.TransformOptions) (string, error)) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		fs := a.flags(name)
		title := fs.String("title", "", "page title used as parse context")
		file := fs.String("file", "-", "input file, - for stdin")
		if err := parseFlags(fs, args); err != nil {
			return err
		}
		if fs.NArg() != 0 {
			return usagef("unexpected argument %q", fs.Arg(0))
		}
		in, err := a.readInput(*file)
		if err != nil {
			return err
		}
		c, err := a.rest()
		if err != nil {
			return err
		}
		out, err := convert(c, ctx, in, mwrest.TransformOptions{Title: *title})
		if err != nil {
			return err
		}
		_, err = io.WriteString(a.stdout, out)
		return err
	}
}

var (
	cmdRender   = transformCmd("render", (*mwrest.Client).WikitextToHTML)
	cmdUnrender = transformCmd("unrender", (*mwrest.Client).HTMLToWikitext)
)

func cmdLint(ctx context.Context, a *app, args []string) error {
	fs := a.flags("lint")
	rev := fs.String("rev", "", "lint a revision")
	file := fs.String("file", "", "lint wikitext from a file, - for stdin")
	title := fs.String("title", "", "page title used as parse context with -file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}

	var lints []mwrest.Lint
	switch {
	case *rev != "":
		id, err := parseRevID(*rev)
		if err != nil {
			return err
		}
		lints, err = c.GetRevisionLint(ctx, id)
		if err != nil {
			return err
		}
	case *file != "":
		text, err := a.readInput(*file)
		if err != nil {
			return err
		}
		lints, err = c.WikitextToLint(ctx, text, mwrest.TransformOptions{Title: *title})
		if err != nil {
			return err
		}
	default:
		t, err := oneArg(fs, "title")
		if err != nil {
			return err
		}
		lints, err = c.GetPageLint(ctx, mwrest.Page(t), false)
		if err != nil {
			return err
		}
	}
	if lints == nil {
		lints = []mwrest.Lint{}
	}
	return a.printJSON(lints)
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := a.flags("history")
	filter := fs.String("filter", "", "reverted, anonymous, bot or minor")
	older := fs.Int64("older-than", 0, "revisions older than this id")
	newer := fs.Int64("newer-than", 0, "revisions newer than this id")
	count := fs.String("count", "", "print a count of this kind instead: edits, editors, bot, ...")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "title")
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	h := mwrest.Page(title)

	if *count != "" {
		n, err := c.GetPageHistoryCounts(ctx, h, mwrest.HistoryCountFilter(*count), mwrest.HistoryCountOptions{})
		if err != nil {
			return err
		}
		return a.printJSON(n)
	}

	hist, err := c.GetPageHistory(ctx, h, mwrest.HistoryOptions{
		Filter:    mwrest.HistoryFilter(*filter),
		OlderThan: *older,
		NewerThan: *newer,
	})
	if err != nil {
		return err
	}
	for _, r := range hist.Revisions {
		user := ""
		if r.User != nil {
			user = r.User.Name
		}
		comment := ""
		if r.Comment != nil {
			comment = *r.Comment
		}
		fmt.Fprintf(a.stdout, "%d\t%s\t%s\t%s\n", r.ID, r.Timestamp.Format("2006-01-02T15:04:05Z"), user, comment)
	}
	return nil
}

func cmdRevision(ctx context.Context, a *app, args []string) error {
	fs := a.flags("revision")
	bare := fs.Bool("bare", false, "omit the wikitext")
	withHTML := fs.Bool("html", false, "include Parsoid HTML")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	arg, err := oneArg(fs, "revision id")
	if err != nil {
		return err
	}
	id, err := parseRevID(arg)
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}

	var rev *mwrest.RevisionInfo
	switch {
	case *withHTML:
		rev, err = c.GetRevisionWithHTML(ctx, id, false, "")
	case *bare:
		rev, err = c.GetRevisionBare(ctx, id)
	default:
		rev, err = c.GetRevision(ctx, id)
	}
	if err != nil {
		return err
	}
	return a.printJSON(rev)
}

func cmdCompare(ctx context.Context, a *app, args []string) error {
	fs := a.flags("compare")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("expected two revision ids")
	}
	from, err := parseRevID(fs.Arg(0))
	if err != nil {
		return err
	}
	to, err := parseRevID(fs.Arg(1))
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	d, err := c.CompareRevisions(ctx, from, to)
	if err != nil {
		return err
	}
	return a.printJSON(d)
}

func cmdFile(ctx context.Context, a *app, args []string) error {
	fs := a.flags("file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "file title")
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	f, err := c.GetFile(ctx, title)
	if err != nil {
		return err
	}
	return a.printJSON(f)
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := a.flags("search")
	titles := fs.Bool("titles", false, "title prefix search instead of full text")
	limit := fs.Int("limit", 10, "max results")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("expected a query")
	}
	q := strings.Join(fs.Args(), " ")
	c, err := a.rest()
	if err != nil {
		return err
	}

	search := c.SearchPages
	if *titles {
		search = c.SearchTitles
	}
	res, err := search(ctx, q, *limit)
	if err != nil {
		return err
	}
	for _, p := range res.Pages {
		desc := ""
		if p.Description != nil {
			desc = *p.Description
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", p.Title, desc)
	}
	return nil
}

func cmdLinks(ctx context.Context, a *app, args []string) error {
	fs := a.flags("links")
	missing := fs.Bool("missing", false, "only links to pages that do not exist")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	title, err := oneArg(fs, "title")
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	html, err := c.GetPageHTML(ctx, mwrest.Page(title), mwrest.HTMLOptions{})
	if err != nil {
		return err
	}
	links, err := mwrest.ExtractWikiLinks(html)
	if err != nil {
		return err
	}
	for _, l := range links {
		if *missing && !l.Missing {
			continue
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", l.Target, l.Text)
	}
	return nil
}

func cmdMath(ctx context.Context, a *app, args []string) error {
	fs := a.flags("math")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	qid, err := oneArg(fs, "Wikidata item id")
	if err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	info, err := c.MathPopup(ctx, qid)
	if err != nil {
		return err
	}
	return a.printJSON(info)
}

func cmdCheck(ctx context.Context, a *app, args []string) error {
	fs := a.flags("check")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	c, err := a.rest()
	if err != nil {
		return err
	}
	res, err := c.CheckServer(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %s (%s, requires %s)\n", res.SiteName, res.Status, res.Generator, res.Constraint)
	if res.Status == mwrest.Incompatible {
		return fmt.Errorf("incompatible server: %s", res.Message)
	}
	return nil
}
