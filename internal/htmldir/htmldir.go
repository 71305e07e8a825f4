// Package htmldir exposes a directory of static HTML files as a host.Host,
// for offline wording runs and for testing content before it goes live.
package htmldir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"

	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
)

// ManifestFile is the optional site description at the directory root.
const ManifestFile = "site.yaml"

// ErrNoActivePage is returned by Elements before a page was selected.
var ErrNoActivePage = host.ErrNoActivePage

// Manifest lists the pages of a site explicitly.
type Manifest struct {
	SiteID   string         `yaml:"site_id"`
	SiteName string         `yaml:"site_name"`
	Pages    []ManifestPage `yaml:"pages"`
}

// ManifestPage maps a page name and slug to an HTML file relative to the root.
type ManifestPage struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
	File string `yaml:"file"`
}

// Host serves the pages of one directory. The active page is parsed on
// switch and written back to disk after every text change.
type Host struct {
	root     string
	manifest *Manifest

	active *page
	doc    *goquery.Document
}

// Open prepares a host over root, reading site.yaml when present.
func Open(root string) (*Host, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	h := &Host{root: root}
	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	switch {
	case err == nil:
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
		}
		h.manifest = &m
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	return h, nil
}

// Root returns the served directory.
func (h *Host) Root() string { return h.root }

func (h *Host) SiteInfo(context.Context) (host.SiteInfo, error) {
	base := filepath.Base(filepath.Clean(h.root))
	info := host.SiteInfo{SiteID: base, ShortName: base}
	if h.manifest != nil {
		if h.manifest.SiteID != "" {
			info.SiteID = h.manifest.SiteID
		}
		info.SiteName = h.manifest.SiteName
	}
	return info, nil
}

// PagesAndFolders lists manifest pages in manifest order, or else every
// HTML file and sub-directory in lexical walk order.
func (h *Host) PagesAndFolders(ctx context.Context) ([]host.Entry, error) {
	if h.manifest != nil {
		out := make([]host.Entry, 0, len(h.manifest.Pages))
		for _, mp := range h.manifest.Pages {
			slug := mp.Slug
			if slug == "" {
				slug = slugFor(mp.File)
			}
			out = append(out, host.Entry{Type: host.TypePage, Page: &page{h: h, file: filepath.FromSlash(mp.File), name: mp.Name, slug: slug}})
		}
		return out, nil
	}

	var out []host.Entry
	err := filepath.WalkDir(h.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == h.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(h.root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			out = append(out, host.Entry{Type: host.TypeFolder})
			return nil
		}
		if strings.EqualFold(filepath.Ext(rel), ".html") {
			out = append(out, host.Entry{Type: host.TypePage, Page: &page{h: h, file: rel, slug: slugFor(rel)}})
		}
		return nil
	})
	return out, err
}

// SwitchPage parses the page's file and makes it active.
func (h *Host) SwitchPage(_ context.Context, p host.Page) error {
	pg, ok := p.(*page)
	if !ok || pg.h != h {
		return fmt.Errorf("page %q does not belong to %s", p.ID(), h.root)
	}
	doc, err := pg.load()
	if err != nil {
		return err
	}
	h.active, h.doc = pg, doc
	logx.Debugf("htmldir: active page %s", pg.file)
	return nil
}

// WaitReady returns at once; SwitchPage parses synchronously.
func (h *Host) WaitReady(ctx context.Context) error { return ctx.Err() }

// SelectPage makes the page with the given slug or file active.
func (h *Host) SelectPage(ctx context.Context, slugOrFile string) error {
	entries, err := h.PagesAndFolders(ctx)
	if err != nil {
		return err
	}
	want := strings.Trim(filepath.ToSlash(slugOrFile), "/")
	for _, p := range host.Pages(entries) {
		pg := p.(*page)
		if pg.slug == want || filepath.ToSlash(pg.file) == want {
			return h.SwitchPage(ctx, pg)
		}
	}
	return fmt.Errorf("page %q not found under %s", slugOrFile, h.root)
}

func (h *Host) HasActivePage() bool { return h.active != nil }

// Elements lists every element of the active page in document order.
func (h *Host) Elements(context.Context) ([]host.Element, error) {
	if h.active == nil {
		return nil, ErrNoActivePage
	}
	var out []host.Element
	h.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{page: h.active, doc: h.doc, sel: s})
	})
	return out, nil
}

// save renders doc back to the page's file.
func (p *page) save(doc *goquery.Document) error {
	out, err := doc.Html()
	if err != nil {
		return err
	}
	path := filepath.Join(p.h.root, p.file)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".wordsync-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func slugFor(file string) string {
	rel := filepath.ToSlash(file)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

type page struct {
	h    *Host
	file string
	name string
	slug string
}

func (p *page) ID() string { return filepath.ToSlash(p.file) }

// Name is the manifest name, else the document <title>.
func (p *page) Name(context.Context) (string, error) {
	if p.name != "" {
		return p.name, nil
	}
	doc, err := p.load()
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", fmt.Errorf("%s has no title", p.file)
	}
	return title, nil
}

func (p *page) Slug(context.Context) (string, error) {
	if p.slug == "" {
		return "", fmt.Errorf("%s has no slug", p.file)
	}
	return p.slug, nil
}

func (p *page) load() (*goquery.Document, error) {
	f, err := os.Open(filepath.Join(p.h.root, p.file))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return goquery.NewDocumentFromReader(f)
}

// element belongs to the document parsed by the switch that listed it.
type element struct {
	page *page
	doc  *goquery.Document
	sel  *goquery.Selection
}

func (e *element) node() *html.Node { return e.sel.Get(0) }

func (e *element) Capabilities() host.Capabilities {
	return host.Capabilities{CustomAttributes: true, TextContent: !isVoid(e.node().DataAtom)}
}

func (e *element) CustomAttributes(context.Context) ([]host.Attribute, error) {
	n := e.node()
	attrs := make([]host.Attribute, 0, len(n.Attr))
	for _, a := range n.Attr {
		attrs = append(attrs, host.Attribute{Name: a.Key, Value: a.Val})
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs, nil
}

func (e *element) TextContent(context.Context) (string, error) {
	return e.sel.Text(), nil
}

// SetTextContent replaces the element's children with a text node and
// rewrites the page file.
func (e *element) SetTextContent(_ context.Context, value string) error {
	if isVoid(e.node().DataAtom) {
		return fmt.Errorf("<%s> cannot hold text", e.node().Data)
	}
	e.sel.SetText(value)
	return e.page.save(e.doc)
}

func isVoid(a atom.Atom) bool {
	switch a {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
		atom.Input, atom.Link, atom.Meta, atom.Param, atom.Source, atom.Track, atom.Wbr:
		return true
	}
	return false
}
