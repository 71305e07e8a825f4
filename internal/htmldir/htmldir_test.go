package htmldir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/host"
	"wording-sync/internal/wording"
)

const homeHTML = `<!DOCTYPE html>
<html><head><title>Home</title></head>
<body>
<h1 data-wording-key="home.title">Welcome</h1>
<img data-wording-key="home.logo" src="logo.png">
<p data-wording-key="home.lead" data-wording-mode="html">Old <b>lead</b></p>
</body></html>`

const storyHTML = `<!DOCTYPE html>
<html><head><title>Notre Histoire</title></head>
<body><p data-wording-key="notre-histoire.lead">Since</p></body></html>`

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestPagesAndFoldersWithoutManifest(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":          homeHTML,
		"blog/story.html":     storyHTML,
		"assets/site.css":     "body{}",
		".cache/ignored.html": homeHTML,
	})
	h, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries, err := h.PagesAndFolders(context.Background())
	if err != nil {
		t.Fatalf("PagesAndFolders: %v", err)
	}
	folders := 0
	for _, e := range entries {
		if e.Type == host.TypeFolder {
			folders++
		}
	}
	pages := host.Pages(entries)
	if folders != 2 || len(pages) != 2 {
		t.Fatalf("folders=%d pages=%d", folders, len(pages))
	}
	if pages[0].ID() != "blog/story.html" {
		t.Fatalf("first page = %s", pages[0].ID())
	}
	if name, _ := pages[0].Name(context.Background()); name != "Notre Histoire" {
		t.Fatalf("name = %q", name)
	}
	if slug, _ := pages[1].Slug(context.Background()); slug != "index" {
		t.Fatalf("slug = %q", slug)
	}
}

func TestManifestOrderAndNames(t *testing.T) {
	root := writeSite(t, map[string]string{
		"a.html": homeHTML,
		"b.html": storyHTML,
		"site.yaml": `site_id: maison
site_name: Maison Dupont
pages:
  - name: Accueil
    slug: home
    file: a.html
  - file: b.html
`,
	})
	h, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, _ := h.SiteInfo(context.Background())
	if info.SiteID != "maison" || info.DisplayName() != "Maison Dupont" {
		t.Fatalf("site info = %+v", info)
	}
	entries, _ := h.PagesAndFolders(context.Background())
	pages := host.Pages(entries)
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}
	if name, _ := pages[0].Name(context.Background()); name != "Accueil" {
		t.Fatalf("manifest name ignored: %q", name)
	}
	if name, _ := pages[1].Name(context.Background()); name != "Notre Histoire" {
		t.Fatalf("title fallback = %q", name)
	}
	if slug, _ := pages[1].Slug(context.Background()); slug != "b" {
		t.Fatalf("slug from file = %q", slug)
	}
}

func TestBadManifest(t *testing.T) {
	root := writeSite(t, map[string]string{"site.yaml": "pages: [unclosed"})
	if _, err := Open(root); err == nil {
		t.Fatal("expected manifest parse error")
	}
}

func TestElementsAndCapabilities(t *testing.T) {
	root := writeSite(t, map[string]string{"index.html": homeHTML})
	h, _ := Open(root)
	if _, err := h.Elements(context.Background()); !errors.Is(err, ErrNoActivePage) {
		t.Fatalf("expected ErrNoActivePage, got %v", err)
	}
	if err := h.SelectPage(context.Background(), "index"); err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	els, err := h.Elements(context.Background())
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	var img host.Element
	for _, el := range els {
		attrs, _ := el.CustomAttributes(context.Background())
		if v, _ := host.Lookup(attrs, "data-wording-key"); v == "home.logo" {
			img = el
		}
	}
	if img == nil || img.Capabilities().TextContent {
		t.Fatal("void elements must not accept text content")
	}
}

func TestSingleSessionWritesFile(t *testing.T) {
	root := writeSite(t, map[string]string{"index.html": homeHTML})
	h, _ := Open(root)
	if err := h.SelectPage(context.Background(), "index.html"); err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	s := deploy.NewSession(h)
	s.Load(wording.Data{SiteID: "x", Version: "1.0.0", Content: wording.ContentMap{
		"home.title": "Fish & <chips>",
		"home.logo":  "ignored",
	}})
	// ApplyChanges targets the active page whatever the key prefixes.
	rep, err := s.ApplyChanges(context.Background())
	if err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if rep.Stats.Applied != 1 || rep.Stats.Failed != 1 || rep.Stats.Missing != 1 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
	if rep.Changes[0].OldValue != "Welcome" {
		t.Fatalf("old value = %q", rep.Changes[0].OldValue)
	}

	out := readFile(t, filepath.Join(root, "index.html"))
	if !strings.Contains(out, `<h1 data-wording-key="home.title">Fish &amp; &lt;chips&gt;</h1>`) {
		t.Fatalf("file not rewritten with escaped text:\n%s", out)
	}
	if !strings.Contains(out, "Old <b>lead</b>") {
		t.Fatal("untouched elements must keep their markup")
	}
}

func TestMultiPageDeployAcrossFiles(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":          homeHTML,
		"notre-histoire.html": storyHTML,
		"contact.html":        `<html><head><title>Contact</title></head><body><p data-wording-key="contact.lead">x</p></body></html>`,
	})
	h, _ := Open(root)
	s := deploy.NewSession(h)
	s.Load(wording.Data{SiteID: "x", Version: "1.0.0", Content: wording.ContentMap{
		"home.lead":           "Nouveau",
		"notre-histoire.lead": "Depuis 1990",
	}})

	p, err := s.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if p.Mode != deploy.MultiPage || p.Multi.Summary.TotalPages != 2 {
		t.Fatalf("preview summary = %+v", p.Multi.Summary)
	}
	rep, err := s.Deploy(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if rep.PageName != "2 pages" || rep.Stats.Applied != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if out := readFile(t, filepath.Join(root, "notre-histoire.html")); !strings.Contains(out, ">Depuis 1990</p>") {
		t.Fatalf("story not written:\n%s", out)
	}
	if out := readFile(t, filepath.Join(root, "contact.html")); !strings.Contains(out, ">x</p>") {
		t.Fatal("untargeted page must not change")
	}
}
