package webflow

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
)

// ErrNoActivePage is returned by Elements before a page was selected.
var ErrNoActivePage = host.ErrNoActivePage

// Host adapts one Webflow site to host.Host. The active page is a cursor
// kept client side; every Elements call re-reads the page DOM.
type Host struct {
	client *Client
	siteID string
	active string
}

// NewHost binds client to siteID.
func NewHost(client *Client, siteID string) *Host {
	return &Host{client: client, siteID: siteID}
}

func (h *Host) SiteInfo(ctx context.Context) (host.SiteInfo, error) {
	s, err := h.client.GetSite(ctx, h.siteID)
	if err != nil {
		return host.SiteInfo{}, err
	}
	return host.SiteInfo{SiteID: s.ID, SiteName: s.DisplayName, ShortName: s.ShortName}, nil
}

// PagesAndFolders lists the site's pages. Archived pages are left out; the
// Data API has no folder entries.
func (h *Host) PagesAndFolders(ctx context.Context) ([]host.Entry, error) {
	pages, err := h.client.ListPages(ctx, h.siteID)
	if err != nil {
		return nil, err
	}
	out := make([]host.Entry, 0, len(pages))
	for _, p := range pages {
		if p.Archived {
			logx.Debugf("skipping archived page %s (%s)", p.ID, p.Slug)
			continue
		}
		out = append(out, host.Entry{Type: host.TypePage, Page: page{p}})
	}
	return out, nil
}

// SwitchPage moves the cursor; the API has nothing to load.
func (h *Host) SwitchPage(_ context.Context, p host.Page) error {
	if p == nil || p.ID() == "" {
		return errors.New("switch to empty page")
	}
	h.active = p.ID()
	return nil
}

// WaitReady returns at once since DOM reads are always current.
func (h *Host) WaitReady(ctx context.Context) error { return ctx.Err() }

// SelectPage makes the page with the given id or slug active. It is used to
// pick the page of a single-page run.
func (h *Host) SelectPage(ctx context.Context, idOrSlug string) error {
	pages, err := h.client.ListPages(ctx, h.siteID)
	if err != nil {
		return err
	}
	want := strings.Trim(idOrSlug, "/")
	for _, p := range pages {
		if p.ID == want || p.Slug == want {
			h.active = p.ID
			return nil
		}
	}
	return fmt.Errorf("page %q not found in site %s", idOrSlug, h.siteID)
}

// ActivePage returns the id of the active page.
func (h *Host) ActivePage() string { return h.active }

func (h *Host) HasActivePage() bool { return h.active != "" }

func (h *Host) Elements(ctx context.Context) ([]host.Element, error) {
	if h.active == "" {
		return nil, ErrNoActivePage
	}
	nodes, err := h.client.GetPageDOM(ctx, h.active)
	if err != nil {
		return nil, err
	}
	out := make([]host.Element, 0, len(nodes))
	for i := range nodes {
		out = append(out, &element{client: h.client, pageID: h.active, node: nodes[i]})
	}
	return out, nil
}

type page struct{ p Page }

func (p page) ID() string { return p.p.ID }

func (p page) Name(context.Context) (string, error) {
	if strings.TrimSpace(p.p.Title) == "" {
		return "", fmt.Errorf("page %s has no title", p.p.ID)
	}
	return p.p.Title, nil
}

func (p page) Slug(context.Context) (string, error) {
	if p.p.Slug == "" {
		return "", fmt.Errorf("page %s has no slug", p.p.ID)
	}
	return p.p.Slug, nil
}

// element is one DOM node. Only text nodes accept text content.
type element struct {
	client *Client
	pageID string
	node   Node
}

func (e *element) Capabilities() host.Capabilities {
	return host.Capabilities{CustomAttributes: true, TextContent: e.node.Text != nil}
}

func (e *element) CustomAttributes(context.Context) ([]host.Attribute, error) {
	names := make([]string, 0, len(e.node.Attributes))
	for k := range e.node.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	attrs := make([]host.Attribute, 0, len(names))
	for _, n := range names {
		attrs = append(attrs, host.Attribute{Name: n, Value: e.node.Attributes[n]})
	}
	return attrs, nil
}

func (e *element) TextContent(context.Context) (string, error) {
	if e.node.Text == nil {
		return "", errors.New("not a text node")
	}
	return e.node.Text.Text, nil
}

// SetTextContent sends value escaped so it is rendered literally.
func (e *element) SetTextContent(ctx context.Context, value string) error {
	if e.node.Text == nil {
		return fmt.Errorf("node %s is not a text node", e.node.ID)
	}
	escaped := html.EscapeString(value)
	if err := e.client.UpdatePageDOM(ctx, e.pageID, []NodeUpdate{{NodeID: e.node.ID, Text: escaped}}); err != nil {
		return err
	}
	e.node.Text = &NodeText{HTML: escaped, Text: value}
	return nil
}
