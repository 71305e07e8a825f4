package deploy

import (
	"context"
	"errors"
	"time"

	"wording-sync/internal/host"
	"wording-sync/internal/wording"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

type fakeElement struct {
	attrs   []host.Attribute
	caps    host.Capabilities
	text    string
	attrErr error
	setErr  error
	writes  []string
}

func tagged(key, mode string) *fakeElement {
	attrs := []host.Attribute{{Name: wording.KeyAttribute, Value: key}}
	if mode != "" {
		attrs = append(attrs, host.Attribute{Name: wording.ModeAttribute, Value: mode})
	}
	return &fakeElement{
		attrs: attrs,
		caps:  host.Capabilities{CustomAttributes: true, TextContent: true},
		text:  "old " + key,
	}
}

func plain() *fakeElement {
	return &fakeElement{caps: host.Capabilities{CustomAttributes: true, TextContent: true}}
}

func (e *fakeElement) Capabilities() host.Capabilities { return e.caps }

func (e *fakeElement) CustomAttributes(context.Context) ([]host.Attribute, error) {
	if e.attrErr != nil {
		return nil, e.attrErr
	}
	return e.attrs, nil
}

func (e *fakeElement) SetTextContent(_ context.Context, v string) error {
	if e.setErr != nil {
		return e.setErr
	}
	e.text = v
	e.writes = append(e.writes, v)
	return nil
}

func (e *fakeElement) TextContent(context.Context) (string, error) { return e.text, nil }

type fakePage struct {
	id, name, slug   string
	nameErr, slugErr error
}

func (p *fakePage) ID() string { return p.id }

func (p *fakePage) Name(context.Context) (string, error) {
	if p.nameErr != nil {
		return "", p.nameErr
	}
	return p.name, nil
}

func (p *fakePage) Slug(context.Context) (string, error) {
	if p.slugErr != nil {
		return "", p.slugErr
	}
	return p.slug, nil
}

// fakeHost serves elements of the active page. The empty page id is active
// until the first switch.
type fakeHost struct {
	pages    []*fakePage
	folders  int
	elements map[string][]*fakeElement
	active   string

	listErr     error
	elementsErr error
	switchErr   map[string]error
	// elementsFn may rewrite the live list per call, keyed by call index.
	elementsFn func(call int, els []host.Element) []host.Element
	onSwitch   func(id string)

	elementCalls int
	switches     []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{elements: map[string][]*fakeElement{}, switchErr: map[string]error{}}
}

func (h *fakeHost) addPage(id, name string, els ...*fakeElement) *fakePage {
	p := &fakePage{id: id, name: name, slug: id}
	h.pages = append(h.pages, p)
	h.elements[id] = els
	return p
}

func (h *fakeHost) SiteInfo(context.Context) (host.SiteInfo, error) {
	return host.SiteInfo{SiteID: "site-1", SiteName: "Test"}, nil
}

func (h *fakeHost) Elements(context.Context) ([]host.Element, error) {
	call := h.elementCalls
	h.elementCalls++
	if h.elementsErr != nil {
		return nil, h.elementsErr
	}
	out := make([]host.Element, 0, len(h.elements[h.active]))
	for _, e := range h.elements[h.active] {
		out = append(out, e)
	}
	if h.elementsFn != nil {
		out = h.elementsFn(call, out)
	}
	return out, nil
}

func (h *fakeHost) PagesAndFolders(context.Context) ([]host.Entry, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	var out []host.Entry
	for i := 0; i < h.folders; i++ {
		out = append(out, host.Entry{Type: host.TypeFolder})
	}
	for _, p := range h.pages {
		out = append(out, host.Entry{Type: host.TypePage, Page: p})
	}
	return out, nil
}

func (h *fakeHost) SwitchPage(_ context.Context, p host.Page) error {
	h.switches = append(h.switches, p.ID())
	if err := h.switchErr[p.ID()]; err != nil {
		return err
	}
	h.active = p.ID()
	if h.onSwitch != nil {
		h.onSwitch(p.ID())
	}
	return nil
}

type readyHost struct {
	*fakeHost
	waitErr error
	waits   int
}

func (h *readyHost) WaitReady(context.Context) error {
	h.waits++
	return h.waitErr
}

var errBoom = errors.New("boom")

func newTestSession(h host.Host, content wording.ContentMap) (*Session, *fakeClock) {
	clk := newFakeClock()
	s := NewSession(h, WithClock(clk))
	s.Load(wording.Data{SiteID: "site-1", Version: wording.DefaultVersion, Content: content})
	return s, clk
}

// cursorHost has no active page until the first switch.
type cursorHost struct {
	*fakeHost
	selected bool
}

func (h *cursorHost) HasActivePage() bool { return h.selected }

func (h *cursorHost) SwitchPage(ctx context.Context, p host.Page) error {
	if err := h.fakeHost.SwitchPage(ctx, p); err != nil {
		return err
	}
	h.selected = true
	return nil
}
