// Package host defines what the deployment engine needs from a page builder:
// page enumeration, an active-page cursor and element read/write primitives.
package host

import (
	"context"
	"errors"
)

// EntryType distinguishes pages from folders in a site tree listing.
type EntryType string

const (
	TypePage   EntryType = "Page"
	TypeFolder EntryType = "Folder"
)

// SiteInfo identifies the site being edited.
type SiteInfo struct {
	SiteID    string
	SiteName  string
	ShortName string
}

// DisplayName prefers the full site name and falls back to the short name.
func (s SiteInfo) DisplayName() string {
	if s.SiteName != "" {
		return s.SiteName
	}
	return s.ShortName
}

// Page is a switchable page. Name and Slug may fail independently.
type Page interface {
	ID() string
	Name(ctx context.Context) (string, error)
	Slug(ctx context.Context) (string, error)
}

// Entry is one item of a pages-and-folders listing. Page is nil for folders.
type Entry struct {
	Type EntryType
	Page Page
}

// Attribute is a custom attribute set on an element.
type Attribute struct {
	Name  string
	Value string
}

// Capabilities are resolved once per element by the adapter.
type Capabilities struct {
	CustomAttributes bool
	TextContent      bool
}

// Element is a node of the active page.
type Element interface {
	Capabilities() Capabilities
	CustomAttributes(ctx context.Context) ([]Attribute, error)
	SetTextContent(ctx context.Context, value string) error
}

// TextReader is implemented by elements able to report their current text.
type TextReader interface {
	TextContent(ctx context.Context) (string, error)
}

// ReadyWaiter is implemented by hosts that can signal that the page selected
// by SwitchPage finished loading.
type ReadyWaiter interface {
	WaitReady(ctx context.Context) error
}

// ErrNoActivePage is returned by Elements before a page was selected.
var ErrNoActivePage = errors.New("no active page selected")

// ActivePager is implemented by hosts that may have no active page yet.
type ActivePager interface {
	HasActivePage() bool
}

// Host is the page-builder surface. Elements only covers the active page.
type Host interface {
	SiteInfo(ctx context.Context) (SiteInfo, error)
	Elements(ctx context.Context) ([]Element, error)
	PagesAndFolders(ctx context.Context) ([]Entry, error)
	SwitchPage(ctx context.Context, p Page) error
}

// Pages filters a listing down to page entries, preserving order.
func Pages(entries []Entry) []Page {
	out := make([]Page, 0, len(entries))
	for _, e := range entries {
		if e.Type == TypePage && e.Page != nil {
			out = append(out, e.Page)
		}
	}
	return out
}

// Lookup returns the value of the named attribute.
func Lookup(attrs []Attribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
