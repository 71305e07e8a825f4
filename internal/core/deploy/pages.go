package deploy

import (
	"context"
	"fmt"

	"wording-sync/internal/host"
)

// PageChoice is a selectable page of the site.
type PageChoice struct {
	Page host.Page
	Name string
	Slug string
}

// errNoActivePage wraps host.ErrNoActivePage for single-page runs.
func errNoActivePage() error {
	return fmt.Errorf("keys without a page prefix need an active page: %w", host.ErrNoActivePage)
}

// NeedsPage reports whether the loaded content targets the active page of
// a host that has none selected.
func (s *Session) NeedsPage() bool {
	if s.data == nil || IsMultiPage(s.data.Content) {
		return false
	}
	ap, ok := s.host.(host.ActivePager)
	return ok && !ap.HasActivePage()
}

// Pages lists the site's pages in host order with their display names.
func (s *Session) Pages(ctx context.Context) ([]PageChoice, error) {
	entries, err := s.host.PagesAndFolders(ctx)
	if err != nil {
		return nil, err
	}
	pages := host.Pages(entries)
	out := make([]PageChoice, 0, len(pages))
	for _, p := range pages {
		c := PageChoice{Page: p}
		if name, err := pageName(ctx, p); err == nil {
			c.Name = name
		} else {
			c.Name = unknownPageLabel
		}
		if slug, err := p.Slug(ctx); err == nil {
			c.Slug = slug
		}
		out = append(out, c)
	}
	return out, nil
}

// SelectPage makes p the active page for single-page runs.
func (s *Session) SelectPage(ctx context.Context, p host.Page) error {
	if p == nil {
		return fmt.Errorf("select page: %w", host.ErrNoActivePage)
	}
	return s.switchAndSettle(ctx, p)
}
