package ui

import (
	"fmt"
	"strings"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/report"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Wording Sync"))
	if m.opts.SiteName != "" {
		b.WriteString("  " + subtitleStyle.Render(m.opts.SiteName))
	}
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", max(10, m.width-2))))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(bannerStyle.Render(errorStyle.Render("Error: ")+m.err.Error()) + "\n\n")
	}

	switch m.state {
	case stateInput:
		b.WriteString("Wording file to deploy:\n\n")
		b.WriteString(m.input.View() + "\n\n")
		b.WriteString(renderFooter(m.statusMsg, "Enter load and scan  |  Esc quit"))

	case statePickPage:
		b.WriteString("Page to deploy to:\n\n")
		b.WriteString(m.pageList() + "\n\n")
		b.WriteString(renderFooter(m.statusMsg, "↑/↓ move  |  Enter select  |  Esc back"))

	case stateScanning, stateDeploying:
		verb := "Scanning"
		if m.state == stateDeploying {
			verb = "Deploying"
		}
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), verb))
		b.WriteString(m.progressView() + "\n\n")
		b.WriteString(renderFooter(m.statusMsg, "Esc cancel after the current page"))

	case statePreview:
		b.WriteString(m.previewHeader() + "\n")
		switch {
		case m.search.searching:
			b.WriteString(m.search.searchInput.View() + "\n")
		case m.filter.prefixing:
			b.WriteString(m.filter.prefixInput.View() + "\n")
		case m.search.query != "" || m.filter.prefix != "":
			b.WriteString(subtleStyle.Render(fmt.Sprintf("filter: %q  prefix: %q  (%d of %d)", m.search.query, m.filter.prefix, len(m.visibleRows()), len(m.rows))) + "\n")
		}
		b.WriteString(m.viewport.View() + "\n\n")
		b.WriteString(renderFooter(m.statusMsg,
			"Enter deploy  |  / search  |  p key prefix  |  c clear filter",
			"r rescan  |  g change page  |  Esc back  |  q quit"))

	case stateConfirm:
		b.WriteString(m.previewHeader() + "\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf("Apply %d changes to the site?", m.flow.Preview().ApplicableChanges())) + "\n\n")
		b.WriteString(renderFooter("", "y confirm  |  n back"))

	case stateDone:
		b.WriteString(m.viewport.View() + "\n\n")
		status := ""
		if m.reportPath != "" {
			status = "Report saved to " + m.reportPath
		}
		b.WriteString(renderFooter(status, "Enter new deployment  |  ↑/↓ scroll  |  q quit"))
	}
	return b.String()
}

// pageList renders the window of pages around the cursor.
func (m Model) pageList() string {
	if m.pages == nil {
		return subtleStyle.Render("Loading pages…")
	}
	height := max(5, m.viewport.Height)
	start := max(0, m.pageCursor-height+1)
	end := min(len(m.pages), start+height)
	var b strings.Builder
	for i := start; i < end; i++ {
		p := m.pages[i]
		line := p.Name
		if p.Slug != "" {
			line += "  " + subtleStyle.Render("/"+p.Slug)
		}
		if i == m.pageCursor {
			b.WriteString(okStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) progressView() string {
	p := m.progress
	if p.Total == 0 {
		return subtleStyle.Render("Preparing…")
	}
	pct := float64(p.Completed) / float64(p.Total)
	return fmt.Sprintf("%s\n%s (%d/%d)", m.bar.ViewAs(pct), p.CurrentPage, p.Completed, p.Total)
}

func (m Model) previewHeader() string {
	p := m.flow.Preview()
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Mode == deploy.MultiPage && p.Multi != nil {
		s := p.Multi.Summary
		b.WriteString(fmt.Sprintf("Multi-page preview: %d pages, %d elements, %s with value, %s missing\n",
			s.TotalPages, s.TotalElements, okStyle.Render(fmt.Sprint(s.TotalWithValue)), warnStyle.Render(fmt.Sprint(s.TotalMissing))))
	} else if p.Single != nil {
		label := "Current page"
		if m.pageName != "" {
			label = m.pageName
		}
		b.WriteString(fmt.Sprintf("%s preview: %d elements, %s with value, %s missing\n",
			label, len(p.Single.Changes), okStyle.Render(fmt.Sprint(p.ApplicableChanges())), warnStyle.Render(fmt.Sprint(len(p.Single.MissingKeys)))))
	}
	if unused := p.UnusedKeys(); len(unused) > 0 {
		shown, more := report.Truncate(unused, report.MaxDisplayed)
		line := "Unused keys: " + strings.Join(shown, ", ")
		if more > 0 {
			line += fmt.Sprintf(" … and %d more", more)
		}
		b.WriteString(subtleStyle.Render(line) + "\n")
	}
	return b.String()
}

// previewContent renders the visible rows grouped by page.
func (m Model) previewContent() string {
	rows := m.visibleRows()
	if len(rows) == 0 {
		return subtleStyle.Render("No tagged elements.")
	}
	var b strings.Builder
	page := "\x00"
	for _, r := range rows {
		if r.Page != page {
			page = r.Page
			if page != "" {
				b.WriteString(pageStyle.Render(page) + "\n")
			}
		}
		if r.HasValue {
			b.WriteString(fmt.Sprintf("  %s %s → %s\n", symbolValue, r.Key, r.Value))
		} else {
			b.WriteString(fmt.Sprintf("  %s %s %s\n", symbolMissing, r.Key, missingStyle.Render("(no value)")))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// reportContent renders a deployment report with truncated warning and error lists.
func (m Model) reportContent() string {
	r := m.report
	if r == nil {
		return ""
	}
	var b strings.Builder
	title := "Deployment complete"
	if r.Cancelled {
		title = "Deployment cancelled"
	}
	b.WriteString(fmt.Sprintf("%s – %s (%s)\n\n", title, r.PageName, r.DeploymentID))

	var stats strings.Builder
	stats.WriteString(okStyle.Render(fmt.Sprintf("✓ %d applied", r.Stats.Applied)))
	if r.Stats.Failed > 0 {
		stats.WriteString("  " + errorStyle.Render(fmt.Sprintf("✗ %d failed", r.Stats.Failed)))
	}
	if r.Stats.Missing > 0 {
		stats.WriteString("  " + warnStyle.Render(fmt.Sprintf("○ %d missing", r.Stats.Missing)))
	}
	stats.WriteString(fmt.Sprintf("\n%d keys total", r.Stats.TotalKeys))
	b.WriteString(statsBoxStyle.Render(stats.String()) + "\n\n")

	pages := r.MultiPageReports
	if len(pages) == 0 {
		pages = []deploy.DeploymentReport{*r}
	}
	for _, pr := range pages {
		if len(r.MultiPageReports) > 0 {
			b.WriteString(pageStyle.Render(fmt.Sprintf("%s  %d/%d applied", pr.PageName, pr.Stats.Applied, pr.Stats.TotalKeys)) + "\n")
		}
		writeList(&b, "Errors", errorStyle.Render, pr.Errors)
		writeList(&b, "Warnings", warnStyle.Render, pr.Warnings)
		for _, c := range pr.Changes {
			if c.Status == deploy.StatusSuccess {
				continue
			}
			st := statusStyles[string(c.Status)]
			b.WriteString(fmt.Sprintf("  %s %s %s\n", st.Render(string(c.Status)), c.Key, c.Message))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeList(b *strings.Builder, label string, render func(...string) string, list []string) {
	if len(list) == 0 {
		return
	}
	shown, more := report.Truncate(list, report.MaxDisplayed)
	b.WriteString(render(fmt.Sprintf("%s (%d)", label, len(list))) + "\n")
	for _, s := range shown {
		b.WriteString("  - " + s + "\n")
	}
	if more > 0 {
		b.WriteString(subtleStyle.Render(fmt.Sprintf("  … and %d more", more)) + "\n")
	}
}
