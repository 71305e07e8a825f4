package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/report"
)

// --- Model / State ---
type state int

const (
	stateInput state = iota
	statePickPage
	stateScanning
	statePreview
	stateConfirm
	stateDeploying
	stateDone
)

func (s state) String() string {
	switch s {
	case stateInput:
		return "input"
	case statePickPage:
		return "pick-page"
	case stateScanning:
		return "scanning"
	case statePreview:
		return "preview"
	case stateConfirm:
		return "confirm"
	case stateDeploying:
		return "deploying"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// Options wires the TUI to a flow and its side outputs.
type Options struct {
	Flow      *deploy.Flow
	SiteID    string // fills data loaded without a site id
	SiteName  string
	ReportDir string
	History   *report.History // optional
	File      string          // pre-filled wording file path
}

// previewRow is one line of the preview list.
type previewRow struct {
	Page     string
	Key      string
	Value    string
	HasValue bool
}

type FilterState struct {
	prefixing   bool
	prefixInput textinput.Model
	prefix      string
}

type SearchState struct {
	searching   bool
	searchInput textinput.Model
	query       string
	filteredIdx []int // visible index -> rows index
}

type Model struct {
	state         state
	opts          Options
	flow          *deploy.Flow
	statusMsg     string
	err           error
	width, height int

	input    textinput.Model
	spinner  spinner.Model
	bar      progress.Model
	viewport viewport.Model

	// running operation
	cancel   context.CancelFunc
	progress deploy.ScanProgress

	// page picker for keys without a page prefix
	pages      []deploy.PageChoice
	pageCursor int
	pageName   string

	rows      []previewRow
	search    SearchState
	filter    FilterState
	filterCfg FilterConfig

	report     *deploy.DeploymentReport
	reportPath string
}

// New builds the initial model.
func New(opts Options) Model {
	m := Model{
		state:     stateInput,
		opts:      opts,
		flow:      opts.Flow,
		filterCfg: DefaultFilterConfig,
	}

	ti := textinput.New()
	ti.Placeholder = "wording.json or wording.csv"
	ti.CharLimit = 500
	ti.Width = 60
	ti.SetValue(opts.File)
	ti.Focus()
	m.input = ti

	si := textinput.New()
	si.Placeholder = "Fuzzy search…"
	si.CharLimit = 200
	si.Width = 40
	m.search.searchInput = si

	pi := textinput.New()
	pi.Placeholder = "Key prefix (e.g. home.)"
	pi.CharLimit = 200
	pi.Width = 40
	m.filter.prefixInput = pi

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = subtleStyle
	m.spinner = sp

	m.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	m.viewport = viewport.New(80, 20)

	if opts.SiteName != "" {
		m.statusMsg = "Site: " + opts.SiteName
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// visibleRows returns the rows left after search and prefix filtering.
func (m Model) visibleRows() []previewRow {
	if m.search.filteredIdx == nil {
		return m.rows
	}
	out := make([]previewRow, 0, len(m.search.filteredIdx))
	for _, i := range m.search.filteredIdx {
		out = append(out, m.rows[i])
	}
	return out
}

// applyFilter recomputes the visible rows from the current query and prefix.
func (m *Model) applyFilter() {
	if m.search.query == "" && m.filter.prefix == "" {
		m.search.filteredIdx = nil
	} else {
		m.search.filteredIdx = filterRows(m.rows, m.search.query, m.filter.prefix, m.filterCfg)
	}
	m.viewport.SetContent(m.previewContent())
	m.viewport.GotoTop()
}

// rowsFor flattens a preview into list rows.
func rowsFor(p *deploy.Preview) []previewRow {
	var rows []previewRow
	add := func(page string, changes []deploy.ChangeRecord) {
		for _, c := range changes {
			rows = append(rows, previewRow{Page: page, Key: c.Key, Value: c.NewValue, HasValue: c.HasValue})
		}
	}
	switch {
	case p == nil:
	case p.Mode == deploy.MultiPage && p.Multi != nil:
		for _, pp := range p.Multi.PagesPreviews {
			add(pp.PageName, pp.Changes)
		}
	case p.Single != nil:
		add("", p.Single.Changes)
	}
	return rows
}
