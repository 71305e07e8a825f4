package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/infra/logx"
)

// ---------- Update ----------
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch m.state {
		case stateInput:
			return m.handleInputKey(msg)
		case statePickPage:
			return m.handlePickPageKey(msg.String())
		case stateScanning, stateDeploying:
			return m.handleBusyKey(msg.String())
		case statePreview:
			return m.handlePreviewKey(msg)
		case stateConfirm:
			return m.handleConfirmKey(msg.String())
		case stateDone:
			return m.handleDoneKey(msg)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// header, divider, summary and footer
		const chrome = 12
		m.viewport.Width = max(20, m.width-2)
		m.viewport.Height = max(3, m.height-chrome)
		m.bar.Width = max(10, min(60, m.width-20))

	case spinner.TickMsg:
		if m.state != stateScanning && m.state != stateDeploying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.progress = msg.p
		return m, listenProgress(msg.ch)

	case loadMsg:
		if msg.err != nil {
			m.err = msg.err
			m.statusMsg = ""
			return m, nil
		}
		m.flow.Reset()
		m.flow.Session().Load(msg.data)
		m.statusMsg = fmt.Sprintf("Loaded %d keys (version %s)", len(msg.data.Content), msg.data.Version)
		logx.Infof("wording loaded: %d keys, site %s", len(msg.data.Content), msg.data.SiteID)
		return m.beginScan()

	case pagesMsg:
		if m.state != statePickPage {
			return m, nil
		}
		if msg.err == nil && len(msg.pages) == 0 {
			msg.err = errors.New("the site has no pages to deploy to")
		}
		if msg.err != nil {
			m.err = msg.err
			m.state = stateInput
			m.input.Focus()
			return m, nil
		}
		m.pages = msg.pages
		m.pageCursor = 0
		return m, nil

	case pageMsg:
		if m.state != statePickPage {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.pageName = msg.choice.Name
		m.statusMsg = "Page: " + m.pageName
		logx.Infof("active page selected: %s", m.pageName)
		return m.startScan()

	case scanMsg:
		m.stopRun()
		if msg.err != nil {
			m.err = msg.err
			m.state = stateInput
			m.input.Focus()
			return m, nil
		}
		m.rows = rowsFor(msg.preview)
		m.search.query, m.filter.prefix = "", ""
		m.applyFilter()
		m.state = statePreview
		m.statusMsg = ""
		if msg.preview.Multi != nil && msg.preview.Multi.Cancelled {
			m.statusMsg = "Scan cancelled, preview is partial"
		}
		return m, nil

	case deployMsg:
		m.stopRun()
		if msg.report == nil {
			m.err = msg.err
			m.state = stateInput
			m.input.Focus()
			return m, nil
		}
		m.err = msg.err
		m.report = msg.report
		m.reportPath = msg.path
		m.state = stateDone
		m.viewport.SetContent(m.reportContent())
		m.viewport.GotoTop()
		return m, nil
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		m.err = nil
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			if m.flow.Session().Loaded() {
				return m.beginScan()
			}
			m.statusMsg = "Enter the path of a wording file"
			return m, nil
		}
		m.statusMsg = "Loading " + path + "…"
		return m, loadCmd(path, m.opts.SiteID)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleBusyKey(key string) (tea.Model, tea.Cmd) {
	if key == "esc" && m.cancel != nil {
		m.cancel()
		m.statusMsg = "Cancelling after the current page…"
	}
	return m, nil
}

func (m Model) handlePreviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.search.searching {
		switch key {
		case "enter":
			m.search.searching = false
			m.search.searchInput.Blur()
		case "esc":
			m.search.searching = false
			m.search.searchInput.Blur()
			m.search.searchInput.SetValue("")
			m.search.query = ""
			m.applyFilter()
		default:
			var cmd tea.Cmd
			m.search.searchInput, cmd = m.search.searchInput.Update(msg)
			m.search.query = m.search.searchInput.Value()
			m.applyFilter()
			return m, cmd
		}
		return m, nil
	}
	if m.filter.prefixing {
		switch key {
		case "enter":
			m.filter.prefixing = false
			m.filter.prefixInput.Blur()
			m.filter.prefix = m.filter.prefixInput.Value()
			m.applyFilter()
		case "esc":
			m.filter.prefixing = false
			m.filter.prefixInput.Blur()
		default:
			var cmd tea.Cmd
			m.filter.prefixInput, cmd = m.filter.prefixInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		m.search.searching = true
		return m, m.search.searchInput.Focus()
	case "p":
		m.filter.prefixing = true
		return m, m.filter.prefixInput.Focus()
	case "c":
		m.search.query, m.filter.prefix = "", ""
		m.search.searchInput.SetValue("")
		m.filter.prefixInput.SetValue("")
		m.applyFilter()
	case "r":
		return m.startScan()
	case "g":
		if p := m.flow.Preview(); p != nil && p.Mode == deploy.SinglePage {
			return m.startPagePick()
		}
	case "esc":
		m.flow.Reset()
		m.state = stateInput
		m.input.Focus()
		m.statusMsg = ""
	case "enter", "d":
		if m.flow.Preview().ApplicableChanges() == 0 {
			m.statusMsg = "Nothing to apply: no scanned key has a value"
			return m, nil
		}
		m.state = stateConfirm
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handlePickPageKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.state = stateInput
		m.input.Focus()
		m.statusMsg = ""
	case "up", "k":
		if m.pageCursor > 0 {
			m.pageCursor--
		}
	case "down", "j":
		if m.pageCursor < len(m.pages)-1 {
			m.pageCursor++
		}
	case "enter":
		if len(m.pages) == 0 {
			return m, nil
		}
		m.err = nil
		m.statusMsg = "Opening " + m.pages[m.pageCursor].Name + "…"
		return m, selectPageCmd(m.flow.Session(), m.pages[m.pageCursor])
	}
	return m, nil
}

func (m Model) handleConfirmKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "enter":
		return m.startDeploy()
	case "n", "esc":
		m.state = statePreview
	}
	return m, nil
}

func (m Model) handleDoneKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "r", "enter":
		m.flow.Reset()
		m.report, m.reportPath, m.rows, m.err = nil, "", nil, nil
		m.state = stateInput
		m.input.Focus()
		m.statusMsg = "Data kept loaded: Enter on an empty path rescans it"
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// beginScan scans the loaded data, asking for the active page first when
// the keys carry no page prefix and the host has none selected.
func (m Model) beginScan() (tea.Model, tea.Cmd) {
	if m.flow.Session().NeedsPage() {
		return m.startPagePick()
	}
	return m.startScan()
}

func (m Model) startPagePick() (tea.Model, tea.Cmd) {
	m.state = statePickPage
	m.pages, m.pageCursor = nil, 0
	m.input.Blur()
	m.statusMsg = "Keys have no page prefix: pick the page to deploy to"
	return m, pagesCmd(m.flow.Session())
}

func (m Model) startScan() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := newProgressChan()
	m.cancel = cancel
	m.progress = deploy.ScanProgress{}
	m.err = nil
	m.state = stateScanning
	m.input.Blur()
	return m, tea.Batch(m.spinner.Tick, scanCmd(ctx, m.flow, ch), listenProgress(ch))
}

func (m Model) startDeploy() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := newProgressChan()
	m.cancel = cancel
	m.progress = deploy.ScanProgress{}
	m.state = stateDeploying
	m.statusMsg = ""
	dir := m.opts.ReportDir
	if dir == "" {
		dir = "."
	}
	return m, tea.Batch(m.spinner.Tick, deployCmd(ctx, m.flow, dir, m.opts.History, ch), listenProgress(ch))
}

// stopRun releases the context of the finished operation.
func (m *Model) stopRun() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
