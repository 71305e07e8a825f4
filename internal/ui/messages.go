package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/infra/logx"
	"wording-sync/internal/report"
	"wording-sync/internal/wording"
)

// ---------- Messages / Cmds ----------
type loadMsg struct {
	data wording.Data
	err  error
}

type pagesMsg struct {
	pages []deploy.PageChoice
	err   error
}

type pageMsg struct {
	choice deploy.PageChoice
	err    error
}

type scanMsg struct {
	preview *deploy.Preview
	err     error
}

type deployMsg struct {
	report *deploy.DeploymentReport
	path   string
	err    error
}

// progressMsg carries the newest tick of a running operation.
type progressMsg struct {
	p  deploy.ScanProgress
	ch chan deploy.ScanProgress
}

// newProgressChan returns a single-slot channel; publish keeps only the
// newest unread tick in it.
func newProgressChan() chan deploy.ScanProgress { return make(chan deploy.ScanProgress, 1) }

// publish stores p, replacing an unread tick. ch has a single producer.
func publish(ch chan deploy.ScanProgress, p deploy.ScanProgress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// listenProgress reads one progress update from the channel and returns it as a message
func listenProgress(ch chan deploy.ScanProgress) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg{p: p, ch: ch}
	}
}

func loadCmd(path, siteID string) tea.Cmd {
	return func() tea.Msg {
		d, err := wording.LoadFile(path, siteID)
		return loadMsg{data: d, err: err}
	}
}

func pagesCmd(s *deploy.Session) tea.Cmd {
	return func() tea.Msg {
		pages, err := s.Pages(context.Background())
		return pagesMsg{pages: pages, err: err}
	}
}

func selectPageCmd(s *deploy.Session, c deploy.PageChoice) tea.Cmd {
	return func() tea.Msg {
		return pageMsg{choice: c, err: s.SelectPage(context.Background(), c.Page)}
	}
}

func scanCmd(ctx context.Context, flow *deploy.Flow, ch chan deploy.ScanProgress) tea.Cmd {
	return func() tea.Msg {
		defer close(ch)
		p, err := flow.Scan(ctx, func(sp deploy.ScanProgress) { publish(ch, sp) })
		return scanMsg{preview: p, err: err}
	}
}

// deployCmd applies the previewed content, then saves the report file and
// records it in the history database when one is configured.
func deployCmd(ctx context.Context, flow *deploy.Flow, dir string, hist *report.History, ch chan deploy.ScanProgress) tea.Cmd {
	return func() tea.Msg {
		defer close(ch)
		rep, err := flow.Deploy(ctx, func(sp deploy.ScanProgress) { publish(ch, sp) })
		if err != nil {
			return deployMsg{err: err}
		}
		path, err := report.Save(dir, rep)
		if err != nil {
			return deployMsg{report: rep, err: fmt.Errorf("save report: %w", err)}
		}
		if hist != nil {
			if err := hist.Record(context.Background(), rep); err != nil {
				logx.Warnf("history: %v", err)
			}
		}
		logx.Event(logx.LevelInfo, "deployment finished", logx.Fields{
			"deployment_id": rep.DeploymentID,
			"applied":       rep.Stats.Applied,
			"failed":        rep.Stats.Failed,
			"missing":       rep.Stats.Missing,
			"cancelled":     rep.Cancelled,
		})
		return deployMsg{report: rep, path: path}
	}
}
