package deploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Scan decides single- vs multi-page mode from the content keys and runs the
// matching preview. The decision is carried by the returned Preview.
func (s *Session) Scan(ctx context.Context, onProgress ProgressFunc) (*Preview, error) {
	if s.data == nil {
		return nil, ErrNotLoaded
	}
	if IsMultiPage(s.data.Content) {
		res, err := s.ScanAllPages(ctx, onProgress)
		if err != nil {
			return nil, err
		}
		return &Preview{Mode: MultiPage, Multi: res}, nil
	}
	if s.NeedsPage() {
		return nil, errNoActivePage()
	}
	res, err := s.PreviewChanges(ctx)
	if err != nil {
		return nil, err
	}
	return &Preview{Mode: SinglePage, Single: &res}, nil
}

// Deploy applies the content in the mode fixed by preview. A multi-page run
// returns a synthetic report whose Changes are empty, whose Stats sum the
// pages and whose MultiPageReports hold the per-page detail.
func (s *Session) Deploy(ctx context.Context, preview *Preview, onProgress ProgressFunc) (*DeploymentReport, error) {
	if s.data == nil {
		return nil, ErrNotLoaded
	}
	if preview == nil {
		return nil, errors.New("deploy requires a preview")
	}
	if preview.Mode == SinglePage {
		if s.NeedsPage() {
			return nil, errNoActivePage()
		}
		return s.ApplyChanges(ctx)
	}

	res, err := s.DeployToAllPages(ctx, onProgress)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	top := &DeploymentReport{
		DeploymentID: fmt.Sprintf("multi-%d", now.UnixMilli()),
		SiteID:       s.data.SiteID,
		Timestamp:    formatTimestamp(now),
		PageName:     fmt.Sprintf("%d pages", res.Summary.TotalPages),
		Changes:      make([]ChangeReport, 0),
		Warnings:     make([]string, 0),
		Errors:       make([]string, 0),
		Cancelled:    res.Cancelled,
	}
	for _, r := range res.Reports {
		top.Stats = top.Stats.Add(r.Stats)
	}
	if len(res.Reports) > 0 {
		top.MultiPageReports = res.Reports
	}
	return top, nil
}

// Stage is a step of the operator flow.
type Stage int

const (
	StageIdle Stage = iota
	StageScanning
	StagePreviewing
	StageDeploying
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StagePreviewing:
		return "previewing"
	case StageDeploying:
		return "deploying"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

// Flow is the idle → scanning → previewing → deploying → done state machine
// around a Session. Failed scans and deploys return to idle. Stage reads are
// safe while a step runs on another goroutine.
type Flow struct {
	session *Session

	mu      sync.Mutex
	stage   Stage
	preview *Preview
	report  *DeploymentReport
	lastErr error
}

// NewFlow starts an idle flow over s.
func NewFlow(s *Session) *Flow { return &Flow{session: s} }

// Session returns the underlying session.
func (f *Flow) Session() *Session { return f.session }

// Stage returns the current stage.
func (f *Flow) Stage() Stage { f.mu.Lock(); defer f.mu.Unlock(); return f.stage }

// Preview returns the preview of the last successful scan.
func (f *Flow) Preview() *Preview { f.mu.Lock(); defer f.mu.Unlock(); return f.preview }

// Report returns the report of the last successful deploy.
func (f *Flow) Report() *DeploymentReport { f.mu.Lock(); defer f.mu.Unlock(); return f.report }

// Err returns the error that last sent the flow back to idle.
func (f *Flow) Err() error { f.mu.Lock(); defer f.mu.Unlock(); return f.lastErr }

func (f *Flow) enter(from []Stage, to Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range from {
		if f.stage == st {
			f.stage = to
			f.lastErr = nil
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, f.stage, to)
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.stage = StageIdle
	f.lastErr = err
	f.mu.Unlock()
}

// Scan runs a scan from idle, or a re-scan from previewing or done.
func (f *Flow) Scan(ctx context.Context, onProgress ProgressFunc) (*Preview, error) {
	if err := f.enter([]Stage{StageIdle, StagePreviewing, StageDone}, StageScanning); err != nil {
		return nil, err
	}
	p, err := f.session.Scan(ctx, onProgress)
	if err != nil {
		f.fail(err)
		return nil, err
	}
	f.mu.Lock()
	f.stage = StagePreviewing
	f.preview = p
	f.report = nil
	f.mu.Unlock()
	return p, nil
}

// Deploy applies the previewed changes.
func (f *Flow) Deploy(ctx context.Context, onProgress ProgressFunc) (*DeploymentReport, error) {
	if err := f.enter([]Stage{StagePreviewing}, StageDeploying); err != nil {
		return nil, err
	}
	rep, err := f.session.Deploy(ctx, f.Preview(), onProgress)
	if err != nil {
		f.fail(err)
		return nil, err
	}
	f.mu.Lock()
	f.stage = StageDone
	f.report = rep
	f.mu.Unlock()
	return rep, nil
}

// Reset returns to idle, keeping the loaded wording data.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.stage = StageIdle
	f.preview = nil
	f.report = nil
	f.lastErr = nil
	f.mu.Unlock()
}
