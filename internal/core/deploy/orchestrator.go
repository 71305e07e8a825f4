package deploy

import (
	"context"
	"time"

	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
)

// targetPage is a page retained for a multi-page run with its display name.
type targetPage struct {
	page host.Page
	name string
}

// pageName returns the page name, falling back to its slug.
func pageName(ctx context.Context, p host.Page) (string, error) {
	name, err := p.Name(ctx)
	if err == nil {
		return name, nil
	}
	slug, serr := p.Slug(ctx)
	if serr != nil {
		return "", serr
	}
	return slug, nil
}

// resolveTargets lists the site's pages in host order and keeps those
// matching a target token. Without tokens every page is kept.
func (s *Session) resolveTargets(ctx context.Context) ([]targetPage, error) {
	entries, err := s.host.PagesAndFolders(ctx)
	if err != nil {
		return nil, err
	}
	targets := InferTargetPages(s.data.Content)
	pages := host.Pages(entries)

	out := make([]targetPage, 0, len(pages))
	for _, p := range pages {
		name, err := pageName(ctx, p)
		if len(targets) > 0 {
			if err != nil || !matchesAny(name, targets) {
				continue
			}
		} else if err != nil {
			name = unknownPageLabel
		}
		out = append(out, targetPage{page: p, name: name})
	}
	logx.Event(logx.LevelInfo, "target pages resolved", logx.Fields{
		"tokens":   sortedTokens(targets),
		"pages":    len(pages),
		"retained": len(out),
	})
	return out, nil
}

// switchAndSettle activates p and waits for the host to load it. Hosts with
// a readiness signal are waited on, bounded by the ready timeout, with the
// fixed settle delay as fallback.
func (s *Session) switchAndSettle(ctx context.Context, p host.Page) error {
	if err := s.host.SwitchPage(ctx, p); err != nil {
		return err
	}
	if rw, ok := s.host.(host.ReadyWaiter); ok {
		wctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
		err := rw.WaitReady(wctx)
		cancel()
		if err == nil {
			return nil
		}
		logx.Warnf("page readiness wait failed, using fixed delay: %v", err)
	}
	if s.settleDelay > 0 {
		s.clock.Sleep(s.settleDelay)
	}
	return nil
}

// visitPages runs visit on each page in order. Per-page failures are logged
// and skipped. The context is checked before every switch; on cancellation
// the loop stops and reports true.
func (s *Session) visitPages(ctx context.Context, pages []targetPage, onProgress ProgressFunc, visit func(context.Context, targetPage) error) bool {
	total := len(pages)
	for i, tp := range pages {
		if err := ctx.Err(); err != nil {
			logx.Event(logx.LevelWarn, "multi-page run cancelled", logx.Fields{"completed": i, "total": total})
			notify(onProgress, ScanProgress{CurrentPage: "Cancelled", Completed: i, Total: total})
			return true
		}
		notify(onProgress, ScanProgress{CurrentPage: tp.name, Completed: i, Total: total})

		start := time.Now()
		if err := s.switchAndSettle(ctx, tp.page); err != nil {
			logx.Event(logx.LevelError, "page switch failed", logx.Fields{"page": tp.name, "error": err})
			continue
		}
		if err := visit(ctx, tp); err != nil {
			logx.Event(logx.LevelError, "page processing failed", logx.Fields{"page": tp.name, "error": err})
			continue
		}
		logx.Debugf("page %q processed in %dms", tp.name, time.Since(start).Milliseconds())
	}
	notify(onProgress, ScanProgress{CurrentPage: DonePageLabel, Completed: total, Total: total})
	return false
}

func notify(fn ProgressFunc, p ScanProgress) {
	if fn != nil {
		fn(p)
	}
}

// ScanAllPages previews every targeted page. Keys matched on any page are
// removed from a single unused-key set seeded from the whole content map.
func (s *Session) ScanAllPages(ctx context.Context, onProgress ProgressFunc) (*MultiScanResult, error) {
	if s.data == nil {
		return nil, ErrNotLoaded
	}
	pages, err := s.resolveTargets(ctx)
	if err != nil {
		return nil, &OrchestrationError{Op: "scan", Err: err}
	}

	unused := make(map[string]struct{}, len(s.data.Content))
	for k := range s.data.Content {
		unused[k] = struct{}{}
	}

	res := &MultiScanResult{PagesPreviews: make([]PagePreview, 0, len(pages))}
	res.Cancelled = s.visitPages(ctx, pages, onProgress, func(ctx context.Context, tp targetPage) error {
		pv, err := s.PreviewChanges(ctx)
		if err != nil {
			return err
		}
		withValue := 0
		for _, c := range pv.Changes {
			if c.HasValue {
				withValue++
				delete(unused, c.Key)
			}
		}
		res.PagesPreviews = append(res.PagesPreviews, PagePreview{
			PageName:    tp.name,
			Changes:     pv.Changes,
			MissingKeys: pv.MissingKeys,
			Stats: PageStats{
				Total:     len(pv.Changes),
				WithValue: withValue,
				Missing:   len(pv.MissingKeys),
			},
		})
		return nil
	})

	sum := ScanSummary{TotalPages: len(res.PagesPreviews)}
	for _, p := range res.PagesPreviews {
		sum.TotalElements += p.Stats.Total
		sum.TotalWithValue += p.Stats.WithValue
		sum.TotalMissing += p.Stats.Missing
	}
	sum.UnusedKeys = setToSorted(unused)
	res.Summary = sum
	return res, nil
}

// DeployToAllPages applies the content to every targeted page. A page whose
// switch or apply fails is left out of Reports.
func (s *Session) DeployToAllPages(ctx context.Context, onProgress ProgressFunc) (*MultiDeployResult, error) {
	if s.data == nil {
		return nil, ErrNotLoaded
	}
	pages, err := s.resolveTargets(ctx)
	if err != nil {
		return nil, &OrchestrationError{Op: "deploy", Err: err}
	}

	res := &MultiDeployResult{Reports: make([]DeploymentReport, 0, len(pages))}
	res.Cancelled = s.visitPages(ctx, pages, onProgress, func(ctx context.Context, tp targetPage) error {
		rep, err := s.ApplyChanges(ctx)
		if err != nil {
			return err
		}
		rep.PageName = tp.name
		res.Reports = append(res.Reports, *rep)

		res.Summary.TotalApplied += rep.Stats.Applied
		res.Summary.TotalFailed += rep.Stats.Failed
		res.Summary.TotalMissing += rep.Stats.Missing
		if rep.Stats.Applied > 0 && rep.Stats.Failed == 0 {
			res.Summary.SuccessPages++
		}
		return nil
	})
	res.Summary.TotalPages = len(pages)
	return res, nil
}
