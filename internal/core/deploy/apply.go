package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
)

var errNoTextContent = errors.New("element does not support text content")

// ApplyChanges writes the loaded content into the active page and returns
// the page report. It re-scans instead of reusing a preview, and resolves
// every element again before writing. Each element succeeds or fails on its
// own; only a missing data set aborts the call.
func (s *Session) ApplyChanges(ctx context.Context) (*DeploymentReport, error) {
	if s.data == nil {
		return nil, ErrNotLoaded
	}
	now := s.clock.Now()
	rep := &DeploymentReport{
		DeploymentID: fmt.Sprintf("dep-%d", now.UnixMilli()),
		SiteID:       s.data.SiteID,
		Timestamp:    formatTimestamp(now),
		PageName:     currentPageLabel,
		Changes:      make([]ChangeReport, 0),
		Warnings:     make([]string, 0),
		Errors:       make([]string, 0),
	}
	content := s.data.Content

	scan := s.ScanPage(ctx)
	live, err := s.host.Elements(ctx)
	if err != nil {
		rep.Errors = append(rep.Errors, "Global error: "+err.Error())
		logx.Event(logx.LevelError, "element enumeration failed during apply", logx.Fields{"error": err})
		return rep, nil
	}

	tagCount := make(map[string]int, len(scan.Elements))
	for _, el := range scan.Elements {
		value, ok := content[el.Key]
		if !ok {
			rep.Stats.Missing++
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("Key %q not found in content map", el.Key))
			continue
		}
		// Re-resolution always lands on the first tagged element.
		tagCount[el.Key]++
		if tagCount[el.Key] == 2 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("Key %q is tagged on more than one element - only the first is updated", el.Key))
		}

		target := resolveElement(ctx, live, el.Key)
		if target == nil {
			msg := fmt.Sprintf("Element for key %q not found", el.Key)
			rep.Stats.Failed++
			rep.Errors = append(rep.Errors, msg)
			rep.Changes = append(rep.Changes, ChangeReport{
				Key:             el.Key,
				NewValue:        value,
				ElementSelector: el.Selector,
				Status:          StatusError,
				Message:         msg,
			})
			continue
		}

		switch {
		case el.Mode == "" || el.Mode == ModeText:
		case el.Mode == ModeHTML:
			// Markup is never injected; HTML mode degrades to a text write.
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("HTML mode for %q - falling back to text content", el.Key))
		case strings.HasPrefix(el.Mode, ModeAttrPrefix):
			name := strings.TrimPrefix(el.Mode, ModeAttrPrefix)
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("Attribute mode %q for %q - not implemented yet", name, el.Key))
			continue
		default:
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("Unsupported mode %q for %q - skipped", el.Mode, el.Key))
			continue
		}

		old, werr := writeText(ctx, target, value)
		if werr != nil {
			rep.Stats.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("Failed to update %q: %s", el.Key, werr.Error()))
			rep.Changes = append(rep.Changes, ChangeReport{
				Key:             el.Key,
				OldValue:        old,
				NewValue:        value,
				ElementSelector: el.Selector,
				Status:          StatusError,
				Message:         werr.Error(),
			})
			logx.Event(logx.LevelWarn, "element update failed", logx.Fields{"key": el.Key, "error": werr})
			continue
		}
		rep.Stats.Applied++
		rep.Changes = append(rep.Changes, ChangeReport{
			Key:             el.Key,
			OldValue:        old,
			NewValue:        value,
			ElementSelector: el.Selector,
			Status:          StatusSuccess,
		})
	}

	rep.Stats.TotalKeys = len(rep.Changes) + rep.Stats.Missing
	logx.Event(logx.LevelInfo, "apply finished", logx.Fields{
		"deployment": rep.DeploymentID,
		"applied":    rep.Stats.Applied,
		"failed":     rep.Stats.Failed,
		"missing":    rep.Stats.Missing,
	})
	return rep, nil
}

// writeText sets the element text and returns the previous text when the
// element can report it.
func writeText(ctx context.Context, el host.Element, value string) (string, error) {
	if !el.Capabilities().TextContent {
		return "", errNoTextContent
	}
	var old string
	if r, ok := el.(host.TextReader); ok {
		if prev, err := r.TextContent(ctx); err == nil {
			old = prev
		}
	}
	return old, el.SetTextContent(ctx, value)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
