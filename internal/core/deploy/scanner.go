package deploy

import (
	"context"
	"fmt"

	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
	"wording-sync/internal/wording"
)

// ScanPage lists the tagged elements of the active page. A host enumeration
// failure is logged and yields an empty result.
func (s *Session) ScanPage(ctx context.Context) ScanResult {
	elements, err := s.host.Elements(ctx)
	if err != nil {
		logx.Event(logx.LevelWarn, "page scan failed", logx.Fields{"error": err})
		return ScanResult{Elements: []ScannedElement{}}
	}

	found := make([]ScannedElement, 0)
	for _, el := range elements {
		if !el.Capabilities().CustomAttributes {
			continue
		}
		attrs, err := el.CustomAttributes(ctx)
		if err != nil {
			logx.Debugf("skipping element: custom attributes unreadable: %v", err)
			continue
		}
		key, ok := host.Lookup(attrs, wording.KeyAttribute)
		if !ok {
			continue
		}
		mode, ok := host.Lookup(attrs, wording.ModeAttribute)
		if !ok || mode == "" {
			mode = ModeText
		}
		found = append(found, ScannedElement{
			Key:      key,
			Selector: selectorFor(key),
			Mode:     mode,
		})
	}
	logx.Debugf("scan found %d tagged elements out of %d", len(found), len(elements))
	return ScanResult{Elements: found, Total: len(found)}
}

func selectorFor(key string) string {
	return fmt.Sprintf("[%s=%q]", wording.KeyAttribute, key)
}

// resolveElement finds the live element carrying key among elements.
func resolveElement(ctx context.Context, elements []host.Element, key string) host.Element {
	for _, el := range elements {
		if !el.Capabilities().CustomAttributes {
			continue
		}
		attrs, err := el.CustomAttributes(ctx)
		if err != nil {
			continue
		}
		if v, ok := host.Lookup(attrs, wording.KeyAttribute); ok && v == key {
			return el
		}
	}
	return nil
}
