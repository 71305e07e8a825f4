package deploy

import (
	"context"
	"sort"
)

// PreviewChanges diffs the active page against the loaded content map.
// Changes follow scan order; UnusedKeys only covers this page, callers
// aggregating across pages keep their own set.
func (s *Session) PreviewChanges(ctx context.Context) (PreviewResult, error) {
	if s.data == nil {
		return PreviewResult{}, ErrNotLoaded
	}
	content := s.data.Content

	scan := s.ScanPage(ctx)
	unused := make(map[string]struct{}, len(content))
	for k := range content {
		unused[k] = struct{}{}
	}

	res := PreviewResult{
		Changes:     make([]ChangeRecord, 0, len(scan.Elements)),
		MissingKeys: make([]string, 0),
	}
	for _, el := range scan.Elements {
		value, ok := content[el.Key]
		if !ok {
			res.Changes = append(res.Changes, ChangeRecord{Key: el.Key})
			res.MissingKeys = append(res.MissingKeys, el.Key)
			continue
		}
		res.Changes = append(res.Changes, ChangeRecord{Key: el.Key, HasValue: true, NewValue: value})
		delete(unused, el.Key)
	}
	res.UnusedKeys = setToSorted(unused)
	return res, nil
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
