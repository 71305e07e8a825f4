package deploy

import (
	"sort"
	"strings"

	"wording-sync/internal/wording"
)

const keyDelimiter = "."

// InferTargetPages collects the lowercased first segment of every
// dot-delimited key. An empty set means single-page mode.
func InferTargetPages(content wording.ContentMap) map[string]struct{} {
	targets := make(map[string]struct{})
	for key := range content {
		token, _, found := strings.Cut(key, keyDelimiter)
		if !found {
			continue
		}
		targets[strings.ToLower(token)] = struct{}{}
	}
	return targets
}

// IsMultiPage reports whether content addresses pages through key prefixes.
func IsMultiPage(content wording.ContentMap) bool {
	for key := range content {
		if strings.Contains(key, keyDelimiter) {
			return true
		}
	}
	return false
}

// sortedTokens returns the target set in lexical order for stable logs.
func sortedTokens(targets map[string]struct{}) []string {
	out := make([]string, 0, len(targets))
	for t := range targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
