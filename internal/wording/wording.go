package wording

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Attribute names used to tag page elements.
const (
	KeyAttribute  = "data-wording-key"
	ModeAttribute = "data-wording-mode"
)

// DefaultVersion is assigned to data loaded without an explicit version.
const DefaultVersion = "1.0.0"

// ContentMap maps a wording key to its replacement text.
type ContentMap map[string]string

// Keys returns the map keys in lexical order.
func (c ContentMap) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy of the map.
func (c ContentMap) Clone() ContentMap {
	out := make(ContentMap, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Data is one loaded wording set.
type Data struct {
	SiteID    string     `json:"site_id"`
	Version   string     `json:"version"`
	UpdatedAt string     `json:"updated_at,omitempty"`
	Content   ContentMap `json:"content"`
}

// Clone returns a deep copy so callers cannot mutate a loaded set in place.
func (d Data) Clone() Data {
	out := d
	if d.Content != nil {
		out.Content = d.Content.Clone()
	}
	return out
}

// Validate returns human readable problems; an empty slice means valid.
func Validate(d Data) []string {
	var problems []string
	if strings.TrimSpace(d.SiteID) == "" {
		problems = append(problems, `field "site_id" is missing`)
	}
	if strings.TrimSpace(d.Version) == "" {
		problems = append(problems, `field "version" is missing`)
	}
	if d.Content == nil {
		problems = append(problems, `field "content" is missing or invalid`)
	}
	return problems
}

// ValidationError carries every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid wording data: " + strings.Join(e.Problems, "; ")
}

// LoadFile reads a CSV or JSON wording file. Missing site id and version are
// filled from siteID and DefaultVersion before validation.
func LoadFile(path, siteID string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read %s: %w", path, err)
	}

	var d Data
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		content, err := ParseCSV(strings.NewReader(string(raw)))
		if err != nil {
			return Data{}, fmt.Errorf("csv import: %w", err)
		}
		d = Data{Content: content}
	default:
		d, err = ParseJSON(raw)
		if err != nil {
			return Data{}, err
		}
	}

	if d.SiteID == "" {
		d.SiteID = siteID
	}
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if problems := Validate(d); len(problems) > 0 {
		return Data{}, &ValidationError{Problems: problems}
	}
	return d, nil
}
