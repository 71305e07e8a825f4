package wording

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRows is returned when a CSV holds no usable Key/Data pair.
var ErrNoRows = errors.New(`CSV must contain "Key" and "Data" columns with at least one row of data`)

// ParseCSV reads a spreadsheet export with a header row. The key comes from
// the "key" or "Key" column and the value from "data" or "Data"; the first
// non-empty candidate wins. Rows with an empty key or value are dropped.
func ParseCSV(r io.Reader) (ContentMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("csv parsing error: %w", err)
	}

	keyCols := columns(header, "key", "Key")
	dataCols := columns(header, "data", "Data")

	content := make(ContentMap)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv parsing error: %w", err)
		}
		key := firstNonEmpty(rec, keyCols)
		value := firstNonEmpty(rec, dataCols)
		if key == "" || value == "" {
			continue
		}
		content[key] = value
	}
	if len(content) == 0 {
		return nil, ErrNoRows
	}
	return content, nil
}

// columns returns the header indexes of names, in the order names are given.
func columns(header []string, names ...string) []int {
	var idx []int
	for _, name := range names {
		for i, h := range header {
			if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

func firstNonEmpty(rec []string, cols []int) string {
	for _, c := range cols {
		if c < len(rec) {
			if v := strings.TrimSpace(rec[c]); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParseJSON accepts either a bare key→string object or a wording document
// holding that object under "content".
func ParseJSON(raw []byte) (Data, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return Data{}, errors.New("empty JSON input")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Data{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var d Data
	body := raw
	if c, ok := top["content"]; ok {
		body = c
		d.SiteID = stringField(top, "site_id")
		d.Version = stringField(top, "version")
		d.UpdatedAt = stringField(top, "updated_at")
	}

	var content ContentMap
	if err := json.Unmarshal(body, &content); err != nil {
		return Data{}, fmt.Errorf("invalid JSON: content must map keys to strings: %w", err)
	}
	d.Content = content
	return d, nil
}

func stringField(top map[string]json.RawMessage, name string) string {
	raw, ok := top[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
