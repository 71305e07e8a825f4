// Package report exports deployment reports and keeps a local history of them.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wording-sync/internal/core/deploy"
)

// MaxDisplayed caps the warnings and errors shown inline by the CLI and TUI.
const MaxDisplayed = 10

// Export renders r as indented JSON.
func Export(r *deploy.DeploymentReport) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	return json.MarshalIndent(r, "", "  ")
}

// Parse reads a report produced by Export.
func Parse(data []byte) (*deploy.DeploymentReport, error) {
	var r deploy.DeploymentReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// Filename is the download name of r.
func Filename(r *deploy.DeploymentReport) string {
	id := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(r.DeploymentID)
	return "deployment-" + id + ".json"
}

// Save writes r into dir, creating it when needed, and returns the file path.
func Save(dir string, r *deploy.DeploymentReport) (string, error) {
	data, err := Export(r)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(r))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Truncate returns at most max items and the number left out.
func Truncate(list []string, max int) ([]string, int) {
	if max < 0 || len(list) <= max {
		return list, 0
	}
	return list[:max], len(list) - max
}
