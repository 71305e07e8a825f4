package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"wording-sync/internal/core/deploy"
	"wording-sync/internal/host"
)

func TestConfirm(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, " n\n": false, "\n": false, "": false, "y": true}
	for in, want := range cases {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(in), &out, "Apply? "); got != want {
			t.Fatalf("confirm(%q) = %v", in, got)
		}
		if out.String() != "Apply? " {
			t.Fatalf("prompt = %q", out.String())
		}
	}
}

func TestPrintReportTruncatesLists(t *testing.T) {
	errs := make([]string, 12)
	for i := range errs {
		errs[i] = fmt.Sprintf("err %d", i)
	}
	r := &deploy.DeploymentReport{
		DeploymentID: "multi-1",
		PageName:     "2 pages",
		Stats:        deploy.Stats{TotalKeys: 14, Applied: 2, Failed: 12},
		MultiPageReports: []deploy.DeploymentReport{
			{PageName: "Home", Errors: errs},
			{PageName: "About", Warnings: []string{"Element not found: about.x"}},
		},
	}
	var out bytes.Buffer
	printReport(&out, r)
	s := out.String()
	if !strings.Contains(s, "Home errors (12)") || !strings.Contains(s, "… and 2 more") {
		t.Fatalf("errors not truncated:\n%s", s)
	}
	if strings.Contains(s, "err 10") {
		t.Fatal("only the first ten errors may be printed")
	}
	if !strings.Contains(s, "About warnings (1)") {
		t.Fatalf("warnings missing:\n%s", s)
	}
}

func TestPrintPreviewSinglePage(t *testing.T) {
	p := &deploy.Preview{Mode: deploy.SinglePage, Single: &deploy.PreviewResult{
		Changes:     []deploy.ChangeRecord{{Key: "title", HasValue: true, NewValue: "Hi"}, {Key: "lead"}},
		MissingKeys: []string{"lead"},
		UnusedKeys:  []string{"footer"},
	}}
	var out bytes.Buffer
	printPreview(&out, p)
	s := out.String()
	for _, want := range []string{"title → Hi", "lead (no value)", "Unused keys: footer"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
}

// testSite lays out an htmldir site with flat keys and points the config
// at it through the environment. It returns the site root and wording file.
func testSite(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "site")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	pages := map[string]string{
		"about.html": `<html><head><title>About</title></head><body><p>none</p></body></html>`,
		"home.html":  `<html><head><title>Home</title></head><body><h1 data-wording-key="title">Welcome</h1></body></html>`,
	}
	for name, body := range pages {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	file := filepath.Join(dir, "wording.json")
	if err := os.WriteFile(file, []byte(`{"title": "Hello"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HOME", dir)
	t.Setenv("DEBUG", "")
	t.Setenv("WORDSYNC_HOST", "htmldir")
	t.Setenv("WORDSYNC_HTML_DIR", root)
	t.Setenv("WORDSYNC_SETTLE_DELAY_MS", "0")
	t.Setenv("WORDSYNC_REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("WORDSYNC_HISTORY_DB", filepath.Join(dir, "history", "history.db"))
	if err := os.Mkdir(filepath.Join(dir, "reports"), 0o755); err != nil {
		t.Fatal(err)
	}
	setConfigFile(t, filepath.Join(dir, ".wordsyncrc"))
	return root, file
}

func setConfigFile(t *testing.T, path string) {
	t.Helper()
	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanFlatKeysNeedsPage(t *testing.T) {
	_, file := testSite(t)

	_, err := execute(scanCmd(), file)
	if !errors.Is(err, host.ErrNoActivePage) || !strings.Contains(err.Error(), "--page") {
		t.Fatalf("expected an active page error naming --page, got %v", err)
	}

	out, err := execute(scanCmd(), "--page", "home", file)
	if err != nil {
		t.Fatalf("scan --page: %v", err)
	}
	if !strings.Contains(out, "title → Hello") {
		t.Fatalf("preview missing the tagged element:\n%s", out)
	}
}

func TestDeployFlatKeys(t *testing.T) {
	root, file := testSite(t)

	if _, err := execute(deployCmd(), "-y", file); !errors.Is(err, host.ErrNoActivePage) {
		t.Fatalf("expected an active page error, got %v", err)
	}

	out, err := execute(deployCmd(), "--page", "home", "-y", file)
	if err != nil {
		t.Fatalf("deploy --page: %v\n%s", err, out)
	}
	html, _ := os.ReadFile(filepath.Join(root, "home.html"))
	if !strings.Contains(string(html), ">Hello</h1>") {
		t.Fatalf("page not written:\n%s", html)
	}
	reports, _ := filepath.Glob(filepath.Join(os.Getenv("WORDSYNC_REPORT_DIR"), "*.json"))
	if len(reports) != 1 {
		t.Fatalf("reports = %v", reports)
	}
}

func TestConfigSaveMergesStoredSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wordsyncrc")
	setConfigFile(t, path)
	if err := os.WriteFile(path, []byte("WF_TOKEN=abc\nWF_SITE_ID=site-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(configCmd(), "save", "--report-dir", "reports"); err != nil {
		t.Fatalf("config save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "WF_TOKEN=abc\nWF_SITE_ID=site-1\nREPORT_DIR=reports\n" {
		t.Fatalf("rc file = %q", data)
	}
}
