package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"wording-sync/internal/config"
	"wording-sync/internal/core/deploy"
	"wording-sync/internal/host"
	"wording-sync/internal/infra/logx"
	"wording-sync/internal/report"
	"wording-sync/internal/ui"
	"wording-sync/internal/wording"
)

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8942E1"))
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

func tuiCmd() *cobra.Command {
	var file, page string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive load, preview and deploy",
		Long: "Interactive load, preview and deploy. Keys without a page prefix target one page: " +
			"pass --page or pick it from the list shown after loading.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, file, page)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "wording file to pre-fill")
	cmd.Flags().StringVar(&page, "page", "", "active page slug (or file) for keys without a page prefix")
	return cmd
}

func runTUI(cmd *cobra.Command, file, page string) error {
	rt, err := newApp(cmd.Context(), page)
	if err != nil {
		return err
	}
	defer rt.Close()

	m := ui.New(ui.Options{
		Flow:      deploy.NewFlow(rt.session),
		SiteID:    siteID(rt),
		SiteName:  rt.site.DisplayName(),
		ReportDir: rt.cfg.ReportDir,
		History:   rt.openHistory(),
		File:      file,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

func scanCmd() *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:   "scan <wording-file>",
		Short: "Preview the changes a wording file would make",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newApp(cmd.Context(), page)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := load(rt, args[0]); err != nil {
				return err
			}
			p, err := rt.session.Scan(cmd.Context(), progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return pageHint(err)
			}
			printPreview(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "active page slug (or file) for keys without a page prefix")
	return cmd
}

func deployCmd() *cobra.Command {
	var (
		page string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "deploy <wording-file>",
		Short: "Preview, confirm and apply a wording file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newApp(cmd.Context(), page)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := load(rt, args[0]); err != nil {
				return err
			}
			flow := deploy.NewFlow(rt.session)
			p, err := flow.Scan(cmd.Context(), progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return pageHint(err)
			}
			out := cmd.OutOrStdout()
			printPreview(out, p)

			n := p.ApplicableChanges()
			if n == 0 {
				fmt.Fprintln(out, warnStyle.Render("Nothing to apply."))
				return nil
			}
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Apply %d changes? [y/N] ", n)) {
				return errAborted
			}

			rep, err := flow.Deploy(cmd.Context(), progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			path, err := report.Save(rt.cfg.ReportDir, rep)
			if err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			if h := rt.openHistory(); h != nil {
				if err := h.Record(cmd.Context(), rep); err != nil {
					logx.Warnf("history: %v", err)
				}
			}
			printReport(out, rep)
			fmt.Fprintf(out, "Report saved to %s\n", path)
			if rep.Stats.Failed > 0 {
				return fmt.Errorf("%d changes failed", rep.Stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "active page slug (or file) for keys without a page prefix")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [deployment-id]",
		Short: "List recent deployments or print one report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0o755); err != nil {
				return err
			}
			h, err := report.OpenHistory(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				r, err := h.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := report.Export(r)
				if err != nil {
					return err
				}
				_, err = out.Write(append(data, '\n'))
				return err
			}

			entries, err := h.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No deployments recorded.")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "TIME", "SITE", "PAGE", "APPLIED", "FAILED", "MISSING", "PAGES")
			for _, e := range entries {
				id := e.DeploymentID
				if e.Cancelled {
					id += " (cancelled)"
				}
				t.Row(id, e.Timestamp, e.SiteID, e.PageName,
					fmt.Sprint(e.Stats.Applied), fmt.Sprint(e.Stats.Failed), fmt.Sprint(e.Stats.Missing), fmt.Sprint(e.Pages))
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deployments to list")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the rc file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cfg.Token != "" {
				cfg.Token = "****"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:       %s\n", cfgFile)
			fmt.Fprintf(out, "host:       %s\n", cfg.Host)
			fmt.Fprintf(out, "token:      %s\n", cfg.Token)
			fmt.Fprintf(out, "site id:    %s\n", cfg.SiteID)
			fmt.Fprintf(out, "api base:   %s\n", cfg.APIBase)
			fmt.Fprintf(out, "html dir:   %s\n", cfg.HTMLDir)
			fmt.Fprintf(out, "settle:     %s\n", cfg.SettleDelay())
			fmt.Fprintf(out, "ready:      %s\n", cfg.ReadyTimeout())
			fmt.Fprintf(out, "report dir: %s\n", cfg.ReportDir)
			fmt.Fprintf(out, "history:    %s\n", cfg.HistoryDB)
			return nil
		},
	})

	var set config.Config
	save := &cobra.Command{
		Use:   "save",
		Short: "Merge the given settings into the rc file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Update(cfgFile, set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", cfgFile)
			return nil
		},
	}
	save.Flags().StringVar(&set.Token, "token", "", "Webflow API token")
	save.Flags().StringVar(&set.SiteID, "site", "", "Webflow site id")
	save.Flags().StringVar(&set.Host, "host", "", "webflow or htmldir")
	save.Flags().StringVar(&set.HTMLDir, "html-dir", "", "directory served by the htmldir host")
	save.Flags().StringVar(&set.ReportDir, "report-dir", "", "directory for report files")
	cmd.AddCommand(save)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wordsync", version)
		},
	}
}

// pageHint points single-page runs without an active page at --page.
func pageHint(err error) error {
	if errors.Is(err, host.ErrNoActivePage) {
		return fmt.Errorf("%w (choose it with --page)", err)
	}
	return err
}

// load reads the wording file into the session.
func load(rt *app, path string) error {
	d, err := wording.LoadFile(path, siteID(rt))
	if err != nil {
		return err
	}
	rt.session.Load(d)
	logx.Infof("wording loaded: %d keys from %s", len(d.Content), path)
	return nil
}

func progressPrinter(w io.Writer) deploy.ProgressFunc {
	return func(p deploy.ScanProgress) {
		fmt.Fprintf(w, "[%d/%d] %s\n", p.Completed, p.Total, p.CurrentPage)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func printPreview(w io.Writer, p *deploy.Preview) {
	writeChanges := func(changes []deploy.ChangeRecord) {
		for _, c := range changes {
			if c.HasValue {
				fmt.Fprintf(w, "  %s → %s\n", c.Key, c.NewValue)
			} else {
				fmt.Fprintf(w, "  %s (no value)\n", c.Key)
			}
		}
	}
	if p.Mode == deploy.MultiPage {
		s := p.Multi.Summary
		fmt.Fprintln(w, headStyle.Render(fmt.Sprintf("%d pages, %d elements, %d with value, %d missing",
			s.TotalPages, s.TotalElements, s.TotalWithValue, s.TotalMissing)))
		for _, pp := range p.Multi.PagesPreviews {
			fmt.Fprintf(w, "%s (%d/%d)\n", pp.PageName, pp.Stats.WithValue, pp.Stats.Total)
			writeChanges(pp.Changes)
		}
		if p.Multi.Cancelled {
			fmt.Fprintln(w, warnStyle.Render("Scan cancelled, preview is partial."))
		}
	} else {
		fmt.Fprintln(w, headStyle.Render(fmt.Sprintf("Current page: %d elements, %d with value, %d missing",
			len(p.Single.Changes), p.ApplicableChanges(), len(p.Single.MissingKeys))))
		writeChanges(p.Single.Changes)
	}
	if unused := p.UnusedKeys(); len(unused) > 0 {
		shown, more := report.Truncate(unused, report.MaxDisplayed)
		fmt.Fprintf(w, "Unused keys: %s", strings.Join(shown, ", "))
		if more > 0 {
			fmt.Fprintf(w, " … and %d more", more)
		}
		fmt.Fprintln(w)
	}
}

func printReport(w io.Writer, r *deploy.DeploymentReport) {
	title := "Deployment complete"
	if r.Cancelled {
		title = "Deployment cancelled"
	}
	fmt.Fprintf(w, "%s: %s (%s)\n", headStyle.Render(title), r.PageName, r.DeploymentID)
	fmt.Fprintf(w, "%s  %s  %s  of %d keys\n",
		okStyle.Render(fmt.Sprintf("%d applied", r.Stats.Applied)),
		errStyle.Render(fmt.Sprintf("%d failed", r.Stats.Failed)),
		warnStyle.Render(fmt.Sprintf("%d missing", r.Stats.Missing)),
		r.Stats.TotalKeys)

	pages := r.MultiPageReports
	if len(pages) == 0 {
		pages = []deploy.DeploymentReport{*r}
	}
	for _, pr := range pages {
		printList(w, pr.PageName+" errors", pr.Errors)
		printList(w, pr.PageName+" warnings", pr.Warnings)
	}
}

func printList(w io.Writer, label string, list []string) {
	if len(list) == 0 {
		return
	}
	shown, more := report.Truncate(list, report.MaxDisplayed)
	fmt.Fprintf(w, "%s (%d):\n", label, len(list))
	for _, s := range shown {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	if more > 0 {
		fmt.Fprintf(w, "  … and %d more\n", more)
	}
}
