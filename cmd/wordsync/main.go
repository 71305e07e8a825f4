package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"wording-sync/internal/config"
	"wording-sync/internal/core/deploy"
	"wording-sync/internal/host"
	"wording-sync/internal/htmldir"
	"wording-sync/internal/infra/logx"
	"wording-sync/internal/report"
	"wording-sync/internal/webflow"
)

var version = "dev"

var (
	cfgFile string
	logFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wordsync",
		Short: "Deploy wording files to site pages",
		Long: "Loads a key/value wording file, previews which tagged page elements it changes " +
			"and writes the new text to the site, one page or every targeted page.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, "", "")
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath(), "rc file with KEY=VALUE settings")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append JSON logs to this file (DEBUG=1 uses debug.log)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug entries without truncation")

	rootCmd.AddCommand(
		tuiCmd(),
		scanCmd(),
		deployCmd(),
		historyCmd(),
		configCmd(),
		versionCmd(),
	)

	// Interrupts cancel the running scan or deploy, which stops after the current page.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs once config is loaded.
type app struct {
	cfg     config.Config
	host    host.Host
	client  *webflow.Client // nil for the htmldir host
	site    host.SiteInfo
	session *deploy.Session
	closers []io.Closer
}

func (rt *app) Close() {
	if rt.client != nil && rt.client.Metrics() != nil {
		logx.Event(logx.LevelInfo, "webflow metrics", rt.client.Metrics().Snapshot().LogFields())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

// setupLogging routes logx and the std logger to the log file when one is
// requested; otherwise logs are discarded.
func setupLogging(cfg config.Config) (io.Closer, error) {
	path := logFile
	if path == "" && os.Getenv("DEBUG") != "" {
		path = "debug.log"
	}
	logx.SetVerbose(verbose)
	level := logx.ParseLevel(cfg.LogLevel)
	if verbose || os.Getenv("DEBUG") != "" {
		level = logx.LevelDebug
	}
	logx.SetMinLevel(level)
	logx.RegisterSecret(cfg.Token)
	log.SetFlags(0)
	log.SetOutput(logx.StdlogWriter(logx.LevelDebug, nil))
	if path == "" {
		return nil, nil
	}
	f, err := logx.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// newApp loads config, configures logging and builds the host. A
// non-empty page selects the active page for single-page runs.
func newApp(ctx context.Context, page string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg}
	closer, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	switch cfg.Host {
	case config.HostWebflow:
		rt.client = webflow.New(cfg.Token, webflow.WithBaseURL(cfg.APIBase))
		wh := webflow.NewHost(rt.client, cfg.SiteID)
		if page != "" {
			if err := wh.SelectPage(ctx, page); err != nil {
				rt.Close()
				return nil, err
			}
		}
		rt.host = wh
	case config.HostHTMLDir:
		hh, err := htmldir.Open(cfg.HTMLDir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if page != "" {
			if err := hh.SelectPage(ctx, page); err != nil {
				rt.Close()
				return nil, err
			}
		}
		rt.host = hh
	}

	rt.site, err = rt.host.SiteInfo(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("site info: %w", err)
	}
	rt.session = deploy.NewSession(rt.host,
		deploy.WithSettleDelay(cfg.SettleDelay()),
		deploy.WithReadyTimeout(cfg.ReadyTimeout()),
	)
	logx.Infof("host %s ready: site %s (%s)", cfg.Host, rt.site.DisplayName(), rt.site.SiteID)
	return rt, nil
}

// openHistory opens the history database, creating its directory. Failures
// are logged and yield nil so deployments still run.
func (rt *app) openHistory() *report.History {
	path := rt.cfg.HistoryDB
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logx.Warnf("history dir: %v", err)
		return nil
	}
	h, err := report.OpenHistory(path)
	if err != nil {
		logx.Warnf("history: %v", err)
		return nil
	}
	rt.closers = append(rt.closers, h)
	return h
}

func siteID(rt *app) string {
	if rt.cfg.SiteID != "" {
		return rt.cfg.SiteID
	}
	return rt.site.SiteID
}

var errAborted = errors.New("deployment aborted")
