package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Hosts understood by the CLI.
const (
	HostWebflow = "webflow"
	HostHTMLDir = "htmldir"
)

// Config holds runtime settings read from the rc file and the environment.
type Config struct {
	Token          string `mapstructure:"wf_token"`
	SiteID         string `mapstructure:"wf_site_id"`
	APIBase        string `mapstructure:"wf_api_base"`
	Host           string `mapstructure:"host"`
	HTMLDir        string `mapstructure:"html_dir"`
	SettleDelayMS  int    `mapstructure:"settle_delay_ms"`
	ReadyTimeoutMS int    `mapstructure:"ready_timeout_ms"`
	ReportDir      string `mapstructure:"report_dir"`
	HistoryDB      string `mapstructure:"history_db"`
	LogLevel       string `mapstructure:"log_level"`
}

// envNames lists the variables consulted for each key, first match wins.
// Generic names such as HOST are only read with the WORDSYNC_ prefix.
var envNames = map[string][]string{
	"wf_token":         {"WF_TOKEN", "WORDSYNC_WF_TOKEN"},
	"wf_site_id":       {"WF_SITE_ID", "WORDSYNC_WF_SITE_ID"},
	"wf_api_base":      {"WF_API_BASE", "WORDSYNC_WF_API_BASE"},
	"host":             {"WORDSYNC_HOST"},
	"html_dir":         {"WORDSYNC_HTML_DIR"},
	"settle_delay_ms":  {"WORDSYNC_SETTLE_DELAY_MS"},
	"ready_timeout_ms": {"WORDSYNC_READY_TIMEOUT_MS"},
	"report_dir":       {"WORDSYNC_REPORT_DIR"},
	"history_db":       {"WORDSYNC_HISTORY_DB"},
	"log_level":        {"WORDSYNC_LOG_LEVEL"},
}

// DefaultPath returns the rc file in the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wordsyncrc"
	}
	return filepath.Join(home, ".wordsyncrc")
}

// DefaultHistoryPath is the sqlite database used when HISTORY_DB is unset.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wordsync", "history.db")
	}
	return filepath.Join(home, ".wordsync", "history.db")
}

// ReadFile reads only the KEY=VALUE file at path, without environment or
// defaults. A missing file yields a zero Config.
func ReadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of over applied.
func (c Config) Merge(over Config) Config {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&c.Token, over.Token)
	str(&c.SiteID, over.SiteID)
	str(&c.APIBase, over.APIBase)
	str(&c.Host, strings.ToLower(strings.TrimSpace(over.Host)))
	str(&c.HTMLDir, over.HTMLDir)
	str(&c.ReportDir, over.ReportDir)
	str(&c.HistoryDB, over.HistoryDB)
	str(&c.LogLevel, over.LogLevel)
	if over.SettleDelayMS > 0 {
		c.SettleDelayMS = over.SettleDelayMS
	}
	if over.ReadyTimeoutMS > 0 {
		c.ReadyTimeoutMS = over.ReadyTimeoutMS
	}
	return c
}

// Update merges set over the settings already stored at path and saves the
// result, so unspecified keys keep their stored values.
func Update(path string, set Config) (Config, error) {
	stored, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	merged := stored.Merge(set)
	return merged, Save(path, merged)
}

// Load reads path as a KEY=VALUE file, then applies environment overrides
// and defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("wf_api_base", "https://api.webflow.com/v2")
	v.SetDefault("host", HostWebflow)
	v.SetDefault("settle_delay_ms", 500)
	v.SetDefault("ready_timeout_ms", 5000)
	v.SetDefault("report_dir", ".")
	v.SetDefault("history_db", DefaultHistoryPath())
	v.SetDefault("log_level", "warn")

	for key, names := range envNames {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Host = strings.ToLower(strings.TrimSpace(cfg.Host))
	return cfg, nil
}

// Validate reports settings that make the selected host unusable.
func (c Config) Validate() error {
	switch c.Host {
	case HostWebflow:
		if c.Token == "" {
			return errors.New("WF_TOKEN is required for the webflow host")
		}
		if c.SiteID == "" {
			return errors.New("WF_SITE_ID is required for the webflow host")
		}
	case HostHTMLDir:
		if c.HTMLDir == "" {
			return errors.New("HTML_DIR is required for the htmldir host")
		}
	default:
		return fmt.Errorf("unknown HOST %q (want %s or %s)", c.Host, HostWebflow, HostHTMLDir)
	}
	if c.SettleDelayMS < 0 || c.ReadyTimeoutMS < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

// SettleDelay is the fixed wait after a page switch.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// ReadyTimeout bounds the host readiness wait.
func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

// Save writes cfg as KEY=VALUE lines. Empty values are omitted.
func Save(path string, cfg Config) error {
	if cfg.Token == "" && cfg.Host != HostHTMLDir {
		return errors.New("token is required")
	}
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
	}
	line("WF_TOKEN", cfg.Token)
	line("WF_SITE_ID", cfg.SiteID)
	line("WF_API_BASE", cfg.APIBase)
	line("HOST", cfg.Host)
	line("HTML_DIR", cfg.HTMLDir)
	if cfg.SettleDelayMS > 0 {
		line("SETTLE_DELAY_MS", strconv.Itoa(cfg.SettleDelayMS))
	}
	if cfg.ReadyTimeoutMS > 0 {
		line("READY_TIMEOUT_MS", strconv.Itoa(cfg.ReadyTimeoutMS))
	}
	line("REPORT_DIR", cfg.ReportDir)
	line("HISTORY_DB", cfg.HistoryDB)
	line("LOG_LEVEL", cfg.LogLevel)
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
