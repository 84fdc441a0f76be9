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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36 Edg/134.0.0.0"
	DefaultEPGURL    = "https://raw.githubusercontent.com/doms9/iptv/refs/heads/default/M3U8/TV.xml"
)

type Config struct {
	DataPath     string `yaml:"data_path"`
	BaseFile     string `yaml:"base_file"`
	CombinedFile string `yaml:"combined_file"`
	EventsFile   string `yaml:"events_file"`
	LeaguesFile  string `yaml:"leagues_file"`

	UserAgent string `yaml:"user_agent"`
	EPGURL    string `yaml:"epg_url"`

	HTTP    HTTPConfig    `yaml:"http"`
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Sources SourcesConfig `yaml:"sources"`

	LogFile     string `yaml:"log_file"`
	MetricsFile string `yaml:"metrics_file"`
	JournalPath string `yaml:"journal_path"`
}

type HTTPConfig struct {
	Concurrency int64         `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTries    uint          `yaml:"max_tries"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
}

type BrowserConfig struct {
	Concurrency int64  `yaml:"concurrency"`
	Headless    bool   `yaml:"headless"`
	ExecPath    string `yaml:"exec_path"`
	RemoteURL   string `yaml:"remote_url"`
}

type CaptureConfig struct {
	Pattern   string   `yaml:"pattern"`
	Blocklist []string `yaml:"blocklist"`

	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	NavTimeout     time.Duration `yaml:"nav_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
}

type SourcesConfig struct {
	Enabled []string          `yaml:"enabled"`
	URLs    map[string]string `yaml:"urls"`

	// Mirrors lists alternative roots per source; one that answers is
	// picked at random each run.
	Mirrors map[string][]string `yaml:"mirrors"`
}

var globalConfig = Defaults()

func Defaults() *Config {
	return &Config{
		DataPath:     ".",
		BaseFile:     "base.m3u8",
		CombinedFile: "TV.m3u8",
		EventsFile:   "events.m3u8",
		LeaguesFile:  "leagues.json",
		UserAgent:    DefaultUserAgent,
		EPGURL:       DefaultEPGURL,
		HTTP: HTTPConfig{
			Concurrency: 10,
			Timeout:     5 * time.Second,
			MaxTries:    3,
		},
		Browser: BrowserConfig{
			Concurrency: 3,
			Headless:    true,
			RemoteURL:   "http://localhost:9222",
		},
		Capture: CaptureConfig{
			Pattern:        `(?i)\.m3u8`,
			Blocklist:      []string{"amazonaws", "knitcdn", "jwpltx"},
			AcquireTimeout: 10 * time.Second,
			NavTimeout:     15 * time.Second,
			ProbeTimeout:   5 * time.Second,
			WaitTimeout:    10 * time.Second,
		},
		Sources: SourcesConfig{
			Enabled: []string{"pixel", "roxie"},
		},
	}
}

func GetConfig() *Config {
	return globalConfig
}

func SetConfig(c *Config) {
	globalConfig = c
}

func (c *Config) CacheDir() string {
	return filepath.Join(c.DataPath, "caches")
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataPath, p)
}

func (c *Config) BasePath() string     { return c.resolve(c.BaseFile) }
func (c *Config) CombinedPath() string { return c.resolve(c.CombinedFile) }
func (c *Config) EventsPath() string   { return c.resolve(c.EventsFile) }
func (c *Config) LeaguesPath() string  { return c.resolve(c.LeaguesFile) }

// Load layers defaults, the YAML file at path (optional), a .env file in the
// working directory (optional) and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = "config.yml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	setString("DATA_PATH", &cfg.DataPath)
	setString("BASE_FILE", &cfg.BaseFile)
	setString("COMBINED_FILE", &cfg.CombinedFile)
	setString("EVENTS_FILE", &cfg.EventsFile)
	setString("LEAGUES_FILE", &cfg.LeaguesFile)
	setString("USER_AGENT", &cfg.UserAgent)
	setString("EPG_URL", &cfg.EPGURL)
	setString("BROWSER_EXEC_PATH", &cfg.Browser.ExecPath)
	setString("BROWSER_REMOTE_URL", &cfg.Browser.RemoteURL)
	setString("CAPTURE_PATTERN", &cfg.Capture.Pattern)
	setString("LOG_FILE", &cfg.LogFile)
	setString("METRICS_FILE", &cfg.MetricsFile)
	setString("JOURNAL_PATH", &cfg.JournalPath)

	for env, dst := range map[string]*int64{
		"HTTP_CONCURRENCY":    &cfg.HTTP.Concurrency,
		"BROWSER_CONCURRENCY": &cfg.Browser.Concurrency,
	} {
		if v, ok := os.LookupEnv(env); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid %s %q: must be a positive integer", env, v)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("HTTP_MAX_TRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid HTTP_MAX_TRIES %q: %w", v, err)
		}
		cfg.HTTP.MaxTries = uint(n)
	}

	if v, ok := os.LookupEnv("HTTP_RATE_PER_SEC"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RATE_PER_SEC %q: %w", v, err)
		}
		cfg.HTTP.RatePerSec = f
	}

	if v, ok := os.LookupEnv("BROWSER_HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BROWSER_HEADLESS %q: %w", v, err)
		}
		cfg.Browser.Headless = b
	}

	for env, dst := range map[string]*time.Duration{
		"HTTP_TIMEOUT":            &cfg.HTTP.Timeout,
		"CAPTURE_ACQUIRE_TIMEOUT": &cfg.Capture.AcquireTimeout,
		"CAPTURE_NAV_TIMEOUT":     &cfg.Capture.NavTimeout,
		"CAPTURE_PROBE_TIMEOUT":   &cfg.Capture.ProbeTimeout,
		"CAPTURE_WAIT_TIMEOUT":    &cfg.Capture.WaitTimeout,
	} {
		if v, ok := os.LookupEnv(env); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", env, v, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("CAPTURE_BLOCKLIST"); ok {
		cfg.Capture.Blocklist = splitList(v)
	}
	if v, ok := os.LookupEnv("SOURCES"); ok {
		cfg.Sources.Enabled = splitList(v)
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
