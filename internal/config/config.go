package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = ".plannercolors/config.yaml"

// Config holds all plannercolors configuration.
type Config struct {
	Planner PlannerConfig `yaml:"planner"`
	Render  RenderConfig  `yaml:"render"`
	Browser BrowserConfig `yaml:"browser"`
	Logging LoggingConfig `yaml:"logging"`
}

// PlannerConfig points at the hosted plan.
type PlannerConfig struct {
	URL string `yaml:"url"`
}

// RenderConfig tunes the render loop.
type RenderConfig struct {
	Interval    string `yaml:"interval"`
	MarkerClass string `yaml:"marker_class"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"` // attach instead of launching
	Launch            []string `yaml:"launch"`       // chrome binary, then flags as name=value
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	SessionStore      string   `yaml:"session_store"` // optional session metadata file
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Planner: PlannerConfig{
			URL: "https://planner.cloud.microsoft/webui/premiumplan/",
		},
		Render: RenderConfig{
			Interval:    "500ms",
			MarkerClass: "CF_labels",
		},
		Browser: BrowserConfig{
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("PLANNERCOLORS_DEBUGGER_URL"); u != "" {
		c.Browser.DebuggerURL = u
	}
	if u := os.Getenv("PLANNERCOLORS_URL"); u != "" {
		c.Planner.URL = u
	}
	if v := os.Getenv("PLANNERCOLORS_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// GetRenderInterval returns the tick period as a duration.
func (c *Config) GetRenderInterval() time.Duration {
	d, err := time.ParseDuration(c.Render.Interval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetMarkerClass returns the class tagging injected cells.
func (c *Config) GetMarkerClass() string {
	if c.Render.MarkerClass == "" {
		return "CF_labels"
	}
	return c.Render.MarkerClass
}

// GetNavigationTimeout returns the page navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Planner.URL == "" {
		return fmt.Errorf("planner URL not configured (set planner.url or PLANNERCOLORS_URL)")
	}
	u, err := url.Parse(c.Planner.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid planner URL: %q", c.Planner.URL)
	}
	if c.Render.Interval != "" {
		if _, err := time.ParseDuration(c.Render.Interval); err != nil {
			return fmt.Errorf("invalid render interval %q: %w", c.Render.Interval, err)
		}
	}
	if strings.ContainsAny(c.Render.MarkerClass, " \t\n.\"'") {
		return fmt.Errorf("invalid marker class %q: must be a single class name", c.Render.MarkerClass)
	}
	for _, f := range c.Browser.Launch {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("empty browser launch flag")
		}
	}
	return nil
}
