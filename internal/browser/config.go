package browser

import "time"

// Viewport is the emulated window size of planner pages.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config controls how Chrome is reached and how planner pages are opened.
type Config struct {
	// DebuggerURL attaches to a running Chrome. The browser then belongs to
	// the user and is never closed.
	DebuggerURL string `json:"debugger_url,omitempty"`
	// Launch is a chrome binary followed by flags ("name" or "name=value").
	Launch            []string      `json:"launch,omitempty"`
	Headless          bool          `json:"headless"`
	Viewport          Viewport      `json:"viewport"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	// SessionStore, when set, is a JSON file listing known sessions.
	SessionStore string `json:"session_store,omitempty"`
}

// DefaultConfig returns a visible 1920x1080 browser with a 30s navigation
// timeout.
func DefaultConfig() Config {
	return Config{
		Viewport:          Viewport{Width: 1920, Height: 1080},
		NavigationTimeout: 30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = d.Viewport.Width
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = d.Viewport.Height
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = d.NavigationTimeout
	}
	return c
}

// ownsBrowser reports whether the manager started Chrome itself.
func (c Config) ownsBrowser() bool {
	return c.DebuggerURL == ""
}
