// Package browser drives the planner page in Chrome: it launches or attaches
// to a browser, routes the page's API traffic through the interceptor and
// exposes the live DOM to the render loop.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"plannercolors/internal/logging"
)

// State is the lifecycle state of a planner tab.
type State string

const (
	StateOpen             State = "open"
	StateAttached         State = "attached"
	StateNavigationFailed State = "navigation_failed"
	// StateRestored marks sessions read back from the store; they have no
	// live page.
	StateRestored State = "restored"
)

// Session is the metadata of one planner tab.
type Session struct {
	ID       string    `json:"id"`
	TargetID string    `json:"target_id,omitempty"`
	PlanURL  string    `json:"plan_url,omitempty"`
	State    State     `json:"state"`
	OpenedAt time.Time `json:"opened_at"`
}

type tab struct {
	meta   Session
	page   *rod.Page
	router *rod.HijackRouter
}

// SessionManager owns the Chrome connection and the planner tabs it
// hijacks.
type SessionManager struct {
	cfg   Config
	store sessionStore

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	tabs       map[string]*tab
}

// NewSessionManager creates a manager. Nothing is launched until Start.
func NewSessionManager(cfg Config) *SessionManager {
	cfg = cfg.withDefaults()
	return &SessionManager{
		cfg:   cfg,
		store: sessionStore{path: cfg.SessionStore},
		tabs:  make(map[string]*tab),
	}
}

// Start connects to Chrome, launching it if no debugger URL is configured.
// Calling Start on a healthy connection is a no-op; a dead one is replaced.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("browser connection lost, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		clear(m.tabs)
	}

	restored, err := m.store.load()
	if err != nil {
		return err
	}
	for _, s := range restored {
		if _, live := m.tabs[s.ID]; !live {
			m.tabs[s.ID] = &tab{meta: s}
		}
	}

	u, err := resolveControlURL(m.cfg)
	if err != nil {
		return err
	}
	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome at %s: %w", u, err)
	}

	m.browser = b
	m.controlURL = u
	logging.Browser("Connected to Chrome at %s (owned=%v)", u, m.cfg.ownsBrowser())
	return nil
}

// connected returns the browser, starting it on first use.
func (m *SessionManager) connected(ctx context.Context) (*rod.Browser, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b != nil {
		return b, nil
	}
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.browser == nil {
		return nil, errors.New("browser not connected")
	}
	return m.browser, nil
}

// ControlURL returns the DevTools websocket URL, empty before Start.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected reports whether a browser connection is held.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// OpenPlanner opens planURL in a new tab whose planner API responses are
// loaded through client. Hijacking is installed on a blank page before
// navigating so the first collection fetches are observed.
func (m *SessionManager) OpenPlanner(ctx context.Context, planURL string, client *http.Client) (*Session, error) {
	b, err := m.connected(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	vp := m.cfg.Viewport
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		logging.BrowserWarn("viewport %dx%d not applied: %v", vp.Width, vp.Height, err)
	}

	router, err := hijackPlanner(page, client)
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	t := &tab{
		meta: Session{
			ID:       uuid.NewString(),
			TargetID: string(page.TargetID),
			PlanURL:  planURL,
			State:    StateOpen,
			OpenedAt: time.Now(),
		},
		page:   page,
		router: router,
	}
	m.register(t)

	if err := page.Context(ctx).Timeout(m.cfg.NavigationTimeout).Navigate(planURL); err != nil {
		meta := m.setState(t.meta.ID, StateNavigationFailed)
		return &meta, fmt.Errorf("navigate to %s: %w", planURL, err)
	}
	logging.Browser("Opened planner tab %s at %s", t.meta.ID, planURL)
	meta := t.meta
	return &meta, nil
}

// Attach hijacks an already open tab. Collections it fetched before
// attaching are only seen once the host fetches them again.
func (m *SessionManager) Attach(ctx context.Context, targetID string, client *http.Client) (*Session, error) {
	b, err := m.connected(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	router, err := hijackPlanner(page, client)
	if err != nil {
		return nil, err
	}

	t := &tab{
		meta: Session{
			ID:       uuid.NewString(),
			TargetID: targetID,
			State:    StateAttached,
			OpenedAt: time.Now(),
		},
		page:   page,
		router: router,
	}
	if info, err := page.Info(); err == nil {
		t.meta.PlanURL = info.URL
	}
	m.register(t)
	logging.Browser("Attached tab %s to target %s", t.meta.ID, targetID)
	meta := t.meta
	return &meta, nil
}

// Surface returns the render surface of a live tab.
func (m *SessionManager) Surface(sessionID string) (*PageSurface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tabs[sessionID]
	switch {
	case !ok:
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	case t.page == nil:
		return nil, fmt.Errorf("session %s has no live page (%s)", sessionID, t.meta.State)
	}
	return NewPageSurface(t.page), nil
}

// Session returns one session's metadata.
func (m *SessionManager) Session(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tabs[sessionID]
	if !ok {
		return Session{}, false
	}
	return t.meta, true
}

// Sessions returns all known sessions, live and restored.
func (m *SessionManager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.tabs))
	for _, t := range m.tabs {
		out = append(out, t.meta)
	}
	return out
}

// Shutdown stops every hijack router. Tabs and the browser are closed only
// when the manager launched Chrome itself.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, t := range m.tabs {
		if t.router != nil {
			if err := t.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop hijack for %s: %w", id, err))
			}
		}
		if t.page != nil && m.cfg.ownsBrowser() {
			_ = t.page.Close()
		}
	}
	clear(m.tabs)

	if m.browser != nil && m.cfg.ownsBrowser() {
		errs = append(errs, m.browser.Close())
	}
	m.browser = nil
	m.controlURL = ""
	logging.Browser("Browser session shut down")
	return errors.Join(errs...)
}

func (m *SessionManager) register(t *tab) {
	m.mu.Lock()
	m.tabs[t.meta.ID] = t
	m.mu.Unlock()
	m.persist()
}

func (m *SessionManager) setState(sessionID string, state State) Session {
	meta := Session{ID: sessionID, State: state}
	m.mu.Lock()
	if t, ok := m.tabs[sessionID]; ok {
		t.meta.State = state
		meta = t.meta
	}
	m.mu.Unlock()
	m.persist()
	return meta
}

func (m *SessionManager) persist() {
	if err := m.store.save(m.Sessions()); err != nil {
		logging.BrowserWarn("saving sessions: %v", err)
	}
}
