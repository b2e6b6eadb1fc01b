// Package library tracks which Zotero library tool calls operate on and
// builds the matching backend client. An in-process override, set by the
// library-switch tool, takes precedence over the environment; when no
// override is set every call falls back to the configured defaults.
package library

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// Selection identifies one library: a numeric ID plus its type.
type Selection struct {
	ID   string `json:"id"`
	Type string `json:"type"` // user, group, feed
}

func (s Selection) String() string {
	return s.Type + "/" + s.ID
}

// Factory builds a backend client for a selection under the given
// environment. Tests substitute fakes here.
type Factory func(ctx context.Context, env config.Env, sel Selection) (zotero.Client, error)

// Manager resolves the effective library for each call and caches nothing:
// clients are rebuilt per call so environment changes and switches take
// effect immediately.
type Manager struct {
	mu       sync.Mutex
	override *Selection

	factory Factory
	log     zerolog.Logger
}

// NewManager builds a manager with the default client factory.
func NewManager(log zerolog.Logger) *Manager {
	m := &Manager{log: log.With().Str("component", "library").Logger()}
	m.factory = m.defaultFactory
	return m
}

// NewManagerWithFactory builds a manager with a custom client factory.
func NewManagerWithFactory(log zerolog.Logger, factory Factory) *Manager {
	return &Manager{log: log.With().Str("component", "library").Logger(), factory: factory}
}

// Active returns the current override, if one is set.
func (m *Manager) Active() (Selection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.override == nil {
		return Selection{}, false
	}
	return *m.override, true
}

// SetActive installs an override. Prefer Switch, which validates and probes.
func (m *Manager) SetActive(sel Selection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = &sel
}

// ClearActive drops the override, reverting to environment defaults.
func (m *Manager) ClearActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = nil
}

// Resolve returns the library the next backend call will address: the
// override when set, the environment defaults otherwise.
func (m *Manager) Resolve(env config.Env) Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.override != nil {
		return *m.override
	}
	return Selection{ID: env.LibraryID, Type: env.LibraryType}
}

// Client builds a backend client for the effective library.
func (m *Manager) Client(ctx context.Context) (zotero.Client, error) {
	env := config.Read()
	sel := m.Resolve(env)
	return m.factory(ctx, env, sel)
}

// WebClient builds a client against the hosted web API for the effective
// library. Write operations always go through the web API: the desktop
// app's local endpoint rejects writes.
func (m *Manager) WebClient(ctx context.Context) (zotero.Client, error) {
	env := config.Read()
	sel := m.Resolve(env)
	if sel.Type == "feed" {
		return nil, zotero.ErrReadOnly
	}
	if env.APIKey == "" || sel.ID == "" || sel.ID == "0" {
		return nil, fmt.Errorf("web API credentials not configured: set ZOTERO_API_KEY and ZOTERO_LIBRARY_ID")
	}
	return zotero.NewHTTPClient(env.WebAPIBase, sel.Type, sel.ID, env.APIKey, m.log)
}

// ClientFor builds a backend client for an explicit selection, bypassing the
// override. Used by the switch probe.
func (m *Manager) ClientFor(ctx context.Context, sel Selection) (zotero.Client, error) {
	return m.factory(ctx, config.Read(), sel)
}

func (m *Manager) defaultFactory(ctx context.Context, env config.Env, sel Selection) (zotero.Client, error) {
	switch sel.Type {
	case "feed":
		if !env.Local {
			return nil, fmt.Errorf("feed libraries require local mode (set ZOTERO_LOCAL=true)")
		}
		return newFeedClient(env.DatabasePath(), sel.ID), nil
	case "user", "group":
		base := env.WebAPIBase
		if env.Local {
			base = env.LocalAPIBase
		}
		return zotero.NewHTTPClient(base, sel.Type, sel.ID, env.APIKey, m.log)
	default:
		return nil, fmt.Errorf("unsupported library type %q", sel.Type)
	}
}

// normalizeType lowercases and validates a library type string.
func normalizeType(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "user", "group", "feed":
		return t, nil
	}
	return "", fmt.Errorf("invalid library type %q: must be user, group, or feed", t)
}
