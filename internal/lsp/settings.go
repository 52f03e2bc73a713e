package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"
)

// SettingsSection is the configuration section the server reads.
const SettingsSection = "scl"

// DefaultMaxNumberOfProblems is used when nothing else is configured.
const DefaultMaxNumberOfProblems = 1000

// Settings holds the per-resource server settings.
type Settings struct {
	MaxNumberOfProblems int `json:"maxNumberOfProblems"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{MaxNumberOfProblems: DefaultMaxNumberOfProblems}
}

// decodeSettings decodes a settings section over base. Fields the section
// leaves out keep their base value; a missing or null section yields base.
func decodeSettings(raw json.RawMessage, base Settings) (Settings, error) {
	s := base
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return base, fmt.Errorf("decoding %s settings: %w", SettingsSection, err)
	}
	return s, nil
}

// FetchFunc asks the client for the settings scoped to one resource.
type FetchFunc func(ctx context.Context, uri protocol.DocumentURI) (Settings, error)

// SettingsResolver resolves settings per document.
//
// When the client supports scoped configuration, the first request for a
// resource starts a lookup that later requests share until the entry is
// evicted by Forget or Reset. Otherwise the global settings are returned.
// A failed lookup is returned to every waiter and is not retried.
type SettingsResolver struct {
	fetch FetchFunc

	mu     sync.Mutex
	scoped bool
	global Settings
	cache  map[protocol.DocumentURI]*settingsLookup
}

// settingsLookup is an in-flight or completed fetch.
type settingsLookup struct {
	done     chan struct{}
	settings Settings
	err      error
}

func (l *settingsLookup) wait(ctx context.Context) (Settings, error) {
	select {
	case <-l.done:
		return l.settings, l.err
	case <-ctx.Done():
		return Settings{}, ctx.Err()
	}
}

// NewSettingsResolver creates a resolver that fetches scoped settings with fetch.
func NewSettingsResolver(fetch FetchFunc) *SettingsResolver {
	return &SettingsResolver{
		fetch:  fetch,
		global: DefaultSettings(),
		cache:  make(map[protocol.DocumentURI]*settingsLookup),
	}
}

// SetScoped records whether the client supports workspace/configuration.
func (r *SettingsResolver) SetScoped(scoped bool) {
	r.mu.Lock()
	r.scoped = scoped
	r.mu.Unlock()
}

// Scoped reports whether settings are fetched per resource.
func (r *SettingsResolver) Scoped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoped
}

// SetGlobal replaces the global settings.
func (r *SettingsResolver) SetGlobal(s Settings) {
	r.mu.Lock()
	r.global = s
	r.mu.Unlock()
}

// Global returns the global settings.
func (r *SettingsResolver) Global() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.global
}

// Get returns the settings for uri.
func (r *SettingsResolver) Get(ctx context.Context, uri protocol.DocumentURI) (Settings, error) {
	r.mu.Lock()
	if !r.scoped {
		s := r.global
		r.mu.Unlock()
		return s, nil
	}
	l, ok := r.cache[uri]
	if !ok {
		l = &settingsLookup{done: make(chan struct{})}
		r.cache[uri] = l
		// The lookup outlives the caller that started it; other callers may
		// be sharing it.
		go func(ctx context.Context) {
			defer close(l.done)
			l.settings, l.err = r.fetch(ctx, uri)
		}(context.WithoutCancel(ctx))
	}
	r.mu.Unlock()

	return l.wait(ctx)
}

// Forget drops the cached lookup for uri.
func (r *SettingsResolver) Forget(uri protocol.DocumentURI) {
	r.mu.Lock()
	delete(r.cache, uri)
	r.mu.Unlock()
}

// Reset drops every cached lookup. Lookups still in flight complete for
// the callers already waiting on them.
func (r *SettingsResolver) Reset() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

// Cached returns the number of cached lookups.
func (r *SettingsResolver) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
