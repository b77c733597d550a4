package engine

import (
	"context"

	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/store"
)

// Setting reads one persisted setting key (spec.md §6's "Persisted
// settings keys" list, stored as plain key-value rows by pkg/store).
func (e *Engine) Setting(ctx context.Context, key string) (string, bool, error) {
	return e.global.Get(ctx, key)
}

// SetSetting writes one persisted setting key.
func (e *Engine) SetSetting(ctx context.Context, key, value string) error {
	return e.global.Set(ctx, key, value)
}

// Settings returns every persisted setting.
func (e *Engine) Settings(ctx context.Context) (map[string]string, error) {
	return e.global.All(ctx)
}

// SetProvider swaps the active embedding/summary provider, persisting
// its kind so a restart reconnects to the same one (spec.md §4.2:
// "exactly one provider... is active").
func (e *Engine) SetProvider(ctx context.Context, p embedding.Provider, kind string) error {
	e.mu.Lock()
	e.embed.SetProvider(p)
	e.mu.Unlock()
	return e.global.Set(ctx, store.SettingProviderKind, kind)
}
