package embedding

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// truncateBudget is the character budget text is cut to before being
// sent to a provider (spec.md §4.2: "truncates text to a fixed
// character budget (head+tail split when over budget)"). Long source
// files and scanned PDFs both exceed this routinely.
const truncateBudget = 8000

// Adapter holds exactly one active Provider (spec.md §4.2: "at any
// time exactly one provider... is active") and adds the
// budget and health-tracking behavior every provider shares.
// Normalization is left to each provider's Embed.
type Adapter struct {
	mu       sync.RWMutex
	provider Provider

	unhealthy atomic.Bool
}

// NewAdapter wraps p as the initially active provider.
func NewAdapter(p Provider) *Adapter {
	return &Adapter{provider: p}
}

// SetProvider swaps the active provider, e.g. on a settings change
// from "local" to "remote". Clears the unhealthy flag so the new
// provider gets a clean slate.
func (a *Adapter) SetProvider(p Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.provider = p
	a.unhealthy.Store(false)
}

func (a *Adapter) active() Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.provider
}

// CurrentModelTag returns the active provider's "provider/model" id.
func (a *Adapter) CurrentModelTag() string {
	return a.active().ID()
}

// ExpectedDim returns the active provider's embedding dimension.
func (a *Adapter) ExpectedDim() int {
	return a.active().Dim()
}

// IsHealthy reports whether the most recent GetEmbedding call
// succeeded. Summary failures do not change it.
func (a *Adapter) IsHealthy() bool {
	return !a.unhealthy.Load()
}

// GetEmbedding truncates text, calls the active provider, and returns
// the provider's vector as is (both LocalProvider and RemoteProvider
// L2-normalize their output). On provider failure it returns a zero vector
// of the expected dimension and marks the provider unhealthy, per
// spec.md §4.2 — callers must check IsHealthy or inspect the vector
// for all-zero rather than relying on a non-nil error.
func (a *Adapter) GetEmbedding(ctx context.Context, text string) []float32 {
	p := a.active()
	vec, err := p.Embed(ctx, truncate(text))
	if err != nil {
		slog.Warn("embedding provider failed", "provider", p.ID(), "error", err)
		a.unhealthy.Store(true)
		return make([]float32, p.Dim())
	}
	a.unhealthy.Store(false)
	return vec
}

// GenerateSummary truncates text, calls the active provider, and
// falls back to the first 200 characters on failure.
func (a *Adapter) GenerateSummary(ctx context.Context, text string) string {
	p := a.active()
	summary, err := p.Summarize(ctx, truncate(text))
	if err != nil {
		slog.Warn("summary provider failed", "provider", p.ID(), "error", err)
		const max = 200
		if len(text) <= max {
			return text
		}
		return text[:max]
	}
	return summary
}

// HealthCheck delegates to the active provider.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}

// truncate implements the head+tail split: when text exceeds the
// budget, keep the first and last halves and drop the middle, which
// tends to preserve titles/intros and conclusions over bulk body text.
func truncate(text string) string {
	if len(text) <= truncateBudget {
		return text
	}
	half := truncateBudget / 2
	return text[:half] + text[len(text)-half:]
}
