package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_SimilarTextsAreClose(t *testing.T) {
	t.Parallel()
	p := NewLocalProvider("")
	ctx := context.Background()

	dog, err := p.Embed(ctx, "the dog barks loudly at night")
	require.NoError(t, err)
	cat, err := p.Embed(ctx, "a cat sleeps on the warm sofa")
	require.NoError(t, err)
	dog2, err := p.Embed(ctx, "the dog barks loudly at night again")
	require.NoError(t, err)

	simSame := cosine(dog, dog2)
	simDiff := cosine(dog, cat)
	assert.Greater(t, simSame, simDiff, "near-duplicate text should be more similar than unrelated text")
}

func TestLocalProvider_EmptyTextYieldsZeroVector(t *testing.T) {
	t.Parallel()
	p := NewLocalProvider("")
	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestAdapter_TruncatesLongText(t *testing.T) {
	t.Parallel()
	rec := &recordingProvider{dim: 4}
	a := NewAdapter(rec)

	longText := strings.Repeat("a", truncateBudget*2)
	a.GetEmbedding(context.Background(), longText)

	require.Len(t, rec.seenTexts, 1)
	assert.Len(t, rec.seenTexts[0], truncateBudget)
}

func TestAdapter_FailureReturnsZeroVectorAndMarksUnhealthy(t *testing.T) {
	t.Parallel()
	rec := &recordingProvider{dim: 8, failEmbed: true}
	a := NewAdapter(rec)

	vec := a.GetEmbedding(context.Background(), "hello")
	assert.Len(t, vec, 8)
	for _, v := range vec {
		assert.Zero(t, v)
	}
	assert.False(t, a.IsHealthy())
}

func TestAdapter_SummaryFallsBackToFirst200Chars(t *testing.T) {
	t.Parallel()
	rec := &recordingProvider{dim: 4, failSummarize: true}
	a := NewAdapter(rec)

	text := strings.Repeat("x", 500)
	summary := a.GenerateSummary(context.Background(), text)
	assert.Len(t, summary, 200)
}

func TestAdapter_SetProviderClearsUnhealthy(t *testing.T) {
	t.Parallel()
	rec := &recordingProvider{dim: 4, failEmbed: true}
	a := NewAdapter(rec)
	a.GetEmbedding(context.Background(), "x")
	require.False(t, a.IsHealthy())

	a.SetProvider(&recordingProvider{dim: 4})
	assert.True(t, a.IsHealthy())
}

func TestGetEmbeddingBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	p := NewLocalProvider("")
	a := NewAdapter(p)

	texts := []string{"alpha text", "beta text", "gamma text"}
	vecs := a.GetEmbeddingBatch(context.Background(), texts)
	require.Len(t, vecs, 3)

	for i, text := range texts {
		want, _ := p.Embed(context.Background(), text)
		assert.InDeltaSlice(t, want, vecs[i], 1e-9)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

func sqrt(f float64) float64 {
	x := f
	for range 20 {
		x = 0.5 * (x + f/x)
	}
	return x
}

type recordingProvider struct {
	dim           int
	seenTexts     []string
	failEmbed     bool
	failSummarize bool
}

func (r *recordingProvider) ID() string { return "test/recording" }
func (r *recordingProvider) Dim() int   { return r.dim }
func (r *recordingProvider) HealthCheck(context.Context) error { return nil }

func (r *recordingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	r.seenTexts = append(r.seenTexts, text)
	if r.failEmbed {
		return nil, errors.New("boom")
	}
	return make([]float32, r.dim), nil
}

func (r *recordingProvider) Summarize(_ context.Context, text string) (string, error) {
	if r.failSummarize {
		return "", errors.New("boom")
	}
	return text, nil
}
