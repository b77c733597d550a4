package namer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSummarizer struct {
	name string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, string) (string, error) {
	return s.name, s.err
}

func TestName_UsesProviderResponseWhenAvailable(t *testing.T) {
	t.Parallel()
	n := New(stubSummarizer{name: `"Tax Receipts"`})
	name := n.Name(context.Background(), []string{"a receipt for taxes"})
	assert.Equal(t, "Tax_Receipts", name)
}

func TestName_FallsBackToKeywordsOnProviderError(t *testing.T) {
	t.Parallel()
	n := New(stubSummarizer{err: errors.New("boom")})
	name := n.Name(context.Background(), []string{"invoice invoice invoice payment payment vendor"})
	assert.NotEmpty(t, name)
	assert.NotContains(t, name, " ")
}

func TestName_FallsBackToKeywordsWhenProviderNil(t *testing.T) {
	t.Parallel()
	n := New(nil)
	name := n.Name(context.Background(), []string{"budget budget forecast forecast quarter"})
	assert.NotEmpty(t, name)
}

func TestName_DedupesWithinRun(t *testing.T) {
	t.Parallel()
	n := New(stubSummarizer{name: "Receipts"})
	first := n.Name(context.Background(), []string{"x"})
	second := n.Name(context.Background(), []string{"y"})
	third := n.Name(context.Background(), []string{"z"})
	assert.Equal(t, "Receipts", first)
	assert.Equal(t, "Receipts_2", second)
	assert.Equal(t, "Receipts_3", third)
}

func TestSanitize_StripsQuotesDotsAndCollapsesSeparators(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Tax_Receipts", sanitize(`"Tax.   Receipts"`))
	assert.Equal(t, "Foo_Bar", sanitize("Foo - Bar!!"))
}

func TestSanitize_TrimsToMaxLengthAndStripsEdgeUnderscores(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", maxNameLength+20)
	got := sanitize("_" + long + "_")
	assert.LessOrEqual(t, len(got), maxNameLength)
	assert.False(t, strings.HasPrefix(got, "_"))
	assert.False(t, strings.HasSuffix(got, "_"))
}

func TestSanitize_EmptyResultFallsBackToCluster(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cluster", sanitize("...---..."))
}
