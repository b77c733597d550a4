// Package namer turns a cluster's representative texts into a
// filesystem-safe folder name (spec.md §4.5).
package namer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sefs-dev/sefs/pkg/textutil"
)

// maxRepresentativeTexts bounds how many sample documents a cluster
// contributes to the naming prompt.
const maxRepresentativeTexts = 5

// maxNameLength is the sanitized name's character cap.
const maxNameLength = 50

// summarizer is the subset of embedding.Provider the namer needs. It
// depends on this narrow interface, not the concrete adapter, so
// tests can supply a stub without constructing a real provider.
type summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Namer generates unique, sanitized cluster names for one recluster
// run, tracking names already issued so collisions get numbered
// suffixes (spec.md §4.5's "if the result collides... append _2, _3").
type Namer struct {
	provider summarizer
	used     map[string]int
}

// New returns a Namer backed by provider for LLM-assisted naming.
func New(provider summarizer) *Namer {
	return &Namer{provider: provider, used: make(map[string]int)}
}

// Name produces a name for a cluster given up to maxRepresentativeTexts
// sample documents. It tries the LLM first and falls back to
// frequency-based keyword extraction on failure or an empty provider
// response.
func (n *Namer) Name(ctx context.Context, texts []string) string {
	if len(texts) > maxRepresentativeTexts {
		texts = texts[:maxRepresentativeTexts]
	}

	raw := n.fromProvider(ctx, texts)
	if raw == "" {
		raw = n.fromKeywords(texts)
	}
	if raw == "" {
		raw = "cluster"
	}

	return n.dedupe(sanitize(raw))
}

func (n *Namer) fromProvider(ctx context.Context, texts []string) string {
	if n.provider == nil || len(texts) == 0 {
		return ""
	}
	prompt := namingPrompt(texts)
	name, err := n.provider.Summarize(ctx, prompt)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

func (n *Namer) fromKeywords(texts []string) string {
	joined := strings.Join(texts, " ")
	tokens := textutil.TopTokens(joined, 3, 3)
	return strings.Join(tokens, "_")
}

// dedupe appends a numeric suffix the first time a sanitized name
// repeats within this Namer's lifetime (one recluster run).
func (n *Namer) dedupe(name string) string {
	count := n.used[name]
	n.used[name] = count + 1
	if count == 0 {
		return name
	}
	return name + "_" + strconv.Itoa(count+1)
}

func namingPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Give a short filesystem folder name (2-4 words) that captures the common " +
		"theme of these documents. Reply with only the name, no punctuation or commentary:\n\n")
	for i, t := range texts {
		b.WriteString("---\n")
		b.WriteString(t)
		if i < len(texts)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var nonWordRun = regexp.MustCompile(`[\s-]+`)
var disallowed = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// sanitize strips quotes/dots, collapses whitespace and dashes to
// underscores, drops anything not alphanumeric-or-underscore, trims
// to maxNameLength, and strips leading/trailing underscores — the
// exact pipeline spec.md §4.5 specifies.
func sanitize(s string) string {
	s = strings.NewReplacer(`"`, "", "'", "", ".", "").Replace(s)
	s = nonWordRun.ReplaceAllString(s, "_")
	s = disallowed.ReplaceAllString(s, "")
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "cluster"
	}
	return s
}

