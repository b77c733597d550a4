package embedding

import (
	"context"
	"crypto/sha256"
	"math"
	"strings"

	"github.com/sefs-dev/sefs/pkg/textutil"
)

// localDim is the vector size produced by the local provider. It is
// deliberately small: the local provider stands in for an on-device
// embedding model (no such SDK exists anywhere in the retrieved
// example pack to bind against), so its job is to be a cheap,
// deterministic, always-available fallback rather than a faithful
// semantic embedder.
const localDim = 256

// LocalProvider is a hashing-based embedder: it buckets word tokens
// into a fixed-size vector (the classic "hashing trick" feature map)
// and L2-normalizes the result. Two texts that share vocabulary land
// close together in cosine space, which is enough to exercise the
// clustering pipeline end to end without any network dependency.
type LocalProvider struct {
	model string
}

// NewLocalProvider creates the local embedding/summary provider.
func NewLocalProvider(model string) *LocalProvider {
	if model == "" {
		model = "hashing-v1"
	}
	return &LocalProvider{model: model}
}

func (p *LocalProvider) ID() string { return "local/" + p.model }

func (p *LocalProvider) Dim() int { return localDim }

func (p *LocalProvider) HealthCheck(context.Context) error { return nil }

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, localDim)
	for _, tok := range textutil.Tokenize(text) {
		h := sha256.Sum256([]byte(tok))
		idx := (int(h[0])<<8 | int(h[1])) % localDim
		sign := float32(1)
		if h[2]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec, nil
}

func (p *LocalProvider) Summarize(_ context.Context, text string) (string, error) {
	const max = 200
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text, nil
	}
	return text[:max], nil
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
