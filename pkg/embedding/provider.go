// Package embedding provides a provider-agnostic abstraction over
// vector embedding and text summarization, with exactly one provider
// active at a time (spec.md §4.2). Embeddings are only comparable
// when produced by the same model, so every vector leaving this
// package is tagged with the model that produced it.
package embedding

import "context"

// Provider is the capability interface local and remote embedding
// backends implement. Modeled on the teacher's dispatch-by-type
// model.Provider interface (pkg/model/provider/provider.go), narrowed
// to the embedding/summarization surface SEFS needs.
type Provider interface {
	// ID returns the canonical "provider/model" tag stamped on every
	// embedding this provider produces.
	ID() string
	// Embed returns a vector for text, or an error on provider failure.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Summarize returns a short natural-language summary of text.
	Summarize(ctx context.Context, text string) (string, error)
	// Dim returns this provider's embedding dimensionality.
	Dim() int
	// HealthCheck returns a non-nil error if the provider is currently unusable.
	HealthCheck(ctx context.Context) error
}

// Kind identifies a provider implementation, persisted as a setting
// (spec.md §6: "provider ∈ {local, remote}").
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)
