package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use. Embeddings returned
// by one Embedder must not be mixed with those of an Embedder built from a
// different credential or model.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFactory builds an Embedder bound to a caller-supplied credential.
// The engine constructs embedders lazily, on the first credentialed call.
type EmbedderFactory func(credential string) (Embedder, error)

// Completer is the downstream text-generation step, consumed as a black box.
// The engine never depends on its output for correctness.
type Completer interface {
	// Complete generates a text continuation for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}
