package gateway

import "errors"

var (
	// ErrEmbedderFactoryRequired is returned when an embedder factory is not provided.
	ErrEmbedderFactoryRequired = errors.New("embedder factory required")

	// ErrIndexFactoryRequired is returned when an index factory is not provided.
	ErrIndexFactoryRequired = errors.New("index factory required")
)
