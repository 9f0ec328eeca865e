// Package ingestion turns raw document text into overlapping, ordered chunks
// and feeds them through the embedding gateway.
//
// Splitting tries separators from coarse to fine (paragraph, line, word,
// character) to land chunks near the target size with a fixed overlap between
// neighbors, so context spanning a boundary survives in at least one chunk.
// Chunk ids are content-derived and deterministic.
//
// Unlike chat indexing, document ingestion is synchronous and requires a
// credential; provider errors propagate to the caller.
package ingestion
