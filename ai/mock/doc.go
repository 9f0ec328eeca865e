// Package mock provides test doubles for the ai package interfaces.
//
// MockEmbedder produces deterministic unit-length vectors from an FNV hash of
// the input text, so identical texts are always perfectly similar and tests
// need no external embedding service. Behavior can be overridden per test via
// the exported function fields.
package mock
