// Package search assembles ranked, deduplicated context bundles for the
// downstream generation step.
//
// A bundle is built in priority order: the user's recent session messages,
// semantically relevant chat history (deduplicated against the recent section
// by message id), and document chunks belonging to the user. Non-empty
// sections are labeled and concatenated; when everything is empty an explicit
// no-context marker is emitted so the generator always receives a
// deterministic instruction.
package search
