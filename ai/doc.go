// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the AI services used by the engine.
//
// It defines interfaces for text embeddings and for the downstream completion
// step, following the dependency inversion principle so that the retrieval
// core depends on abstractions rather than concrete providers.
//
//   - Embedder: generates vector embeddings from text
//   - EmbedderFactory: builds an Embedder bound to a per-call credential
//   - Completer: the black-box "complete(prompt) -> text" collaborator
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles without external dependencies
//
// Unlike a fixed construction-time provider, embedders here are built from a
// caller-supplied credential. The gateway binds the first successfully used
// credential to the vector index; the factory is the seam that makes this
// testable without a live provider.
package ai
