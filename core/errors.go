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

package core

import "errors"

// Engine error taxonomy
var (
	// ErrCredentialRequired indicates an operation needed a credential and none was supplied.
	ErrCredentialRequired = errors.New("credential required")

	// ErrCredentialInvalid indicates the embedding provider rejected the credential.
	ErrCredentialInvalid = errors.New("credential rejected by embedding provider")

	// ErrCredentialMismatch indicates a credential differing from the one the
	// index was built with. The index never mixes embedding spaces.
	ErrCredentialMismatch = errors.New("credential differs from the one bound to the index")

	// ErrEmbeddingProvider indicates a transient provider failure (rate limit,
	// timeout, network). Queued work is retained for a later attempt.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrUnsupportedFormat indicates text extraction is unavailable for the input format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrValidation indicates empty or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrIndexClosed indicates the vector index has been closed.
	ErrIndexClosed = errors.New("index is closed")
)
