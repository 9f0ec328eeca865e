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

package openai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/recall/core"
)

// authFragments are substrings that identify credential rejections in
// provider error messages. OpenAI-compatible servers disagree on exact
// wording, so matching stays loose.
var authFragments = []string{
	"401",
	"403",
	"unauthorized",
	"invalid_api_key",
	"incorrect api key",
	"invalid authentication",
	"authentication",
}

// classifyError maps a provider error onto the engine's error taxonomy.
// Credential rejections become core.ErrCredentialInvalid; everything else is
// treated as transient (core.ErrEmbeddingProvider) so queued work is retained.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrCredentialRequired) ||
		errors.Is(err, core.ErrCredentialInvalid) ||
		errors.Is(err, core.ErrEmbeddingProvider) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range authFragments {
		if strings.Contains(msg, fragment) {
			return fmt.Errorf("%w: %v", core.ErrCredentialInvalid, err)
		}
	}

	return fmt.Errorf("%w: %v", core.ErrEmbeddingProvider, err)
}
