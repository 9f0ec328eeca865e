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

import (
	"fmt"
	"strings"
)

// ValidateChatMessage validates a ChatMessage according to domain rules.
//
// Validation rules:
//   - Contents must not be empty or whitespace only
//   - Role must be user or assistant
//   - UserID must not be empty
//
// NOT validated:
//   - Id (0 means it will be derived from content)
//   - Timestamp (zero means the engine stamps it with its clock)
func ValidateChatMessage(msg *ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrValidation)
	}
	if strings.TrimSpace(msg.Contents) == "" {
		return fmt.Errorf("%w: message contents cannot be empty", ErrValidation)
	}
	if err := ValidateRole(msg.Role); err != nil {
		return err
	}
	if msg.UserID == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrValidation)
	}
	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	return nil
}

// ValidateQuery validates a search query string.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrValidation)
	}
	return nil
}

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrValidation)
	}
	return nil
}
