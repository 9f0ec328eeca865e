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


// Package index defines the vector index abstraction used by the engine.
//
// One shared, multi-tenant index holds embedded chat messages and document
// chunks side by side; isolation is enforced at query time through metadata
// filters (user, kind) rather than per-user partitions. This is a deliberate
// simplicity/scale tradeoff: filtered searches may return fewer than the
// requested number of results, which callers compensate for by requesting an
// oversized candidate set.
//
// The index lives in process memory only and is lost on restart. Durability
// is an explicit non-goal.
//
// # Constructor Return Type Pattern
//
// Public constructors (chromem.NewIndex) return the index.Index interface to
// enforce abstraction and allow alternative backends without changing the
// gateway or assembler.
package index
