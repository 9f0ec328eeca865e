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

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/index"
	"golang.org/x/sync/singleflight"
)

// DefaultPendingLimit bounds the credential-less queue. Beyond it the oldest
// items are dropped; chat indexing is at-most-once and best-effort.
const DefaultPendingLimit = 1024

// sentinelText seeds the index at creation so searches never hit an empty
// collection. The sentinel is excluded from every search by its kind.
const sentinelText = "index seed entry"

// State is the gateway's initialization state.
type State int32

const (
	// StateUninitialized means no index exists yet.
	StateUninitialized State = iota
	// StateInitializing means a build is in flight; callers await it.
	StateInitializing
	// StateReady means the index is built and bound to a credential.
	StateReady
	// StateFailed means the last build failed; the next credentialed call retries.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Gateway hides index construction from callers. The index is built lazily
// from the first successfully used credential, with at most one build in
// flight; items arriving before any credential wait in a FIFO queue and are
// drained exactly once when the index becomes ready.
type Gateway struct {
	mu           sync.Mutex
	state        State
	idx          index.Index
	embedder     ai.Embedder
	credentialFP core.ID // fingerprint of the credential the index is bound to
	pending      []core.IndexedItem
	dropped      uint64

	pendingLimit int
	newEmbedder  ai.EmbedderFactory
	newIndex     index.Factory
	flight       singleflight.Group
	logger       *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway) error

// WithPendingLimit bounds the credential-less queue.
func WithPendingLimit(n int) Option {
	return func(g *Gateway) error {
		if n < 1 {
			n = 1
		}
		g.pendingLimit = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGateway creates a gateway. The embedder factory is invoked once per
// successful build with the caller-supplied credential; the index factory
// produces the fresh index that build seeds.
func NewGateway(newEmbedder ai.EmbedderFactory, newIndex index.Factory, opts ...Option) (*Gateway, error) {
	if newEmbedder == nil {
		return nil, ErrEmbedderFactoryRequired
	}
	if newIndex == nil {
		return nil, ErrIndexFactoryRequired
	}

	g := &Gateway{
		pendingLimit: DefaultPendingLimit,
		newEmbedder:  newEmbedder,
		newIndex:     newIndex,
		logger:       slog.Default().With("component", "embedding-gateway"),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Ensure makes the index ready, building it if necessary. Concurrent callers
// during a build await the single in-flight result rather than starting a
// second one. Once the index is bound to a credential, a different credential
// is a configuration error: embedding spaces must never mix.
func (g *Gateway) Ensure(ctx context.Context, credential string) error {
	if credential == "" {
		return core.ErrCredentialRequired
	}
	fp := core.IDFromContent(credential)

	g.mu.Lock()
	if g.state == StateReady {
		defer g.mu.Unlock()
		if g.credentialFP != fp {
			return core.ErrCredentialMismatch
		}
		return nil
	}
	g.mu.Unlock()

	_, err, _ := g.flight.Do("build", func() (any, error) {
		return nil, g.build(ctx, credential, fp)
	})
	if err != nil {
		return err
	}

	// The flight this caller joined may have been started by a different
	// credential. A nil build result only proves some credential succeeded,
	// so re-check the binding before reporting readiness.
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateReady && g.credentialFP != fp {
		return core.ErrCredentialMismatch
	}
	return nil
}

// build runs the actual initialization. Only one build executes at a time;
// singleflight serializes callers, so state transitions here are simple.
func (g *Gateway) build(ctx context.Context, credential string, fp core.ID) error {
	g.mu.Lock()
	if g.state == StateReady {
		// A previous flight finished between the caller's check and this one.
		defer g.mu.Unlock()
		if g.credentialFP != fp {
			return core.ErrCredentialMismatch
		}
		return nil
	}
	g.state = StateInitializing
	g.mu.Unlock()

	embedder, err := g.newEmbedder(credential)
	if err != nil {
		return g.fail(fmt.Errorf("create embedder: %w", err))
	}

	idx, err := g.newIndex()
	if err != nil {
		return g.fail(fmt.Errorf("create index: %w", err))
	}

	vec, err := embedder.EmbedText(ctx, sentinelText)
	if err != nil {
		return g.fail(fmt.Errorf("embed sentinel: %w", err))
	}
	sentinel := core.IndexedItem{
		Kind:     core.ItemKindSentinel,
		Ref:      core.IDFromContent(sentinelText),
		Contents: sentinelText,
		Vector:   vec,
	}
	if err := idx.Insert(ctx, sentinel); err != nil {
		return g.fail(fmt.Errorf("seed sentinel: %w", err))
	}

	g.mu.Lock()
	g.state = StateReady
	g.idx = idx
	g.embedder = embedder
	g.credentialFP = fp
	queued := g.pending
	g.pending = nil
	g.mu.Unlock()

	g.logger.Info("index ready", "queued", len(queued))

	// Drain the queue with the same credential. On a transient provider
	// error the undrained items go back for a future attempt; the index
	// itself is ready either way.
	if len(queued) > 0 {
		if err := g.embedAndInsert(ctx, embedder, idx, queued); err != nil {
			g.requeue(queued)
			g.logger.Warn("pending queue drain failed, items remain queued",
				"count", len(queued), "err", err)
		} else {
			g.logger.Info("pending queue drained", "count", len(queued))
		}
	}

	return nil
}

// fail records a failed build. The next credentialed call retries.
func (g *Gateway) fail(err error) error {
	g.mu.Lock()
	g.state = StateFailed
	g.mu.Unlock()
	g.logger.Error("index build failed", "err", err)
	return err
}

// Add embeds and inserts items. Without a credential the items join the
// pending queue and Add returns immediately; with one, the index is ensured
// first and any queued leftovers are drained opportunistically before the new
// items are embedded.
func (g *Gateway) Add(ctx context.Context, credential string, items ...core.IndexedItem) error {
	if len(items) == 0 {
		return nil
	}

	if credential == "" {
		g.enqueue(items)
		return nil
	}

	if err := g.Ensure(ctx, credential); err != nil {
		return err
	}

	g.mu.Lock()
	embedder, idx := g.embedder, g.idx
	queued := g.pending
	g.pending = nil
	g.mu.Unlock()

	if len(queued) > 0 {
		if err := g.embedAndInsert(ctx, embedder, idx, queued); err != nil {
			g.requeue(queued)
			g.logger.Warn("opportunistic drain failed, items remain queued",
				"count", len(queued), "err", err)
		}
	}

	return g.embedAndInsert(ctx, embedder, idx, items)
}

// Search embeds the query with the credential-bound embedder and runs a
// similarity search. The index is built first if it does not exist yet.
func (g *Gateway) Search(ctx context.Context, credential, query string, q index.Query) ([]core.SearchResult, error) {
	if err := g.Ensure(ctx, credential); err != nil {
		return nil, err
	}

	g.mu.Lock()
	embedder, idx := g.embedder, g.idx
	g.mu.Unlock()

	vec, err := embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, vec, q)
}

// State reports the current initialization state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// PendingCount reports the number of items awaiting a credential.
func (g *Gateway) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Close releases the underlying index, if one was built.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx != nil {
		return g.idx.Close()
	}
	return nil
}

// enqueue appends items FIFO, dropping the oldest beyond the bound.
func (g *Gateway) enqueue(items []core.IndexedItem) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = append(g.pending, items...)
	if overflow := len(g.pending) - g.pendingLimit; overflow > 0 {
		g.pending = g.pending[overflow:]
		g.dropped += uint64(overflow)
		g.logger.Warn("pending queue full, dropped oldest items",
			"dropped", overflow, "totalDropped", g.dropped)
	}
}

// requeue puts undrained items back at the front of the queue.
func (g *Gateway) requeue(items []core.IndexedItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(items, g.pending...)
	if overflow := len(g.pending) - g.pendingLimit; overflow > 0 {
		g.pending = g.pending[:g.pendingLimit]
		g.dropped += uint64(overflow)
	}
}

// embedAndInsert batch-embeds items and appends them to the index.
func (g *Gateway) embedAndInsert(ctx context.Context, embedder ai.Embedder, idx index.Index, items []core.IndexedItem) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Contents
	}

	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("%w: embedding result mismatch, expected %d received %d",
			core.ErrEmbeddingProvider, len(items), len(vectors))
	}

	for i := range items {
		items[i].Vector = vectors[i]
	}
	return idx.Insert(ctx, items...)
}
