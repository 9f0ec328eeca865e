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

package recall

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/openai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/gateway"
	"github.com/poiesic/recall/index"
	"github.com/poiesic/recall/index/chromem"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/search"
	"github.com/poiesic/recall/session"
)

// supportedMimeTypes lists the formats the engine can ingest directly.
// Anything else needs an external extraction step first.
var supportedMimeTypes = map[string]bool{
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/json": true,
}

// Engine is the contextual memory and retrieval engine. It owns the session
// store, the embedding gateway, the ingestion pipeline and the context
// assembler, and runs fire-and-forget chat indexing on a bounded worker pool.
//
// All state is held in process memory and lost on restart; durability is an
// explicit non-goal.
type Engine struct {
	sessions  *session.Store
	gw        *gateway.Gateway
	pipeline  *ingestion.Pipeline
	assembler *search.Assembler
	pool      *ants.Pool
	now       func() time.Time
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig        *ai.Config
	embedderFactory ai.EmbedderFactory
	indexFactory    index.Factory
	clock           func() time.Time
	capacity        int
	ttl             time.Duration
	sweepInterval   time.Duration
	chunkSize       int
	chunkOverlap    int
	poolSize        int
	pendingLimit    int
	logger          *slog.Logger
}

// WithAIConfig sets the provider configuration used to build embedders from
// caller-supplied credentials.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) { o.aiConfig = cfg }
}

// WithEmbedderFactory overrides how embedders are built from credentials.
// Mainly useful for tests.
func WithEmbedderFactory(factory ai.EmbedderFactory) EngineOption {
	return func(o *engineOptions) { o.embedderFactory = factory }
}

// WithIndexFactory overrides how the vector index is constructed.
func WithIndexFactory(factory index.Factory) EngineOption {
	return func(o *engineOptions) { o.indexFactory = factory }
}

// WithClock injects a clock shared by every time-dependent component.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.clock = now }
}

// WithSessionCapacity sets the per-session message bound.
func WithSessionCapacity(n int) EngineOption {
	return func(o *engineOptions) { o.capacity = n }
}

// WithSessionTTL sets the session inactivity TTL.
func WithSessionTTL(ttl time.Duration) EngineOption {
	return func(o *engineOptions) { o.ttl = ttl }
}

// WithSweepInterval sets the session sweeper period.
func WithSweepInterval(interval time.Duration) EngineOption {
	return func(o *engineOptions) { o.sweepInterval = interval }
}

// WithChunking sets the document chunk size and overlap.
func WithChunking(size, overlap int) EngineOption {
	return func(o *engineOptions) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithPoolSize sets the worker pool size for background chat indexing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) EngineOption {
	return func(o *engineOptions) { o.poolSize = size }
}

// WithPendingLimit bounds the gateway's credential-less queue.
func WithPendingLimit(n int) EngineOption {
	return func(o *engineOptions) { o.pendingLimit = n }
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

// NewEngine creates a fully wired engine.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:      ai.DefaultConfig(),
		clock:         time.Now,
		capacity:      session.DefaultCapacity,
		ttl:           session.DefaultTTL,
		sweepInterval: session.DefaultSweepInterval,
		chunkSize:     ingestion.DefaultChunkSize,
		chunkOverlap:  ingestion.DefaultChunkOverlap,
		pendingLimit:  gateway.DefaultPendingLimit,
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	embedderFactory := options.embedderFactory
	if embedderFactory == nil {
		embedderFactory = openai.NewEmbedderFactory(options.aiConfig)
	}
	indexFactory := options.indexFactory
	if indexFactory == nil {
		indexFactory = chromem.NewIndex
	}

	sessions, err := session.NewStore(
		session.WithCapacity(options.capacity),
		session.WithTTL(options.ttl),
		session.WithSweepInterval(options.sweepInterval),
		session.WithClock(options.clock),
		session.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.NewGateway(embedderFactory, indexFactory,
		gateway.WithPendingLimit(options.pendingLimit),
		gateway.WithLogger(logger),
	)
	if err != nil {
		sessions.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(gw,
		ingestion.WithChunkSize(options.chunkSize),
		ingestion.WithChunkOverlap(options.chunkOverlap),
		ingestion.WithClock(options.clock),
		ingestion.WithLogger(logger),
	)
	if err != nil {
		sessions.Close()
		gw.Close()
		return nil, err
	}

	assembler, err := search.NewAssembler(sessions, gw, search.WithLogger(logger))
	if err != nil {
		sessions.Close()
		gw.Close()
		return nil, err
	}

	poolSize := options.poolSize
	if poolSize < 1 {
		poolSize = runtime.NumCPU() / 2
		if poolSize < 1 {
			poolSize = 1
		}
	}
	// Nonblocking so a saturated pool sheds work instead of stalling chat
	// turns; dropped indexing is logged, not surfaced.
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		sessions.Close()
		gw.Close()
		return nil, err
	}

	return &Engine{
		sessions:  sessions,
		gw:        gw,
		pipeline:  pipeline,
		assembler: assembler,
		pool:      pool,
		now:       options.clock,
		logger:    logger,
	}, nil
}

// ProcessDocument ingests one document synchronously: gate on format, split
// into chunks, embed and index. Errors surface to the caller.
func (e *Engine) ProcessDocument(ctx context.Context, data []byte, fileName, mimeType, userID, credential string) (*core.ProcessedDocument, error) {
	if !supportedMimeTypes[normalizeMime(mimeType)] {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mimeType)
	}

	meta := core.FileMetadata{FileName: fileName, FileType: mimeType}
	return e.pipeline.Process(ctx, string(data), meta, userID, credential)
}

// AddChatMessage appends a message to the user's session and schedules
// best-effort background indexing. The chat turn never fails on indexing
// problems; a just-sent message is not guaranteed to be retrievable within
// the same turn.
func (e *Engine) AddChatMessage(ctx context.Context, msg core.ChatMessage, credential string) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = e.now()
	}
	if err := core.ValidateChatMessage(&msg); err != nil {
		return err
	}
	if msg.Id == 0 {
		msg.Id = core.IDFromContent(msg.UserID + "|" + string(msg.Role) + "|" +
			strconv.FormatInt(msg.Timestamp.UnixNano(), 10) + "|" + msg.Contents)
	}

	e.sessions.Append(msg.UserID, msg)

	item := core.IndexedItem{
		Kind:     core.ItemKindChat,
		Ref:      msg.Id,
		UserID:   msg.UserID,
		Contents: msg.Contents,
		Meta:     map[string]string{"role": string(msg.Role)},
	}
	if err := e.pool.Submit(func() {
		if err := e.gw.Add(context.Background(), credential, item); err != nil {
			e.logger.Error("background chat indexing failed", "messageID", msg.Id, "err", err)
		}
	}); err != nil {
		e.logger.Warn("chat indexing dropped, worker pool saturated", "messageID", msg.Id, "err", err)
	}

	return nil
}

// SearchContext assembles the ranked, deduplicated context bundle for a query.
func (e *Engine) SearchContext(ctx context.Context, queryText, userID, credential string, k int) (*core.ContextBundle, error) {
	return e.assembler.Assemble(ctx, queryText, userID, credential, k)
}

// StartNewConversation resets the user's session and returns the new session
// id, which always differs from the previous one.
func (e *Engine) StartNewConversation(userID string) (string, error) {
	if err := core.ValidateUserID(userID); err != nil {
		return "", err
	}
	return e.sessions.Reset(userID), nil
}

// SessionInfo returns a summary of the user's active session, or nil if none.
func (e *Engine) SessionInfo(userID string) *core.SessionInfo {
	return e.sessions.Info(userID)
}

// Sessions exposes the session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Gateway exposes the embedding gateway.
func (e *Engine) Gateway() *gateway.Gateway {
	return e.gw
}

// Close releases the worker pool, the gateway and the session sweeper.
func (e *Engine) Close() error {
	e.pool.Release()

	if err := e.gw.Close(); err != nil {
		e.logger.Error("error closing gateway", "err", err)
		return err
	}
	if err := e.sessions.Close(); err != nil {
		e.logger.Error("error closing session store", "err", err)
		return err
	}
	return nil
}

// normalizeMime strips parameters and casing from a mime type.
func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
