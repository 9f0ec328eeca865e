package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/gateway"
	"github.com/poiesic/recall/index"
	"github.com/poiesic/recall/session"
)

const (
	// DefaultRecentLimit is the number of recent session messages included.
	DefaultRecentLimit = 6
	// DefaultSectionLimit caps each semantic section when the caller passes k <= 0.
	DefaultSectionLimit = 5
	// DefaultMinSimilarity discards weak matches before they reach the bundle.
	DefaultMinSimilarity = 0.6

	recentLabel    = "Recent conversation:"
	historyLabel   = "Relevant history:"
	documentsLabel = "Documents:"

	// NoContextMarker is emitted when every section is empty, so the
	// downstream generator receives a deterministic instruction either way.
	NoContextMarker = "No relevant context available."
)

// Assembler merges session history with semantic search results into a
// bounded, labeled context bundle.
type Assembler struct {
	sessions      *session.Store
	gw            *gateway.Gateway
	recentLimit   int
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithRecentLimit sets how many recent session messages are included.
func WithRecentLimit(n int) Option {
	return func(a *Assembler) error {
		if n < 1 {
			n = 1
		}
		a.recentLimit = n
		return nil
	}
}

// WithMinSimilarity sets the relevance threshold for semantic sections.
func WithMinSimilarity(min float32) Option {
	return func(a *Assembler) error {
		a.minSimilarity = min
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAssembler creates a context assembler.
func NewAssembler(sessions *session.Store, gw *gateway.Gateway, opts ...Option) (*Assembler, error) {
	if sessions == nil {
		return nil, ErrSessionStoreRequired
	}
	if gw == nil {
		return nil, ErrGatewayRequired
	}

	a := &Assembler{
		sessions:      sessions,
		gw:            gw,
		recentLimit:   DefaultRecentLimit,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default().With("component", "assembler"),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Assemble builds the context bundle for a query.
func (a *Assembler) Assemble(ctx context.Context, queryText, userID, credential string, k int) (*core.ContextBundle, error) {
	return a.AssembleWithMonitor(ctx, queryText, userID, credential, k, nil)
}

// AssembleWithMonitor builds the context bundle with observation hooks.
//
// Sections in priority order, each capped: recent session messages
// (chronological), semantically relevant chat history (deduplicated against
// the recent section by message id), then the user's document chunks. Without
// a credential the semantic sections are skipped and the bundle is
// recency-only. Explicit search errors surface to the caller.
func (a *Assembler) AssembleWithMonitor(ctx context.Context, queryText, userID, credential string, k int, monitor AssemblyMonitor) (*core.ContextBundle, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateQuery(queryText); err != nil {
		return nil, err
	}
	if err := core.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultSectionLimit
	}

	monitor.Start(queryText)

	// 1. Recent session messages, oldest to newest.
	recent := a.sessions.Recent(userID, a.recentLimit)
	monitor.AfterRecent(recent)

	seen := make(map[core.ID]bool, len(recent))
	for _, msg := range recent {
		seen[msg.Id] = true
	}

	// 2 + 3. Semantic sections need a credential to embed the query.
	var history, documents []core.SearchResult
	if credential != "" {
		hits, err := a.gw.Search(ctx, credential, queryText, index.Query{
			UserID:        userID,
			Kind:          core.ItemKindChat,
			Limit:         k,
			MinSimilarity: a.minSimilarity,
		})
		if err != nil {
			a.logger.Error("chat history search failed", "err", err)
			return nil, err
		}
		for _, hit := range hits {
			if seen[hit.Item.Ref] {
				continue
			}
			history = append(history, hit)
		}
		monitor.AfterHistorySearch(history)

		documents, err = a.gw.Search(ctx, credential, queryText, index.Query{
			UserID:        userID,
			Kind:          core.ItemKindDocument,
			Limit:         k,
			MinSimilarity: a.minSimilarity,
		})
		if err != nil {
			a.logger.Error("document search failed", "err", err)
			return nil, err
		}
		monitor.AfterDocumentSearch(documents)
	}

	bundle := &core.ContextBundle{
		UsedContext: len(history) > 0 || len(documents) > 0,
	}

	if len(recent) > 0 {
		bundle.Segments = append(bundle.Segments, formatRecent(recent))
	}
	if len(history) > 0 {
		bundle.Segments = append(bundle.Segments, formatHits(historyLabel, history))
	}
	if len(documents) > 0 {
		bundle.Segments = append(bundle.Segments, formatHits(documentsLabel, documents))
	}
	if len(bundle.Segments) == 0 {
		bundle.Segments = append(bundle.Segments, NoContextMarker)
	}

	monitor.Finish(bundle)
	return bundle, nil
}

// formatRecent renders the chronological session section.
func formatRecent(msgs []core.ChatMessage) string {
	var b strings.Builder
	b.WriteString(recentLabel)
	for _, msg := range msgs {
		b.WriteString("\n")
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Contents)
	}
	return b.String()
}

// formatHits renders a semantic section with one entry per hit.
func formatHits(label string, hits []core.SearchResult) string {
	var b strings.Builder
	b.WriteString(label)
	for i, hit := range hits {
		b.WriteString("\n")
		if name := hit.Item.Meta["file_name"]; name != "" {
			b.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, name, hit.Item.Contents))
		} else {
			b.WriteString(fmt.Sprintf("%d. %s", i+1, hit.Item.Contents))
		}
	}
	return b.String()
}
