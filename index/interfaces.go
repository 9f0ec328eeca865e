package index

import (
	"context"

	"github.com/poiesic/recall/core"
)

// Query narrows a similarity search. Isolation between tenants and item kinds
// is enforced here, at query time, rather than by physical partitioning.
type Query struct {
	// UserID restricts results to items owned by this user.
	UserID string

	// Kind restricts results to one item kind (chat or document). The
	// sentinel kind is never returned regardless of this field.
	Kind core.ItemKind

	// Limit is the maximum number of results to return. Fewer may be
	// returned after filtering; that is an accepted tradeoff.
	Limit int

	// MinSimilarity discards weak matches before returning.
	MinSimilarity float32
}

// Index is an append-only store of embedded items with nearest-neighbor
// search. Implementations must be thread-safe and support concurrent access.
type Index interface {
	// Insert appends items to the index. Items must carry their embedding.
	Insert(ctx context.Context, items ...core.IndexedItem) error

	// Search returns items ranked by descending cosine similarity to the
	// query embedding, filtered per q.
	Search(ctx context.Context, embedding []float32, q Query) ([]core.SearchResult, error)

	// Count reports the number of stored items, including the sentinel.
	Count() int

	// Close releases resources held by the index.
	Close() error
}

// Factory builds a fresh, empty Index. The gateway invokes it at most once
// per successful initialization.
type Factory func() (Index, error)
