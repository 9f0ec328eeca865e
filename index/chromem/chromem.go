package chromem

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/index"
)

const collectionName = "recall-items"

// Metadata keys stored alongside each document.
const (
	metaKind   = "kind"
	metaUserID = "user_id"
	metaRef    = "ref"
)

// Index implements index.Index on top of chromem-go, a pure Go embedded
// vector database. All items share a single collection; tenant and kind
// isolation happens through metadata filters at query time.
type Index struct {
	db     *chromem.DB
	col    *chromem.Collection
	mu     sync.RWMutex
	closed bool
	count  int
	logger *slog.Logger
}

var _ index.Index = (*Index)(nil)

// NewIndex creates an empty in-memory index.
//
// Returns index.Index interface to enforce abstraction.
func NewIndex() (index.Index, error) {
	db := chromem.NewDB()

	// Embeddings are always supplied by the caller, so no embedding func
	// and the default cosine distance.
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{
		db:     db,
		col:    col,
		logger: slog.Default().With("component", "chromem-index"),
	}, nil
}

// Insert appends items to the index.
func (i *Index) Insert(ctx context.Context, items ...core.IndexedItem) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return core.ErrIndexClosed
	}

	for _, item := range items {
		if len(item.Vector) == 0 {
			return fmt.Errorf("item %d has no embedding", item.Ref)
		}

		metadata := map[string]string{
			metaKind:   string(item.Kind),
			metaUserID: item.UserID,
			metaRef:    strconv.FormatUint(uint64(item.Ref), 10),
		}
		for k, v := range item.Meta {
			metadata[k] = v
		}

		doc := chromem.Document{
			ID:        fmt.Sprintf("%s-%d", item.Kind, item.Ref),
			Content:   item.Contents,
			Embedding: item.Vector,
			Metadata:  metadata,
		}
		if err := i.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
		i.count++
	}

	return nil
}

// Search returns items ranked by descending similarity, filtered by user and
// kind. It fetches an oversized candidate set (2x the limit, clamped to the
// collection size) and applies the similarity threshold afterwards, so the
// returned count may be smaller than q.Limit.
func (i *Index) Search(ctx context.Context, embedding []float32, q index.Query) ([]core.SearchResult, error) {
	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return nil, core.ErrIndexClosed
	}
	total := i.count
	i.mu.RUnlock()

	if q.Limit <= 0 || total == 0 {
		return nil, nil
	}

	// The where filter excludes the sentinel implicitly: its kind never
	// matches a caller-supplied kind.
	where := map[string]string{metaKind: string(q.Kind)}
	if q.UserID != "" {
		where[metaUserID] = q.UserID
	}

	// Oversized candidate set to compensate for filtered-out hits. chromem
	// rejects nResults larger than the stored document count, so clamp and
	// retry downward the way its error reports demand.
	candidates := q.Limit * 2
	if candidates > total {
		candidates = total
	}

	var raw []chromem.Result
	for n := candidates; n >= 1; n-- {
		var err error
		raw, err = i.col.QueryEmbedding(ctx, embedding, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results := make([]core.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.Similarity < q.MinSimilarity {
			continue
		}
		ref, err := strconv.ParseUint(r.Metadata[metaRef], 10, 64)
		if err != nil {
			i.logger.Warn("skipping result with malformed ref", "id", r.ID, "err", err)
			continue
		}

		meta := make(map[string]string)
		for k, v := range r.Metadata {
			if k != metaKind && k != metaUserID && k != metaRef {
				meta[k] = v
			}
		}

		results = append(results, core.SearchResult{
			Item: core.IndexedItem{
				Kind:     core.ItemKind(r.Metadata[metaKind]),
				Ref:      core.ID(ref),
				UserID:   r.Metadata[metaUserID],
				Contents: r.Content,
				Vector:   r.Embedding,
				Meta:     meta,
			},
			Score: r.Similarity,
		})
		if len(results) == q.Limit {
			break
		}
	}

	return results, nil
}

// Count reports the number of stored items, including the sentinel.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

// Close releases the index. chromem keeps everything in memory; Close only
// blocks further use.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// isInsufficientDocsError reports whether err is chromem's complaint that
// nResults exceeds the number of stored documents.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
