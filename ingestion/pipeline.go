package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/gateway"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the fixed overlap between consecutive chunks.
	DefaultChunkOverlap = 200
)

// separators is the coarse-to-fine cascade: paragraph, line, word, character.
var separators = []string{"\n\n", "\n", " ", ""}

// Pipeline splits raw document text into overlapping chunks and routes them
// through the embedding gateway. Ingestion is synchronous: errors surface to
// the caller rather than being swallowed.
type Pipeline struct {
	gw           *gateway.Gateway
	chunkSize    int
	chunkOverlap int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkSize sets the target chunk length.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks.
func WithChunkOverlap(overlap int) Option {
	return func(p *Pipeline) error {
		if overlap < 0 {
			return fmt.Errorf("chunk overlap cannot be negative, got %d", overlap)
		}
		p.chunkOverlap = overlap
		return nil
	}
}

// WithClock injects a clock. Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a document ingestion pipeline.
func NewPipeline(gw *gateway.Gateway, opts ...Option) (*Pipeline, error) {
	if gw == nil {
		return nil, ErrGatewayRequired
	}

	p := &Pipeline{
		gw:           gw,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		now:          time.Now,
		logger:       slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.chunkOverlap >= p.chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			p.chunkOverlap, p.chunkSize)
	}

	return p, nil
}

// Process splits rawText into overlapping chunks, embeds them and inserts
// them into the index. Chunk order and indices are deterministic. Document
// ingestion always requires a credential; chunks are never queued.
func (p *Pipeline) Process(ctx context.Context, rawText string, meta core.FileMetadata, userID, credential string) (*core.ProcessedDocument, error) {
	if credential == "" {
		return nil, core.ErrCredentialRequired
	}
	if err := core.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: document text cannot be empty", core.ErrValidation)
	}

	parts, err := p.split(rawText)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", core.ErrValidation)
	}

	documentID := uuid.New().String()
	uploadedAt := p.now()
	total := len(parts)

	chunks := make([]core.DocumentChunk, total)
	items := make([]core.IndexedItem, total)
	for i, part := range parts {
		id := core.IDFromContent(documentID + "#" + strconv.Itoa(i) + ":" + part)
		chunks[i] = core.DocumentChunk{
			Id:          id,
			DocumentID:  documentID,
			UserID:      userID,
			Contents:    part,
			Index:       i,
			TotalChunks: total,
			FileName:    meta.FileName,
			FileType:    meta.FileType,
			UploadedAt:  uploadedAt,
		}
		items[i] = core.IndexedItem{
			Kind:     core.ItemKindDocument,
			Ref:      id,
			UserID:   userID,
			Contents: part,
			Meta: map[string]string{
				"document_id": documentID,
				"chunk_index": strconv.Itoa(i),
				"chunk_total": strconv.Itoa(total),
				"file_name":   meta.FileName,
			},
		}
	}

	p.logger.Info("ingesting document",
		"documentID", documentID, "fileName", meta.FileName, "chunks", total)

	if err := p.gw.Add(ctx, credential, items...); err != nil {
		return nil, err
	}

	return &core.ProcessedDocument{
		DocumentID:  documentID,
		Chunks:      chunks,
		TotalChunks: total,
	}, nil
}

// split runs the recursive separator cascade over the text.
func (p *Pipeline) split(text string) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
		textsplitter.WithSeparators(separators),
	)
	return splitter.SplitText(text)
}
