package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical content
// produces identical IDs across processes.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks a message written by the human user.
	RoleUser Role = "user"
	// RoleAssistant marks a message written by the assistant.
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a single turn in a conversation.
// Messages are owned by a ConversationSession and may additionally be
// embedded into the vector index for semantic retrieval.
type ChatMessage struct {
	Id        ID
	Role      Role
	Contents  string
	Timestamp time.Time
	UserID    string
}

// ConversationSession holds the bounded recent-message history for one user.
// At most one session is active per user at a time; a reset replaces it with
// a fresh empty one under a new id.
type ConversationSession struct {
	Id           string
	UserID       string
	Messages     []ChatMessage // ordered oldest to newest, trimmed to capacity
	CreatedAt    time.Time
	LastActivity time.Time
}

// DocumentChunk is a bounded slice of a document's text, overlapping with its
// neighbors to preserve cross-boundary context. Immutable once produced.
type DocumentChunk struct {
	Id          ID
	DocumentID  string
	UserID      string
	Contents    string
	Index       int // position within the document, starting at 0
	TotalChunks int
	FileName    string
	FileType    string
	UploadedAt  time.Time
}

// ItemKind tags the origin of an indexed item.
type ItemKind string

const (
	// ItemKindChat marks items embedded from chat messages.
	ItemKindChat ItemKind = "chat"
	// ItemKindDocument marks items embedded from document chunks.
	ItemKindDocument ItemKind = "document"
	// ItemKindSentinel marks the placeholder item seeded at index creation.
	// Sentinel items are never returned from search.
	ItemKindSentinel ItemKind = "sentinel"
)

// IndexedItem is an embedded entry in the vector index. Ref points back to
// the owning ChatMessage or DocumentChunk id. Lifetime is tied to the index
// instance; nothing is persisted across restarts.
type IndexedItem struct {
	Kind     ItemKind
	Ref      ID
	UserID   string
	Contents string
	Vector   []float32
	Meta     map[string]string
}

// SearchResult is an index hit with its similarity score.
type SearchResult struct {
	Item  IndexedItem
	Score float32
}

// ProcessedDocument is the outcome of ingesting one document.
type ProcessedDocument struct {
	DocumentID  string
	Chunks      []DocumentChunk
	TotalChunks int
}

// ContextBundle is the assembled context handed to the downstream generator.
// Segments are ordered, labeled sections; when no context is available a
// single explicit marker segment is emitted instead of an empty bundle.
type ContextBundle struct {
	Segments    []string
	UsedContext bool // true iff semantic search contributed at least one hit
}

// SessionInfo is a read-only summary of a user's active session.
type SessionInfo struct {
	SessionID    string
	MessageCount int
	LastActivity time.Time
}

// FileMetadata describes the source of an ingested document.
type FileMetadata struct {
	FileName string
	FileType string
}
