package recall

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/gateway"
	"github.com/poiesic/recall/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	base := []EngineOption{
		WithEmbedderFactory(func(string) (ai.Embedder, error) {
			return mock.NewMockEmbedder(), nil
		}),
		WithSweepInterval(0),
		WithPoolSize(4),
	}
	engine, err := NewEngine(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func userMsg(user, contents string) core.ChatMessage {
	return core.ChatMessage{
		Role:     core.RoleUser,
		Contents: contents,
		UserID:   user,
	}
}

func TestAddChatMessage_AppendsToSession(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "hello"), ""))
	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "how are you"), ""))

	info := engine.SessionInfo("alice")
	require.NotNil(t, info)
	assert.Equal(t, 2, info.MessageCount)
}

func TestAddChatMessage_Validation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("empty contents", func(t *testing.T) {
		err := engine.AddChatMessage(ctx, userMsg("alice", "  "), "")
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("invalid role", func(t *testing.T) {
		msg := userMsg("alice", "hello")
		msg.Role = "system"
		assert.ErrorIs(t, engine.AddChatMessage(ctx, msg, ""), core.ErrValidation)
	})

	t.Run("missing user", func(t *testing.T) {
		err := engine.AddChatMessage(ctx, userMsg("", "hello"), "")
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestAddChatMessage_WithoutCredentialQueuesForLater(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "first"), ""))
	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "second"), ""))

	// Indexing runs on the worker pool, so give it a moment.
	assert.Eventually(t, func() bool {
		return engine.Gateway().PendingCount() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, gateway.StateUninitialized, engine.Gateway().State())
}

func TestAddChatMessage_WithCredentialBecomesSearchable(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	contents := "we talked about sailing yesterday"

	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", contents), "key-a"))

	assert.Eventually(t, func() bool {
		results, err := engine.Gateway().Search(ctx, "key-a", contents, index.Query{
			UserID:        "alice",
			Kind:          core.ItemKindChat,
			Limit:         5,
			MinSimilarity: 0.6,
		})
		return err == nil && len(results) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStartNewConversation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "hello"), ""))

	first, err := engine.StartNewConversation("alice")
	require.NoError(t, err)
	second, err := engine.StartNewConversation("alice")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 0, engine.SessionInfo("alice").MessageCount)

	_, err = engine.StartNewConversation("")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSessionInfo_NilForUnknownUser(t *testing.T) {
	engine := newTestEngine(t)
	assert.Nil(t, engine.SessionInfo("nobody"))
}

func TestProcessDocument_FormatGate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("unsupported format", func(t *testing.T) {
		_, err := engine.ProcessDocument(ctx, []byte{0x25, 0x50}, "doc.pdf", "application/pdf", "alice", "key-a")
		assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	})

	t.Run("mime parameters are ignored", func(t *testing.T) {
		doc, err := engine.ProcessDocument(ctx, []byte("plain contents"), "note.txt",
			"text/plain; charset=utf-8", "alice", "key-a")
		require.NoError(t, err)
		assert.Equal(t, 1, doc.TotalChunks)
	})

	t.Run("credential required", func(t *testing.T) {
		_, err := engine.ProcessDocument(ctx, []byte("text"), "note.txt", "text/plain", "alice", "")
		assert.ErrorIs(t, err, core.ErrCredentialRequired)
	})
}

func TestSearchContext_EndToEnd(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	query := "the quarterly report covers revenue"

	_, err := engine.ProcessDocument(ctx, []byte(query), "report.txt", "text/plain", "alice", "key-a")
	require.NoError(t, err)
	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "hello there"), "key-a"))

	bundle, err := engine.SearchContext(ctx, query, "alice", "key-a", 5)
	require.NoError(t, err)

	assert.True(t, bundle.UsedContext)
	var hasRecent, hasDocuments bool
	for _, segment := range bundle.Segments {
		if strings.HasPrefix(segment, "Recent conversation:") {
			hasRecent = true
			assert.Contains(t, segment, "user: hello there")
		}
		if strings.HasPrefix(segment, "Documents:") {
			hasDocuments = true
			assert.Contains(t, segment, "[report.txt] "+query)
		}
	}
	assert.True(t, hasRecent)
	assert.True(t, hasDocuments)
}

func TestSearchContext_NoCredentialIsRecencyOnly(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.AddChatMessage(ctx, userMsg("alice", "hello"), ""))

	bundle, err := engine.SearchContext(ctx, "anything at all", "alice", "", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.True(t, strings.HasPrefix(bundle.Segments[0], "Recent conversation:"))
	assert.False(t, bundle.UsedContext)
}
