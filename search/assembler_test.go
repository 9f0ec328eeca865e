package search

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
	"github.com/poiesic/recall/index/chromem"
	"github.com/poiesic/recall/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCredential = "key-a"

type assemblerEnv struct {
	assembler *Assembler
	sessions  *session.Store
	gw        *gateway.Gateway
	embedder  *mock.MockEmbedder
}

func newAssemblerEnv(t *testing.T, opts ...Option) *assemblerEnv {
	t.Helper()

	env := &assemblerEnv{embedder: mock.NewMockEmbedder()}

	sessions, err := session.NewStore(session.WithSweepInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	gw, err := gateway.NewGateway(
		func(string) (ai.Embedder, error) { return env.embedder, nil },
		func() (index.Index, error) { return chromem.NewIndex() },
	)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	assembler, err := NewAssembler(sessions, gw, opts...)
	require.NoError(t, err)

	env.assembler = assembler
	env.sessions = sessions
	env.gw = gw
	return env
}

func sessionMsg(user, contents string) core.ChatMessage {
	return core.ChatMessage{
		Id:        core.IDFromContent(user + "|" + contents),
		Role:      core.RoleUser,
		Contents:  contents,
		Timestamp: time.Now(),
		UserID:    user,
	}
}

// indexChat inserts a chat item directly into the gateway's index. The mock
// embedder is hash based, so only an item whose contents equal the query text
// will score as relevant.
func indexChat(t *testing.T, env *assemblerEnv, user, contents string, ref core.ID) {
	t.Helper()
	require.NoError(t, env.gw.Add(context.Background(), testCredential, core.IndexedItem{
		Kind:     core.ItemKindChat,
		Ref:      ref,
		UserID:   user,
		Contents: contents,
	}))
}

func indexDocument(t *testing.T, env *assemblerEnv, user, contents, fileName string) {
	t.Helper()
	require.NoError(t, env.gw.Add(context.Background(), testCredential, core.IndexedItem{
		Kind:     core.ItemKindDocument,
		Ref:      core.IDFromContent(contents),
		UserID:   user,
		Contents: contents,
		Meta:     map[string]string{"file_name": fileName},
	}))
}

func TestNewAssembler_Guards(t *testing.T) {
	sessions, err := session.NewStore(session.WithSweepInterval(0))
	require.NoError(t, err)
	defer sessions.Close()

	gw, err := gateway.NewGateway(
		func(string) (ai.Embedder, error) { return mock.NewMockEmbedder(), nil },
		func() (index.Index, error) { return chromem.NewIndex() },
	)
	require.NoError(t, err)
	defer gw.Close()

	t.Run("nil session store", func(t *testing.T) {
		_, err := NewAssembler(nil, gw)
		assert.Equal(t, ErrSessionStoreRequired, err)
	})

	t.Run("nil gateway", func(t *testing.T) {
		_, err := NewAssembler(sessions, nil)
		assert.Equal(t, ErrGatewayRequired, err)
	})
}

func TestAssemble_ValidatesInput(t *testing.T) {
	env := newAssemblerEnv(t)
	ctx := context.Background()

	_, err := env.assembler.Assemble(ctx, "  ", "alice", testCredential, 5)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = env.assembler.Assemble(ctx, "a query", "", testCredential, 5)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAssemble_NoContextAtAll(t *testing.T) {
	env := newAssemblerEnv(t)

	bundle, err := env.assembler.Assemble(context.Background(), "anything", "alice", "", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.Equal(t, NoContextMarker, bundle.Segments[0])
	assert.False(t, bundle.UsedContext)
}

func TestAssemble_RecencyOnlyWithoutCredential(t *testing.T) {
	env := newAssemblerEnv(t)

	env.sessions.Append("alice", sessionMsg("alice", "hello there"))
	env.sessions.Append("alice", sessionMsg("alice", "how are you"))

	bundle, err := env.assembler.Assemble(context.Background(), "how are you", "alice", "", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.True(t, strings.HasPrefix(bundle.Segments[0], "Recent conversation:"))
	assert.Contains(t, bundle.Segments[0], "user: hello there")
	assert.Contains(t, bundle.Segments[0], "user: how are you")
	assert.False(t, bundle.UsedContext)
}

func TestAssemble_RecentLimitKeepsNewest(t *testing.T) {
	env := newAssemblerEnv(t, WithRecentLimit(2))

	env.sessions.Append("alice", sessionMsg("alice", "oldest"))
	env.sessions.Append("alice", sessionMsg("alice", "middle"))
	env.sessions.Append("alice", sessionMsg("alice", "newest"))

	bundle, err := env.assembler.Assemble(context.Background(), "a query", "alice", "", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.NotContains(t, bundle.Segments[0], "oldest")
	assert.Contains(t, bundle.Segments[0], "middle")
	assert.Contains(t, bundle.Segments[0], "newest")
}

func TestAssemble_HistorySection(t *testing.T) {
	env := newAssemblerEnv(t)
	query := "what is the project deadline"

	env.sessions.Append("alice", sessionMsg("alice", "unrelated chatter"))
	indexChat(t, env, "alice", query, core.IDFromContent("older-session-msg"))

	bundle, err := env.assembler.Assemble(context.Background(), query, "alice", testCredential, 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 2)
	assert.True(t, strings.HasPrefix(bundle.Segments[1], "Relevant history:"))
	assert.Contains(t, bundle.Segments[1], "1. "+query)
	assert.True(t, bundle.UsedContext)
}

func TestAssemble_DeduplicatesRecentFromHistory(t *testing.T) {
	env := newAssemblerEnv(t)
	contents := "we talked about sailing"

	msg := sessionMsg("alice", contents)
	env.sessions.Append("alice", msg)
	// The same message is indexed too; it must not reappear as history.
	indexChat(t, env, "alice", contents, msg.Id)

	bundle, err := env.assembler.Assemble(context.Background(), contents, "alice", testCredential, 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.True(t, strings.HasPrefix(bundle.Segments[0], "Recent conversation:"))
	assert.False(t, bundle.UsedContext)
}

func TestAssemble_DocumentsSection(t *testing.T) {
	env := newAssemblerEnv(t)
	query := "the quarterly report covers revenue"

	indexDocument(t, env, "alice", query, "report.txt")

	bundle, err := env.assembler.Assemble(context.Background(), query, "alice", testCredential, 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.True(t, strings.HasPrefix(bundle.Segments[0], "Documents:"))
	assert.Contains(t, bundle.Segments[0], "1. [report.txt] "+query)
	assert.True(t, bundle.UsedContext)
}

func TestAssemble_FiltersByUser(t *testing.T) {
	env := newAssemblerEnv(t)
	query := "bob's private notes"

	indexChat(t, env, "bob", query, core.IDFromContent(query))

	bundle, err := env.assembler.Assemble(context.Background(), query, "alice", testCredential, 5)
	require.NoError(t, err)

	require.Len(t, bundle.Segments, 1)
	assert.Equal(t, NoContextMarker, bundle.Segments[0])
	assert.False(t, bundle.UsedContext)
}

func TestAssemble_SearchErrorSurfaces(t *testing.T) {
	env := newAssemblerEnv(t)
	ctx := context.Background()

	// Build the index first, then make query embedding fail.
	require.NoError(t, env.gw.Ensure(ctx, testCredential))
	env.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, core.ErrEmbeddingProvider
	}

	_, err := env.assembler.Assemble(ctx, "a query", "alice", testCredential, 5)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
}

func TestAssemble_MonitorReceivesStages(t *testing.T) {
	env := newAssemblerEnv(t)
	query := "what is the project deadline"

	env.sessions.Append("alice", sessionMsg("alice", "hello"))
	indexChat(t, env, "alice", query, core.IDFromContent("earlier"))

	var stages []string
	monitor := &recordingMonitor{stages: &stages}

	bundle, err := env.assembler.AssembleWithMonitor(context.Background(), query, "alice", testCredential, 5, monitor)
	require.NoError(t, err)
	assert.True(t, bundle.UsedContext)
	assert.Equal(t, []string{"start", "recent", "history", "documents", "finish"}, stages)
}

type recordingMonitor struct {
	stages *[]string
}

func (m *recordingMonitor) Start(query string)                           { *m.stages = append(*m.stages, "start") }
func (m *recordingMonitor) AfterRecent(msgs []core.ChatMessage)          { *m.stages = append(*m.stages, "recent") }
func (m *recordingMonitor) AfterHistorySearch(hits []core.SearchResult)  { *m.stages = append(*m.stages, "history") }
func (m *recordingMonitor) AfterDocumentSearch(hits []core.SearchResult) { *m.stages = append(*m.stages, "documents") }
func (m *recordingMonitor) Finish(bundle *core.ContextBundle)            { *m.stages = append(*m.stages, "finish") }
