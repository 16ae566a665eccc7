package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corona-HomeLab/FinSight/internal/chunker"
	"github.com/Corona-HomeLab/FinSight/internal/loader"
	"github.com/Corona-HomeLab/FinSight/internal/model"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
	"github.com/Corona-HomeLab/FinSight/internal/registry"
	"github.com/Corona-HomeLab/FinSight/internal/router"
	"github.com/Corona-HomeLab/FinSight/internal/vecstore"
)

type fakeStore struct {
	chunks     map[string][]model.Document
	searchErr  error
	addErr     error
	deleteErr  error
	deletedNS  []string
	lastFilter map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{chunks: make(map[string][]model.Document)}
}

func (s *fakeStore) AddDocuments(ctx context.Context, docs []model.Document, namespace string) ([]string, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		doc.ID = fmt.Sprintf("chunk_%s_%d", namespace, len(s.chunks[namespace])+i)
		s.chunks[namespace] = append(s.chunks[namespace], doc)
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (s *fakeStore) SimilaritySearch(ctx context.Context, query string, k int, namespace string, filter map[string]string) ([]model.Document, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.lastFilter = filter
	var result []model.Document
	for _, doc := range s.chunks[namespace] {
		match := true
		for key, want := range filter {
			if doc.Metadata[key] != want {
				match = false
				break
			}
		}
		if match {
			result = append(result, doc)
		}
		if len(result) == k {
			break
		}
	}
	return result, nil
}

func (s *fakeStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedNS = append(s.deletedNS, namespace)
	delete(s.chunks, namespace)
	return nil
}

var _ vecstore.Store = (*fakeStore)(nil)

type fakeGenerator struct {
	answer  string
	err     error
	errOnce bool
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		if g.errOnce {
			err := g.err
			g.err = nil
			return "", err
		}
		return "", g.err
	}
	return g.answer, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestAssistant(t *testing.T, store *fakeStore, gen *fakeGenerator) *Assistant {
	t.Helper()
	reg := registry.NewRegistry(context.Background(), filepath.Join(t.TempDir(), "sources.json"))
	return New(reg, loader.NewLoader(nil), chunker.NewChunker(500), router.New(), store, gen, Options{})
}

func addAliceSource(t *testing.T, a *Assistant, endpoint string) {
	t.Helper()
	_, err := a.AddSource(context.Background(), "alice_txns", registry.AddInput{
		Name:     "Alice Transactions",
		Endpoint: endpoint,
		DataType: model.DataTypeTransactions,
		Username: "alice",
	})
	require.NoError(t, err)
}

func aliceServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "t1", "amount": 4.5, "name": "Corner Cafe", "category": "dining", "date": "2026-08-01"},
			{"id": "t2", "amount": 1200, "name": "Acme Property", "category": "rent", "date": "2026-08-03"}
		]`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChatEmptyQuestion(t *testing.T) {
	a := newTestAssistant(t, newFakeStore(), &fakeGenerator{answer: "hi"})
	_, err := a.Chat(context.Background(), "   ")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChatNoRoutedNamespaceSkipsModel(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be called"}
	a := newTestAssistant(t, newFakeStore(), gen)

	answer, err := a.Chat(context.Background(), "What is the weather like?")
	require.NoError(t, err)
	require.Equal(t, NoContextReply, answer)
	require.Zero(t, gen.calls)
	require.Empty(t, a.History())
}

func TestChatEmptyRetrievalSkipsModel(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	gen := &fakeGenerator{answer: "should not be called"}
	a := newTestAssistant(t, store, gen)
	addAliceSource(t, a, server.URL)

	// Wipe the indexed chunks so routing matches but retrieval is empty.
	require.NoError(t, store.DeleteNamespace(context.Background(), "alice_txns"))

	answer, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	require.Equal(t, NoContextReply, answer)
	require.Zero(t, gen.calls)
	require.Empty(t, a.History())
}

func TestChatAnswersFromIndexedSource(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	gen := &fakeGenerator{answer: "Alice spent $4.50 at Corner Cafe."}
	a := newTestAssistant(t, store, gen)
	addAliceSource(t, a, server.URL)

	answer, err := a.Chat(context.Background(), "How much did alice spend at the cafe?")
	require.NoError(t, err)
	require.Equal(t, "Alice spent $4.50 at Corner Cafe.", answer)
	require.Equal(t, 1, gen.calls)

	// The prompt carries the retrieved context and the question.
	require.Contains(t, gen.prompts[0], "Corner Cafe")
	require.Contains(t, gen.prompts[0], "How much did alice spend at the cafe?")

	// Individual routing filters retrieval down to alice's transactions.
	require.Equal(t, map[string]string{
		model.MetaType:     model.TypeTransaction,
		model.MetaUsername: "alice",
	}, store.lastFilter)

	turns := a.History()
	require.Len(t, turns, 1)
	require.Equal(t, "How much did alice spend at the cafe?", turns[0].Question)
}

func TestChatHistoryFlowsIntoPrompt(t *testing.T) {
	server := aliceServer(t)
	gen := &fakeGenerator{answer: "About $1204.50 in total."}
	a := newTestAssistant(t, newFakeStore(), gen)
	addAliceSource(t, a, server.URL)

	_, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	_, err = a.Chat(context.Background(), "What did alice spend in total?")
	require.NoError(t, err)

	require.Equal(t, 2, gen.calls)
	require.Contains(t, gen.prompts[1], "Human: Show transactions for alice")
	require.Contains(t, gen.prompts[1], "Assistant: About $1204.50 in total.")
}

func TestChatGenerationFailureReturnsApology(t *testing.T) {
	server := aliceServer(t)
	gen := &fakeGenerator{err: errors.New("model exploded")}
	a := newTestAssistant(t, newFakeStore(), gen)
	addAliceSource(t, a, server.URL)

	answer, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	require.Equal(t, ApologyReply, answer)
	// Non-timeout failures are not retried.
	require.Equal(t, 1, gen.calls)
	require.Empty(t, a.History())
}

func TestChatRetriesTimeouts(t *testing.T) {
	server := aliceServer(t)
	gen := &fakeGenerator{err: timeoutErr{}}
	a := newTestAssistant(t, newFakeStore(), gen)
	addAliceSource(t, a, server.URL)

	answer, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	require.Equal(t, ApologyReply, answer)
	require.Equal(t, 3, gen.calls)
}

func TestChatRecoversAfterSingleTimeout(t *testing.T) {
	server := aliceServer(t)
	gen := &fakeGenerator{answer: "fine now", err: timeoutErr{}, errOnce: true}
	a := newTestAssistant(t, newFakeStore(), gen)
	addAliceSource(t, a, server.URL)

	answer, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	require.Equal(t, "fine now", answer)
	require.Equal(t, 2, gen.calls)
	require.Len(t, a.History(), 1)
}

func TestChatSearchErrorDegradesToNoContext(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	gen := &fakeGenerator{answer: "should not be called"}
	a := newTestAssistant(t, store, gen)
	addAliceSource(t, a, server.URL)

	store.searchErr = errors.New("store offline")
	answer, err := a.Chat(context.Background(), "Show transactions for alice")
	require.NoError(t, err)
	require.Equal(t, NoContextReply, answer)
	require.Zero(t, gen.calls)
}

func TestAddSourceIndexesChunks(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	a := newTestAssistant(t, store, &fakeGenerator{answer: "ok"})

	src, err := a.AddSource(context.Background(), "alice_txns", registry.AddInput{
		Name:     "Alice Transactions",
		Endpoint: server.URL,
		DataType: model.DataTypeTransactions,
		Username: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice_txns", src.Namespace)

	// Two transactions plus one per-user summary.
	require.Len(t, store.chunks["alice_txns"], 3)
	require.Len(t, src.DocumentIDs, 3)

	var summary string
	for _, doc := range store.chunks["alice_txns"] {
		if doc.Metadata[model.MetaType] == model.TypeSummary {
			summary = doc.Content
		}
	}
	require.Contains(t, summary, "Transaction summary for alice: 2 transactions in total")
}

func TestAddSourceFetchFailureKeepsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	a := newTestAssistant(t, newFakeStore(), &fakeGenerator{answer: "ok"})

	_, err := a.AddSource(context.Background(), "broken", registry.AddInput{
		Name:     "Broken API",
		Endpoint: server.URL,
	})
	require.ErrorIs(t, err, apperr.ErrFetch)

	// The registry record stays so a later refresh can retry.
	sources := a.ListSources()
	require.Len(t, sources, 1)
	require.Equal(t, "broken", sources[0].SourceID)
}

func TestAddSourceIndexFailure(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	store.addErr = errors.New("db down")
	a := newTestAssistant(t, store, &fakeGenerator{answer: "ok"})

	_, err := a.AddSource(context.Background(), "alice_txns", registry.AddInput{
		Name:     "Alice Transactions",
		Endpoint: server.URL,
		DataType: model.DataTypeTransactions,
	})
	require.ErrorIs(t, err, apperr.ErrIndex)
}

func TestRemoveSourceDeletesNamespace(t *testing.T) {
	server := aliceServer(t)
	store := newFakeStore()
	a := newTestAssistant(t, store, &fakeGenerator{answer: "ok"})
	addAliceSource(t, a, server.URL)

	require.NoError(t, a.RemoveSource(context.Background(), "alice_txns"))
	require.Contains(t, store.deletedNS, "alice_txns")
	require.Empty(t, a.ListSources())

	// Removing again is a no-op.
	require.NoError(t, a.RemoveSource(context.Background(), "alice_txns"))
}

func TestRefreshReingestsActiveSources(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprintf(w, `[{"id": "t%d", "amount": 10}]`, hits)
	}))
	defer server.Close()

	store := newFakeStore()
	a := newTestAssistant(t, store, &fakeGenerator{answer: "ok"})
	addAliceSource(t, a, server.URL)
	require.Equal(t, 1, hits)

	require.NoError(t, a.Refresh(context.Background()))
	require.Equal(t, 2, hits)
	require.Contains(t, store.deletedNS, "alice_txns")
	// Old chunks are gone; the namespace holds only the fresh batch.
	require.Len(t, store.chunks["alice_txns"], 2)
}

func TestChatEndToEnd(t *testing.T) {
	aliceAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"amount": -50, "category": "food", "date": "2024-01-01T00:00:00", "name": "Cafe", "id": "t1"}]`))
	}))
	defer aliceAPI.Close()
	bobAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"amount": 99, "category": "tools", "date": "2024-01-02T00:00:00", "name": "Hardware Hut", "id": "t2"}]`))
	}))
	defer bobAPI.Close()

	store := newFakeStore()
	gen := &fakeGenerator{answer: "Alice has one credit of $50.00 at Cafe."}
	a := newTestAssistant(t, store, gen)

	_, err := a.AddSource(context.Background(), "alice_txns", registry.AddInput{
		Name:     "Alice Transactions",
		Endpoint: aliceAPI.URL,
		DataType: model.DataTypeTransactions,
		Username: "alice",
	})
	require.NoError(t, err)
	_, err = a.AddSource(context.Background(), "bob_txns", registry.AddInput{
		Name:     "Bob Transactions",
		Endpoint: bobAPI.URL,
		DataType: model.DataTypeTransactions,
		Username: "bob",
	})
	require.NoError(t, err)

	answer, err := a.Chat(context.Background(), "what transactions does alice have?")
	require.NoError(t, err)
	require.Contains(t, answer, "Cafe")
	require.Equal(t, 1, gen.calls)
	require.Contains(t, gen.prompts[0], "A credit transaction of $50.00 by alice at Cafe on 2024-01-01 in the food category.")
	require.NotContains(t, gen.prompts[0], "Hardware Hut")
}

func TestHistoryRingCap(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(model.ChatTurn{Question: fmt.Sprintf("q%d", i), Answer: "a"})
	}
	turns := h.Turns()
	require.Len(t, turns, 3)
	require.Equal(t, "q2", turns[0].Question)
	require.Equal(t, "q4", turns[2].Question)
}

func TestRenderContextPrefixesNamespace(t *testing.T) {
	out := renderContext([]model.Document{
		{Content: "chunk one", Metadata: map[string]string{model.MetaNamespace: "alice_txns"}},
		{Content: "chunk two"},
	})
	require.Equal(t, "[alice_txns] chunk one\nchunk two", out)
}

func TestBuildPromptShape(t *testing.T) {
	prompt := buildPrompt("[ns] data", "How much?", []model.ChatTurn{{Question: "Hi", Answer: "Hello"}})
	require.True(t, strings.Contains(prompt, "Available Data:\n[ns] data"))
	require.Contains(t, prompt, "Chat History:\nHuman: Hi\nAssistant: Hello")
	require.Contains(t, prompt, "Current Question: How much?")
	require.True(t, strings.HasSuffix(prompt, "Assistant: "))
}
