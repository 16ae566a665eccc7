package vecstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Corona-HomeLab/FinSight/internal/ai"
	"github.com/Corona-HomeLab/FinSight/internal/model"
)

type memChunk struct {
	id        string
	content   string
	metadata  map[string]string
	embedding []float32
}

// MemoryStore keeps chunks in process memory. Search is a linear cosine scan,
// which is plenty for a single-operator assistant with a handful of sources.
type MemoryStore struct {
	mu       sync.Mutex
	embedder ai.IEmbedder
	chunks   map[string][]memChunk
}

func NewMemoryStore(embedder ai.IEmbedder) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		chunks:   make(map[string][]memChunk),
	}
}

func (s *MemoryStore) AddDocuments(ctx context.Context, docs []model.Document, namespace string) ([]string, error) {
	ids := make([]string, 0, len(docs))
	added := make([]memChunk, 0, len(docs))
	for _, doc := range docs {
		emb, err := s.embedder.Embed(ctx, doc.Content, TaskDocument)
		if err != nil {
			return nil, err
		}
		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		id := newChunkID()
		ids = append(ids, id)
		added = append(added, memChunk{
			id:        id,
			content:   doc.Content,
			metadata:  metadata,
			embedding: emb,
		})
	}
	s.mu.Lock()
	s.chunks[namespace] = append(s.chunks[namespace], added...)
	s.mu.Unlock()
	return ids, nil
}

func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int, namespace string, filter map[string]string) ([]model.Document, error) {
	queryEmb, err := s.embedder.Embed(ctx, query, TaskQuery)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	candidates := make([]memChunk, len(s.chunks[namespace]))
	copy(candidates, s.chunks[namespace])
	s.mu.Unlock()

	type match struct {
		chunk memChunk
		score float32
	}
	matches := make([]match, 0, len(candidates))
	for _, chunk := range candidates {
		if !matchesFilter(chunk.metadata, filter) {
			continue
		}
		matches = append(matches, match{chunk: chunk, score: cosineSimilarity(queryEmb, chunk.embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if k > len(matches) {
		k = len(matches)
	}
	result := make([]model.Document, 0, k)
	for i := 0; i < k; i++ {
		result = append(result, model.Document{
			ID:       matches[i].chunk.id,
			Content:  matches[i].chunk.content,
			Metadata: matches[i].chunk.metadata,
			Score:    matches[i].score,
		})
	}
	return result, nil
}

func (s *MemoryStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	delete(s.chunks, namespace)
	s.mu.Unlock()
	return nil
}
