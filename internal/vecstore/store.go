// Package vecstore holds the vector store collaborator interface and its two
// implementations: a Postgres/pgvector store for real deployments and an
// in-memory store for local mode and tests. Namespaces are opaque strings; a
// search never crosses namespace boundaries.
package vecstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

// Store is the narrow contract the assistant depends on. Embedding happens
// inside the store (both implementations wrap an ai.IEmbedder), so callers
// only ever deal in text.
type Store interface {
	// AddDocuments embeds and writes docs under namespace, returning the
	// store-assigned ids in input order.
	AddDocuments(ctx context.Context, docs []model.Document, namespace string) ([]string, error)
	// SimilaritySearch returns up to k chunks nearest to query within
	// namespace. filter constrains results to chunks whose metadata matches
	// every key/value pair exactly.
	SimilaritySearch(ctx context.Context, query string, k int, namespace string, filter map[string]string) ([]model.Document, error)
	// DeleteNamespace removes every chunk in namespace.
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Embedding task types understood by the providers.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

func newChunkID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "chunk_" + hex.EncodeToString(buf)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func matchesFilter(metadata map[string]string, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}
