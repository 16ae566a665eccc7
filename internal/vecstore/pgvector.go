package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Corona-HomeLab/FinSight/internal/ai"
	"github.com/Corona-HomeLab/FinSight/internal/model"
)

// metadata filter keys come from our own routing code, but guard anyway since
// they are interpolated into the jsonb accessor.
var filterKeyPattern = regexp.MustCompile(`^[a-z_]+$`)

// PGStore persists chunks in a rag_chunks table with a pgvector embedding
// column. Similarity is cosine distance.
type PGStore struct {
	db       *sql.DB
	embedder ai.IEmbedder
}

func NewPGStore(db *sql.DB, embedder ai.IEmbedder) *PGStore {
	return &PGStore{db: db, embedder: embedder}
}

func (s *PGStore) AddDocuments(ctx context.Context, docs []model.Document, namespace string) ([]string, error) {
	ids := make([]string, 0, len(docs))
	rows := make([]map[string]interface{}, 0, len(docs))
	now := time.Now().Unix()
	for _, doc := range docs {
		emb, err := s.embedder.Embed(ctx, doc.Content, TaskDocument)
		if err != nil {
			return nil, fmt.Errorf("embed chunk: %w", err)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, err
		}
		id := newChunkID()
		ids = append(ids, id)
		rows = append(rows, map[string]interface{}{
			"id":        id,
			"namespace": namespace,
			"source_id": doc.Metadata[model.MetaSourceID],
			"content":   doc.Content,
			"metadata":  string(metadata),
			"embedding": pgvector.NewVector(emb),
			"ctime":     now,
		})
	}
	if len(rows) == 0 {
		return ids, nil
	}
	if err := s.insertRows(ctx, rows); err != nil {
		if !IsConflict(err) {
			return nil, err
		}
		// A random chunk id collided; mint fresh ids and retry once.
		for i := range rows {
			ids[i] = newChunkID()
			rows[i]["id"] = ids[i]
		}
		if err := s.insertRows(ctx, rows); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *PGStore) insertRows(ctx context.Context, rows []map[string]interface{}) error {
	query, args, err := builder.BuildInsert("rag_chunks", rows)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *PGStore) SimilaritySearch(ctx context.Context, query string, k int, namespace string, filter map[string]string) ([]model.Document, error) {
	queryEmb, err := s.embedder.Embed(ctx, query, TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if k <= 0 {
		k = 4
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM rag_chunks
		WHERE namespace = $2`)
	args := []interface{}{pgvector.NewVector(queryEmb), namespace}
	for key, value := range filter {
		if !filterKeyPattern.MatchString(key) {
			return nil, fmt.Errorf("invalid metadata filter key: %s", key)
		}
		args = append(args, value)
		fmt.Fprintf(&sb, " AND metadata->>'%s' = $%d", key, len(args))
	}
	args = append(args, k)
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Document
	for rows.Next() {
		var doc model.Document
		var metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (s *PGStore) DeleteNamespace(ctx context.Context, namespace string) error {
	const query = `DELETE FROM rag_chunks WHERE namespace = $1`
	_, err := s.db.ExecContext(ctx, query, namespace)
	return err
}

// IsConflict reports a unique-key violation, which on this table means a
// generated chunk id collided and the ingestion should simply be retried.
func IsConflict(err error) bool {
	if pgErr, ok := err.(*pq.Error); ok {
		return pgErr.Code == "23505"
	}
	return false
}
