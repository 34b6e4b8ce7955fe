// Package vectorindex reads a prebuilt FAQ similarity index stored in SQLite
// and ranks its chunks by cosine similarity to the question.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

// Index is a read-only ports.Retriever over a chunks table:
//
//	chunks(id, document_id, content, chunk_index, embedding JSON, source_doc)
type Index struct {
	db       *sql.DB
	embedder ports.Embedder
}

// Open opens the index at path read-only. The file must already exist;
// building it is done offline.
func Open(ctx context.Context, path string, embedder ports.Embedder) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("faq index: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_query_only=true")
	if err != nil {
		return nil, fmt.Errorf("faq index open: %w", err)
	}
	idx := &Index{db: db, embedder: embedder}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("faq index schema: %w", err)
	}
	return idx, nil
}

// Retrieve embeds question and returns the topK most similar chunks, best first.
// Chunks whose stored embedding cannot be decoded are skipped.
func (i *Index) Retrieve(ctx context.Context, question string, topK int) ([]domain.Passage, error) {
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}

	query, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	rows, err := i.db.QueryContext(ctx, `SELECT content, embedding, COALESCE(source_doc, '') FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var (
			p   domain.Passage
			raw []byte
		)
		if err := rows.Scan(&p.Content, &raw, &p.Source); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var emb []float32
		if err := json.Unmarshal(raw, &emb); err != nil {
			continue
		}
		p.Score = cosineSimilarity(query, emb)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}

	sort.SliceStable(passages, func(a, b int) bool { return passages[a].Score > passages[b].Score })
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
