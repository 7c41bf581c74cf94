package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/npc-mind/internal/model"
)

// SearchParams holds parameters for searching memories.
type SearchParams struct {
	NS    string
	Query string
	Kind  model.Kind
	Limit int
	// FullText matches Query as an FTS5 expression over chunks instead of
	// a substring.
	FullText bool
}

// SearchResult wraps a memory with the chunk that matched, if any.
type SearchResult struct {
	Record
	MatchChunk *model.Chunk `json:"match_chunk,omitempty"`
}

// Search finds memories whose description or chunks match the query, newest
// first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}
	if p.NS != "" {
		where = append(where, "m.ns = ?")
		args = append(args, p.NS)
	}
	if p.Kind != "" {
		where = append(where, "m.kind = ?")
		args = append(args, string(p.Kind))
	}

	var match string
	if p.FullText {
		match = `c.rowid IN (SELECT rowid FROM chunks_fts WHERE chunks_fts MATCH ?)`
		args = append(args, p.Query)
	} else {
		like := "%" + p.Query + "%"
		match = `(m.description LIKE ? OR c.text LIKE ?)`
		args = append(args, like, like)
	}

	query := fmt.Sprintf(`
		SELECT %s, c.id, c.seq, c.text
		FROM memories m
		LEFT JOIN chunks c ON c.memory_id = m.id
		WHERE %s AND %s
		ORDER BY m.created_at DESC, m.rowid DESC, c.seq
		LIMIT ?`, memoryColumns, strings.Join(where, " AND "), match)
	// Several chunks of one memory may match; over-fetch and dedup.
	args = append(args, limit*4)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	seen := map[string]bool{}
	for rows.Next() {
		var r Record
		var kind, createdAt string
		var chunkID, chunkText *string
		var chunkSeq *int
		var keywords *string
		var vec []byte
		if err := rows.Scan(&r.ID, &r.NS, &kind, &r.Description, &r.Importance, &createdAt, &keywords, &vec,
			&r.ChunkCount, &chunkID, &chunkSeq, &chunkText); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		fillRecord(&r, kind, createdAt, keywords, vec)

		res := SearchResult{Record: r}
		if chunkID != nil && chunkText != nil && chunkSeq != nil {
			res.MatchChunk = &model.Chunk{ID: *chunkID, MemoryID: r.ID, Seq: *chunkSeq, Text: *chunkText}
		}
		results = append(results, res)
		if len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}
