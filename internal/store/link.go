package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/npc-mind/internal/model"
)

// RelEvidence links a memory to a memory it was derived from.
const RelEvidence = "evidence"

// Link represents a relation between two memories.
type Link struct {
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Rel       string `json:"rel"`
	CreatedAt string `json:"created_at"`
}

func (s *SQLiteStore) linkEvidence(ctx context.Context, tx *sql.Tx, m model.Memory) error {
	now := time.Now().UTC().Format(timeFormat)
	for _, id := range m.EvidenceIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_links (from_id, to_id, rel, created_at) VALUES (?, ?, ?, ?)`,
			m.ID, id, RelEvidence, now)
		if err != nil {
			return fmt.Errorf("link evidence %s: %w", id, err)
		}
	}
	return nil
}

// Links returns all links from or to a memory.
func (s *SQLiteStore) Links(ctx context.Context, memoryID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, rel, created_at FROM memory_links
		 WHERE from_id = ? OR to_id = ? ORDER BY rowid`, memoryID, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.FromID, &l.ToID, &l.Rel, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Evidence returns the memories memoryID was derived from.
func (s *SQLiteStore) Evidence(ctx context.Context, memoryID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m
		 JOIN memory_links l ON l.to_id = m.id
		 WHERE l.from_id = ? AND l.rel = ? ORDER BY l.rowid`, memoryID, RelEvidence)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// DerivedFrom returns the memories that cite memoryID as evidence.
func (s *SQLiteStore) DerivedFrom(ctx context.Context, memoryID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m
		 JOIN memory_links l ON l.from_id = m.id
		 WHERE l.to_id = ? AND l.rel = ? ORDER BY m.created_at, m.rowid`, memoryID, RelEvidence)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) evidenceIn(ctx context.Context, ns string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.from_id, l.to_id FROM memory_links l
		 JOIN memories m ON m.id = l.from_id
		 WHERE m.ns = ? AND l.rel = ? ORDER BY l.rowid`, ns, RelEvidence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		out[from] = append(out[from], to)
	}
	return out, rows.Err()
}
