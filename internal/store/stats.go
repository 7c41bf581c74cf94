package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string           `json:"db_path"`
	DBSizeBytes   int64            `json:"db_size_bytes"`
	TotalMemories int              `json:"total_memories"`
	TotalChunks   int              `json:"total_chunks"`
	TotalLinks    int              `json:"total_links"`
	Namespaces    []NamespaceStats `json:"namespaces"`
}

// NamespaceStats holds per-namespace counts.
type NamespaceStats struct {
	NS            string         `json:"ns"`
	Count         int            `json:"count"`
	ByKind        map[string]int `json:"by_kind"`
	AvgImportance float64        `json:"avg_importance"`
	Knowledge     int            `json:"knowledge"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.TotalChunks)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_links`).Scan(&st.TotalLinks)

	rows, err := s.db.QueryContext(ctx, `
		SELECT ns, COUNT(*) AS cnt, AVG(importance),
		       (SELECT COUNT(*) FROM knowledge k WHERE k.ns = m.ns)
		FROM memories m
		GROUP BY ns ORDER BY cnt DESC, ns`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		ns := NamespaceStats{ByKind: map[string]int{}}
		if err := rows.Scan(&ns.NS, &ns.Count, &ns.AvgImportance, &ns.Knowledge); err != nil {
			return st, err
		}
		index[ns.NS] = len(st.Namespaces)
		st.Namespaces = append(st.Namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	kinds, err := s.db.QueryContext(ctx, `SELECT ns, kind, COUNT(*) FROM memories GROUP BY ns, kind`)
	if err != nil {
		return st, err
	}
	defer kinds.Close()
	for kinds.Next() {
		var ns, kind string
		var n int
		if err := kinds.Scan(&ns, &kind, &n); err != nil {
			return st, err
		}
		if i, ok := index[ns]; ok {
			st.Namespaces[i].ByKind[kind] = n
		}
	}
	return st, kinds.Err()
}
