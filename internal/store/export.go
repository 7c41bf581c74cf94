package store

import (
	"context"
	"fmt"

	"github.com/rcliao/npc-mind/internal/model"
)

// Export is one namespace's journal.
type Export struct {
	NS        string            `json:"ns"`
	Memories  []model.Memory    `json:"memories"`
	Knowledge []model.Knowledge `json:"knowledge,omitempty"`
}

// ExportAll returns every namespace's journal, or only ns when it is set.
func (s *SQLiteStore) ExportAll(ctx context.Context, ns string) ([]Export, error) {
	namespaces := []string{ns}
	if ns == "" {
		var err error
		if namespaces, err = s.Namespaces(ctx); err != nil {
			return nil, err
		}
	}

	var out []Export
	for _, n := range namespaces {
		mems, err := s.LoadMemories(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", n, err)
		}
		know, err := s.LoadKnowledge(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", n, err)
		}
		out = append(out, Export{NS: n, Memories: mems, Knowledge: know})
	}
	return out, nil
}

// Import journals exported records. Memories whose ID is already present are
// skipped; knowledge is upserted. It returns how many memories were added.
func (s *SQLiteStore) Import(ctx context.Context, exports []Export) (int, error) {
	imported := 0
	for _, e := range exports {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return imported, err
		}
		n := 0
		for _, m := range e.Memories {
			ok, err := s.insertMemory(ctx, tx, e.NS, m)
			if err != nil {
				tx.Rollback()
				return imported, fmt.Errorf("import %s/%s: %w", e.NS, m.ID, err)
			}
			if ok {
				n++
			}
		}
		if err := tx.Commit(); err != nil {
			return imported, err
		}
		imported += n

		for _, k := range e.Knowledge {
			if err := s.SaveKnowledge(ctx, e.NS, k); err != nil {
				return imported, err
			}
		}
	}
	return imported, nil
}
