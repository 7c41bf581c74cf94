// Package store provides the durable memory journal and its SQLite
// implementation. Each agent's records live in their own namespace.
package store

import (
	"context"

	"github.com/rcliao/npc-mind/internal/model"
)

// ListParams holds parameters for listing memories.
type ListParams struct {
	NS    string
	Kind  model.Kind
	Limit int
}

// Store defines the memory journal. Memories are append-only; knowledge
// records are upserted by concept.
type Store interface {
	// AppendMemory writes a new memory, its chunks and its evidence links.
	AppendMemory(ctx context.Context, ns string, m model.Memory) error

	// SaveKnowledge inserts or replaces a concept.
	SaveKnowledge(ctx context.Context, ns string, k model.Knowledge) error

	// LoadMemories returns every memory in ns, oldest first.
	LoadMemories(ctx context.Context, ns string) ([]model.Memory, error)

	// LoadKnowledge returns every concept in ns in the order it was learned.
	LoadKnowledge(ctx context.Context, ns string) ([]model.Knowledge, error)

	// List lists the newest memories matching the given filters.
	List(ctx context.Context, p ListParams) ([]Record, error)

	// Close closes the store.
	Close() error
}

// Record is a journaled memory and the namespace it belongs to.
type Record struct {
	NS string `json:"ns"`
	model.Memory
	ChunkCount int `json:"chunk_count,omitempty"`
}

// Journal binds a Store to one namespace. It satisfies memory.Journal.
type Journal struct {
	store Store
	ns    string
}

// NewJournal returns a journal writing to ns.
func NewJournal(s Store, ns string) *Journal {
	return &Journal{store: s, ns: ns}
}

// NS is the namespace the journal writes to.
func (j *Journal) NS() string { return j.ns }

func (j *Journal) AppendMemory(ctx context.Context, m model.Memory) error {
	return j.store.AppendMemory(ctx, j.ns, m)
}

func (j *Journal) SaveKnowledge(ctx context.Context, k model.Knowledge) error {
	return j.store.SaveKnowledge(ctx, j.ns, k)
}

// Load returns the namespace's memories and knowledge for restoring an agent.
func (j *Journal) Load(ctx context.Context) ([]model.Memory, []model.Knowledge, error) {
	mems, err := j.store.LoadMemories(ctx, j.ns)
	if err != nil {
		return nil, nil, err
	}
	know, err := j.store.LoadKnowledge(ctx, j.ns)
	if err != nil {
		return nil, nil, err
	}
	return mems, know, nil
}
