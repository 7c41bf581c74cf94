// Package model defines the core cognition data types.
package model

import (
	"fmt"
	"slices"
	"time"
)

// Kind classifies a memory.
type Kind string

const (
	KindEvent      Kind = "event"
	KindThought    Kind = "thought"
	KindReflection Kind = "reflection"
)

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[Kind]bool{
	KindEvent:      true,
	KindThought:    true,
	KindReflection: true,
}

// ParseKind maps a user-supplied kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !ValidKinds[k] {
		return "", fmt.Errorf("invalid kind %q (valid: event, thought, reflection)", s)
	}
	return k, nil
}

// Importance bounds.
const (
	MinImportance     = 1
	MaxImportance     = 10
	DefaultImportance = 5
)

// ClampImportance forces n into [MinImportance, MaxImportance].
func ClampImportance(n int) int {
	if n < MinImportance {
		return MinImportance
	}
	if n > MaxImportance {
		return MaxImportance
	}
	return n
}

// Memory is an immutable record of something an agent perceived or thought.
type Memory struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Importance  int       `json:"importance"`
	CreatedAt   time.Time `json:"created_at"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	EvidenceIDs []string  `json:"evidence_ids,omitempty"`
}

// Clone returns a copy of m that shares no slices with it.
func (m Memory) Clone() Memory {
	m.Embedding = slices.Clone(m.Embedding)
	m.Keywords = slices.Clone(m.Keywords)
	m.EvidenceIDs = slices.Clone(m.EvidenceIDs)
	return m
}

// Validate reports whether m has a known kind and an importance in range.
func (m Memory) Validate() error {
	if !ValidKinds[m.Kind] {
		return fmt.Errorf("memory %s: invalid kind %q", m.ID, m.Kind)
	}
	if m.Importance < MinImportance || m.Importance > MaxImportance {
		return fmt.Errorf("memory %s: importance %d outside [%d, %d]", m.ID, m.Importance, MinImportance, MaxImportance)
	}
	return nil
}

// Knowledge is a concept the agent has learned and reinforces on repeat mentions.
type Knowledge struct {
	Concept            string    `json:"concept"`
	Description        string    `json:"description"`
	Embedding          []float32 `json:"embedding,omitempty"`
	LearnedAt          time.Time `json:"learned_at"`
	ReinforcementCount int       `json:"reinforcement_count"`
}

// Clone returns a copy of k that shares no slices with it.
func (k Knowledge) Clone() Knowledge {
	k.Embedding = slices.Clone(k.Embedding)
	return k
}

// Chunk is a searchable slice of a memory description.
type Chunk struct {
	ID       string `json:"id"`
	MemoryID string `json:"memory_id"`
	Seq      int    `json:"seq"`
	Text     string `json:"text"`
}
