package store

import (
	"context"
	"testing"

	"github.com/rcliao/npc-mind/internal/model"
)

func TestEvidenceLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AppendMemory(ctx, "mina", mem("01A", "Bob looked sad", 0))
	s.AppendMemory(ctx, "mina", mem("01B", "Bob skipped lunch", 10))
	r := mem("01C", "Bob might be worried about the exam", 20)
	r.Kind = model.KindReflection
	r.EvidenceIDs = []string{"01A", "01B"}
	if err := s.AppendMemory(ctx, "mina", r); err != nil {
		t.Fatalf("append reflection: %v", err)
	}

	ev, err := s.Evidence(ctx, "01C")
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if len(ev) != 2 || ev[0].ID != "01A" || ev[1].ID != "01B" {
		t.Fatalf("expected evidence 01A, 01B, got %+v", ev)
	}

	derived, err := s.DerivedFrom(ctx, "01A")
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if len(derived) != 1 || derived[0].ID != "01C" {
		t.Errorf("expected 01C derived from 01A, got %+v", derived)
	}

	links, err := s.Links(ctx, "01B")
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0].Rel != RelEvidence || links[0].FromID != "01C" {
		t.Errorf("unexpected links %+v", links)
	}

	loaded, _ := s.LoadMemories(ctx, "mina")
	if got := loaded[2].EvidenceIDs; len(got) != 2 {
		t.Errorf("expected evidence ids on load, got %v", got)
	}
}

func TestEvidenceMustExist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := mem("01C", "a reflection about nothing", 0)
	r.EvidenceIDs = []string{"missing"}
	if err := s.AppendMemory(ctx, "mina", r); err == nil {
		t.Fatal("expected error linking to a missing memory")
	}
	got, _ := s.LoadMemories(ctx, "mina")
	if len(got) != 0 {
		t.Errorf("failed append should leave nothing behind, got %d", len(got))
	}
}
