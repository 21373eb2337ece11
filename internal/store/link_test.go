package store

import (
	"context"
	"testing"

	"github.com/jpearleverett/story-continuity/internal/model"
)

func TestLinkArcs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutArc(ctx, "test", testArc("SUPERPATH_LOW", model.RiskLow, "a"))
	s.PutArc(ctx, "test", testArc("SUPERPATH_MODERATE", model.RiskModerate, "b"))

	if err := s.LinkArcs(ctx, "test", "SUPERPATH_LOW", "SUPERPATH_MODERATE", "adapted_to"); err != nil {
		t.Fatalf("link: %v", err)
	}
	// Linking twice is a no-op.
	if err := s.LinkArcs(ctx, "test", "SUPERPATH_LOW", "SUPERPATH_MODERATE", "adapted_to"); err != nil {
		t.Fatalf("relink: %v", err)
	}

	links, err := s.Lineage(ctx, "test", "SUPERPATH_MODERATE")
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].FromKey != "SUPERPATH_LOW" || links[0].ToKey != "SUPERPATH_MODERATE" || links[0].Rel != "adapted_to" {
		t.Errorf("unexpected link %+v", links[0])
	}
}

func TestLinkArcsValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutArc(ctx, "test", testArc("A", model.RiskLow, "a"))

	if err := s.LinkArcs(ctx, "test", "A", "A", "relates_to"); err == nil {
		t.Error("expected invalid relation error")
	}
	if err := s.LinkArcs(ctx, "test", "A", "MISSING", "adapted_to"); err == nil {
		t.Error("expected missing target error")
	}
}

func TestHardDeleteRemovesLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutArc(ctx, "test", testArc("A", model.RiskLow, "a"))
	s.PutArc(ctx, "test", testArc("B", model.RiskHigh, "b"))
	s.LinkArcs(ctx, "test", "A", "B", "adapted_to")

	if err := s.Rm(ctx, RmParams{NS: "test", Key: "B", Hard: true, AllVersions: true}); err != nil {
		t.Fatalf("rm: %v", err)
	}
	links, _ := s.Lineage(ctx, "test", "A")
	if len(links) != 0 {
		t.Errorf("expected links removed, got %d", len(links))
	}
}
