package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"riskradar/pkg/models"
)

func TestFileStoreStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.ckpt")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	h, found, err := s.LastHeight(context.Background())
	if err != nil {
		t.Fatalf("LastHeight: %v", err)
	}
	if found || h != 0 {
		t.Fatalf("expected empty store, got height=%d found=%v", h, found)
	}

	seen, err := s.HasProcessed(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("HasProcessed: %v", err)
	}
	if seen {
		t.Fatalf("expected unseen event in empty store")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "radar.ckpt")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	dep := models.Deployment{BlockHeight: 42, EventID: "0xdead", ContractAddress: "0x1", Deployer: "0x2"}
	if err := s.MarkProcessed(ctx, dep); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := s.SetLastHeight(ctx, 42); err != nil {
		t.Fatalf("SetLastHeight: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	h, found, err := reopened.LastHeight(ctx)
	if err != nil {
		t.Fatalf("LastHeight after reopen: %v", err)
	}
	if !found || h != 42 {
		t.Fatalf("expected height 42 after reopen, got height=%d found=%v", h, found)
	}
	seen, err := reopened.HasProcessed(ctx, "0xdead")
	if err != nil {
		t.Fatalf("HasProcessed after reopen: %v", err)
	}
	if !seen {
		t.Fatalf("expected 0xdead marked after reopen")
	}
}

func TestFileStoreSweepsProcessedBelowHeight(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "radar.ckpt"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	old := models.Deployment{BlockHeight: 10, EventID: "0xold"}
	cur := models.Deployment{BlockHeight: 11, EventID: "0xcur"}
	if err := s.MarkProcessed(ctx, old); err != nil {
		t.Fatalf("MarkProcessed old: %v", err)
	}
	if err := s.MarkProcessed(ctx, cur); err != nil {
		t.Fatalf("MarkProcessed cur: %v", err)
	}

	if err := s.SetLastHeight(ctx, 11); err != nil {
		t.Fatalf("SetLastHeight: %v", err)
	}

	seenOld, err := s.HasProcessed(ctx, "0xold")
	if err != nil {
		t.Fatalf("HasProcessed old: %v", err)
	}
	if seenOld {
		t.Fatalf("expected 0xold swept after advancing past its height")
	}
	seenCur, err := s.HasProcessed(ctx, "0xcur")
	if err != nil {
		t.Fatalf("HasProcessed cur: %v", err)
	}
	if !seenCur {
		t.Fatalf("expected 0xcur retained at the checkpoint height")
	}
}

func TestFileStoreMarkProcessedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "radar.ckpt"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	dep := models.Deployment{BlockHeight: 7, EventID: "0xaaa"}
	if err := s.MarkProcessed(ctx, dep); err != nil {
		t.Fatalf("first MarkProcessed: %v", err)
	}
	if err := s.MarkProcessed(ctx, dep); err != nil {
		t.Fatalf("second MarkProcessed: %v", err)
	}
	seen, err := s.HasProcessed(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("HasProcessed: %v", err)
	}
	if !seen {
		t.Fatalf("expected 0xaaa marked")
	}
}
