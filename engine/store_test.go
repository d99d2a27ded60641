package engine

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreRecordAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	e1 := SessionEvent{Kind: "block", IP: "10.0.0.1", Reason: "too many connections", TS: "2026-07-31T00:00:00Z"}
	e2 := SessionEvent{Kind: "whitelist", IP: "10.0.0.2", Reason: "external scan", TS: "2026-07-31T00:00:05Z"}

	if _, err := s.Record(e1); err != nil {
		t.Fatalf("record e1: %v", err)
	}
	if _, err := s.Record(e2); err != nil {
		t.Fatalf("record e2: %v", err)
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent events, got %d", len(recent))
	}
	if recent[0].TS != e2.TS {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}

	n, err := s.CountSince("block", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountSince(block) = %d, want 1", n)
	}
}
