package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmitAndRead(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	if err := j.Emit("meta_invariant_committed", map[string]any{"record_id": "meta-1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := j.Emit("dream_ingested", map[string]any{"record_id": "dream-1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Event != "meta_invariant_committed" {
		t.Errorf("first event = %q", entries[0].Event)
	}
	if entries[1].Payload["record_id"] != "dream-1" {
		t.Errorf("payload = %v", entries[1].Payload)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("no timestamp on entry")
	}
}

func TestReadMissingFile(t *testing.T) {
	j := New(t.TempDir())
	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	if err := j.Emit("first", nil); err != nil {
		t.Fatal(err)
	}

	// Corrupt the file with a truncated line, then append another good entry
	path := filepath.Join(dir, "journal.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{\"event\": \"broken\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := j.Emit("second", nil); err != nil {
		t.Fatal(err)
	}

	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (malformed line skipped)", len(entries))
	}
	if entries[0].Event != "first" || entries[1].Event != "second" {
		t.Errorf("events = %q, %q", entries[0].Event, entries[1].Event)
	}
}
