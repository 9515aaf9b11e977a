package meta

import (
	"strings"
	"testing"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

func TestIngestDreamRejectsShortText(t *testing.T) {
	env := newTestEnv(t, smallConfig())

	for _, text := range []string{"", "short", "   padded  "} {
		_, err := env.engine.IngestDream(text, time.Time{})
		if got := failureReason(t, err); got != ReasonTextTooShort {
			t.Errorf("ingest %q: reason = %q, want %q", text, got, ReasonTextTooShort)
		}
	}
}

func TestIngestDreamCreatesRecord(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	captured := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)

	dream, err := env.engine.IngestDream("  everything alive seems to branch the same way rivers do  ", captured)
	if err != nil {
		t.Fatalf("IngestDream: %v", err)
	}

	record, err := env.records.Record(dream.RecordID)
	if err != nil {
		t.Fatalf("dream record missing: %v", err)
	}
	if record.Tier != kb.TierMega {
		t.Errorf("tier = %s, want mega", record.Tier)
	}
	if !record.HasTag("dream-input") {
		t.Errorf("tags = %v", record.Tags)
	}
	if record.Content != "everything alive seems to branch the same way rivers do" {
		t.Errorf("content not trimmed: %q", record.Content)
	}
	if len(record.Claims) != 1 || record.Claims[0] != record.Content {
		t.Errorf("claims = %v", record.Claims)
	}
	if !record.CreatedAt.Equal(captured) {
		t.Errorf("CreatedAt = %v, want capture time %v", record.CreatedAt, captured)
	}
	if !dream.CapturedAt.Equal(captured) {
		t.Errorf("dream CapturedAt = %v", dream.CapturedAt)
	}
	if dream.ConvergenceChecked {
		t.Error("new dream already marked checked")
	}
}

func TestIngestDreamTruncatesStoredText(t *testing.T) {
	env := newTestEnv(t, smallConfig())
	long := strings.Repeat("the same pattern keeps recurring ", 40) // ~1300 chars

	dream, err := env.engine.IngestDream(long, time.Time{})
	if err != nil {
		t.Fatalf("IngestDream: %v", err)
	}
	if len(dream.RawText) > dreamTextCap {
		t.Errorf("stored text length = %d, cap is %d", len(dream.RawText), dreamTextCap)
	}

	// The record itself keeps the full content
	record, err := env.records.Record(dream.RecordID)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Content) <= dreamTextCap {
		t.Errorf("record content truncated to %d", len(record.Content))
	}
}
