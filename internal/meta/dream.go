package meta

import (
	"fmt"
	"strings"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// dreamTextCap bounds the raw text stored on the DreamRecord; the record
// itself keeps the full content.
const dreamTextCap = 500

// IngestDream wraps externally authored text into a top-tier record without
// running the validation gates - human-sourced input is trusted at ingestion
// time. capturedAt is when the insight was originally written down; the zero
// value means "now".
func (e *Engine) IngestDream(rawText string, capturedAt time.Time) (*kb.DreamRecord, error) {
	text := strings.TrimSpace(rawText)
	if len(text) < 10 {
		return nil, Fail(ReasonTextTooShort, "length", len(text))
	}

	now := time.Now().UTC()
	if capturedAt.IsZero() {
		capturedAt = now
	}

	recordID := e.ids.NewID("dream")
	record := &kb.Record{
		ID:         recordID,
		Tier:       kb.TierMega,
		Tags:       []string{"dream-input"},
		Content:    text,
		Claims:     []string{text},
		Confidence: 0.5,
		Metadata: map[string]any{
			"captured_at": capturedAt.Format(time.RFC3339),
		},
		CreatedAt: capturedAt,
	}
	if err := e.records.Upsert(record); err != nil {
		return nil, fmt.Errorf("failed to ingest dream: %w", err)
	}

	dream := &kb.DreamRecord{
		RecordID:   recordID,
		RawText:    truncate(text, dreamTextCap),
		CapturedAt: capturedAt,
		IngestedAt: now,
	}
	if err := e.state.AddDreamRecord(dream); err != nil {
		return nil, fmt.Errorf("failed to track dream record: %w", err)
	}

	e.emit("dream_ingested", map[string]any{
		"record_id": recordID,
		"length":    len(text),
	})

	logf("ingested dream input %s: %s", recordID, truncate(text, 60))
	return dream, nil
}
