package kb

import "time"

// MetaRecord references a committed meta-invariant record
type MetaRecord struct {
	RecordID      string    `json:"record_id"`
	SourceDomains []string  `json:"source_domains"`
	CommittedAt   time.Time `json:"committed_at"`
}

// DreamRecord tracks an ingested human-authored insight
type DreamRecord struct {
	RecordID           string    `json:"record_id"`
	RawText            string    `json:"raw_text"` // truncated
	CapturedAt         time.Time `json:"captured_at"`
	IngestedAt         time.Time `json:"ingested_at"`
	ConvergenceChecked bool      `json:"convergence_checked"`
}

// Convergence links a dream record to a meta record that independently
// arrived at the same truth. Keyed uniquely by the id pair.
type Convergence struct {
	ID            string    `json:"id"`
	DreamRecordID string    `json:"dream_record_id"`
	MetaRecordID  string    `json:"meta_record_id"`
	Similarity    float64   `json:"similarity"`
	DreamAt       time.Time `json:"dream_at"`
	MetaAt        time.Time `json:"meta_at"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// PendingPrediction is an unresolved prediction awaiting verification
type PendingPrediction struct {
	ID              string    `json:"id"`
	MetaRecordID    string    `json:"meta_record_id"`
	Prediction      string    `json:"prediction"`
	PredictedDomain string    `json:"predicted_domain"`
	Status          string    `json:"status"` // "pending"
	CreatedAt       time.Time `json:"created_at"`
}

// MetaState persists the engine's committed/dream/convergence/pending state.
// AddConvergence reports whether a new row was inserted, making convergence
// detection idempotent by (dream, meta) pair.
type MetaState interface {
	AddMetaRecord(m *MetaRecord) error
	MetaRecords() ([]*MetaRecord, error)

	AddDreamRecord(d *DreamRecord) error
	DreamRecords() ([]*DreamRecord, error)
	MarkDreamChecked(recordID string) error

	AddConvergence(c *Convergence) (bool, error)
	Convergences() ([]*Convergence, error)

	AddPendingPrediction(p *PendingPrediction) error
	PendingPredictions() ([]*PendingPrediction, error)
}
