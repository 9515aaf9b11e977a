package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avint/metaloom/internal/kb"
)

// AddMetaRecord records a committed meta-invariant reference
func (s *DB) AddMetaRecord(m *kb.MetaRecord) error {
	if m.CommittedAt.IsZero() {
		m.CommittedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO meta_records (record_id, source_domains, committed_at)
		VALUES (?, ?, ?)`,
		m.RecordID, strings.Join(m.SourceDomains, ","), m.CommittedAt)
	return err
}

// MetaRecords returns all committed meta-invariant references
func (s *DB) MetaRecords() ([]*kb.MetaRecord, error) {
	rows, err := s.db.Query(`SELECT record_id, source_domains, committed_at FROM meta_records ORDER BY committed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []*kb.MetaRecord
	for rows.Next() {
		var m kb.MetaRecord
		var domains sql.NullString
		if err := rows.Scan(&m.RecordID, &domains, &m.CommittedAt); err != nil {
			continue
		}
		if domains.Valid && domains.String != "" {
			m.SourceDomains = strings.Split(domains.String, ",")
		}
		metas = append(metas, &m)
	}
	return metas, rows.Err()
}

// AddDreamRecord records an ingested dream input
func (s *DB) AddDreamRecord(d *kb.DreamRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO dream_records (record_id, raw_text, captured_at, ingested_at, convergence_checked)
		VALUES (?, ?, ?, ?, ?)`,
		d.RecordID, d.RawText, d.CapturedAt, d.IngestedAt, boolToInt(d.ConvergenceChecked))
	return err
}

// DreamRecords returns all ingested dream inputs
func (s *DB) DreamRecords() ([]*kb.DreamRecord, error) {
	rows, err := s.db.Query(`SELECT record_id, raw_text, captured_at, ingested_at, convergence_checked FROM dream_records ORDER BY ingested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dreams []*kb.DreamRecord
	for rows.Next() {
		var d kb.DreamRecord
		var checked int
		if err := rows.Scan(&d.RecordID, &d.RawText, &d.CapturedAt, &d.IngestedAt, &checked); err != nil {
			continue
		}
		d.ConvergenceChecked = checked != 0
		dreams = append(dreams, &d)
	}
	return dreams, rows.Err()
}

// MarkDreamChecked flags a dream record as having been through a convergence pass
func (s *DB) MarkDreamChecked(recordID string) error {
	_, err := s.db.Exec(`UPDATE dream_records SET convergence_checked = 1 WHERE record_id = ?`, recordID)
	return err
}

// AddConvergence inserts a convergence row. Returns false when the
// (dream, meta) pair already exists, so reruns never duplicate.
func (s *DB) AddConvergence(c *kb.Convergence) (bool, error) {
	if c.DiscoveredAt.IsZero() {
		c.DiscoveredAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO convergences (id, dream_record_id, meta_record_id, similarity, dream_at, meta_at, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DreamRecordID, c.MetaRecordID, c.Similarity, c.DreamAt, c.MetaAt, c.DiscoveredAt)
	if err != nil {
		return false, fmt.Errorf("failed to add convergence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Convergences returns all detected convergences
func (s *DB) Convergences() ([]*kb.Convergence, error) {
	rows, err := s.db.Query(`SELECT id, dream_record_id, meta_record_id, similarity, dream_at, meta_at, discovered_at FROM convergences ORDER BY discovered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*kb.Convergence
	for rows.Next() {
		var c kb.Convergence
		if err := rows.Scan(&c.ID, &c.DreamRecordID, &c.MetaRecordID, &c.Similarity,
			&c.DreamAt, &c.MetaAt, &c.DiscoveredAt); err != nil {
			continue
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// AddPendingPrediction registers an unresolved prediction
func (s *DB) AddPendingPrediction(p *kb.PendingPrediction) error {
	if p.Status == "" {
		p.Status = "pending"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pending_predictions (id, meta_record_id, prediction, predicted_domain, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.MetaRecordID, p.Prediction, p.PredictedDomain, p.Status, p.CreatedAt)
	return err
}

// PendingPredictions returns all predictions still awaiting verification
func (s *DB) PendingPredictions() ([]*kb.PendingPrediction, error) {
	rows, err := s.db.Query(`SELECT id, meta_record_id, prediction, predicted_domain, status, created_at FROM pending_predictions WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*kb.PendingPrediction
	for rows.Next() {
		var p kb.PendingPrediction
		if err := rows.Scan(&p.ID, &p.MetaRecordID, &p.Prediction, &p.PredictedDomain,
			&p.Status, &p.CreatedAt); err != nil {
			continue
		}
		pending = append(pending, &p)
	}
	return pending, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
