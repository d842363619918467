package db

import (
	"database/sql"
	"fmt"
	"time"
)

// PaymentsLogEntry is one persisted wallet-journal line. ExternalID is the
// journal id from ESI and is globally unique; re-ingesting the same id is a
// no-op.
type PaymentsLogEntry struct {
	ExternalID    int64      `json:"external_id"`
	PayerID       int64      `json:"payer_id"`
	ReceiverID    int64      `json:"receiver_id"`
	Amount        float64    `json:"amount"`
	Date          time.Time  `json:"date"`
	Raw           string     `json:"raw"`
	Processed     bool       `json:"processed"`
	ProcessedDate *time.Time `json:"processed_date,omitempty"`
}

// InsertPayments inserts journal entries with conflict-on-id ignored and
// returns only the entries that were actually newly inserted. Re-feeding a
// journal page is therefore safe: previously seen ids never reach processing
// again.
func (d *DB) InsertPayments(entries []PaymentsLogEntry) ([]PaymentsLogEntry, error) {
	tx, err := d.sql.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO payments_log (external_id, payer_id, receiver_id, amount, date, raw)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var inserted []PaymentsLogEntry
	for _, e := range entries {
		res, err := stmt.Exec(e.ExternalID, e.PayerID, e.ReceiverID, e.Amount, formatTime(e.Date), e.Raw)
		if err != nil {
			return nil, fmt.Errorf("insert payment %d: %w", e.ExternalID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, e)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// MarkPaymentProcessed flips the processed flag exactly once a qualifying
// donation has been applied to a grant.
func (d *DB) MarkPaymentProcessed(externalID int64, when time.Time) error {
	_, err := d.sql.Exec(`
		UPDATE payments_log SET processed = 1, processed_date = ? WHERE external_id = ?`,
		formatTime(when), externalID)
	return err
}

// GetPayment returns one payment log entry, or nil if absent.
func (d *DB) GetPayment(externalID int64) (*PaymentsLogEntry, error) {
	row := d.sql.QueryRow(`
		SELECT external_id, payer_id, receiver_id, amount, date, raw, processed, processed_date
		  FROM payments_log WHERE external_id = ?`, externalID)

	var e PaymentsLogEntry
	var date string
	var processedDate sql.NullString
	err := row.Scan(&e.ExternalID, &e.PayerID, &e.ReceiverID, &e.Amount, &date, &e.Raw, &e.Processed, &processedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, ok := parseTime(date); ok {
		e.Date = t
	}
	if processedDate.Valid {
		if t, ok := parseTime(processedDate.String); ok {
			e.ProcessedDate = &t
		}
	}
	return &e, nil
}

// CountPayments returns the size of the payment log. Used by admin views.
func (d *DB) CountPayments() (int, error) {
	var n int
	err := d.sql.QueryRow(`SELECT COUNT(*) FROM payments_log`).Scan(&n)
	return n, err
}
