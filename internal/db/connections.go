package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ExpiryReport records one user's claim that a connection is gone.
type ExpiryReport struct {
	UserID int64     `json:"user_id"`
	Time   time.Time `json:"time"`
}

// Connection is a community-reported wormhole between two systems. At most one
// connection may exist per (source system, source signature) pair.
type Connection struct {
	ID                int64          `json:"id"`
	SystemFrom        int32          `json:"system_from"`
	SystemTo          int32          `json:"system_to"`
	SignatureFrom     string         `json:"signature_from"`
	SignatureTo       string         `json:"signature_to"`
	TypeFrom          string         `json:"type_from"`
	TypeTo            string         `json:"type_to"`
	MassCritical      bool           `json:"mass_critical"`
	TimeCritical      bool           `json:"time_critical"`
	TimeCriticalSince *time.Time     `json:"time_critical_since,omitempty"`
	Comment           string         `json:"comment"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	LastSeen          *time.Time     `json:"last_seen,omitempty"`
	ExpiryReports     []ExpiryReport `json:"expiry_reports"`
}

// InsertConnection stores a new connection. Returns false when a connection
// with the same source system and source signature already exists; that is an
// expected outcome, not an error.
func (d *DB) InsertConnection(c *Connection) (bool, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	var since interface{}
	if c.TimeCritical {
		now := c.CreatedAt
		if c.TimeCriticalSince != nil {
			now = *c.TimeCriticalSince
		}
		c.TimeCriticalSince = &now
		since = formatTime(now)
	}
	res, err := d.sql.Exec(`
		INSERT INTO connections
			(system_from, system_to, signature_from, signature_to, type_from, type_to,
			 mass_critical, time_critical, time_critical_since, comment, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(system_from, signature_from) DO NOTHING`,
		c.SystemFrom, c.SystemTo, c.SignatureFrom, c.SignatureTo, c.TypeFrom, c.TypeTo,
		c.MassCritical, c.TimeCritical, since, c.Comment, c.CreatedBy, formatTime(c.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	c.ID, _ = res.LastInsertId()
	return true, nil
}

// UpdateConnection edits the mutable fields of a connection.
func (d *DB) UpdateConnection(c *Connection) error {
	_, err := d.sql.Exec(`
		UPDATE connections
		   SET system_to = ?, signature_to = ?, type_from = ?, type_to = ?,
		       mass_critical = ?, comment = ?
		 WHERE id = ?`,
		c.SystemTo, c.SignatureTo, c.TypeFrom, c.TypeTo, c.MassCritical, c.Comment, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	return nil
}

// DeleteConnection removes a connection.
func (d *DB) DeleteConnection(id int64) error {
	_, err := d.sql.Exec(`DELETE FROM connections WHERE id = ?`, id)
	return err
}

// SetCritical updates the criticality flags. The moment time-criticality is
// first set is recorded; clearing the flag clears the timestamp.
func (d *DB) SetCritical(id int64, massCritical, timeCritical bool) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var wasTimeCritical bool
	var since sql.NullString
	err = tx.QueryRow(`SELECT time_critical, time_critical_since FROM connections WHERE id = ?`, id).
		Scan(&wasTimeCritical, &since)
	if err != nil {
		return fmt.Errorf("set critical: %w", err)
	}

	var newSince interface{}
	switch {
	case timeCritical && wasTimeCritical && since.Valid:
		newSince = since.String
	case timeCritical:
		newSince = formatTime(time.Now())
	}

	if _, err := tx.Exec(`
		UPDATE connections
		   SET mass_critical = ?, time_critical = ?, time_critical_since = ?
		 WHERE id = ?`,
		massCritical, timeCritical, newSince, id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SetLastSeen records that a user confirmed the connection still exists.
func (d *DB) SetLastSeen(id int64) error {
	_, err := d.sql.Exec(`UPDATE connections SET last_seen = ? WHERE id = ?`, formatTime(time.Now()), id)
	return err
}

// ReportExpired appends an expiry report for the given user. A repeat report
// from the same user is a no-op returning false.
func (d *DB) ReportExpired(id, userID int64) (bool, error) {
	tx, err := d.sql.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRow(`SELECT expiry_reports FROM connections WHERE id = ?`, id).Scan(&raw); err != nil {
		return false, fmt.Errorf("report expired: %w", err)
	}
	reports := decodeReports(raw)
	for _, r := range reports {
		if r.UserID == userID {
			return false, nil
		}
	}
	reports = append(reports, ExpiryReport{UserID: userID, Time: time.Now().UTC()})
	encoded, err := json.Marshal(reports)
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`UPDATE connections SET expiry_reports = ? WHERE id = ?`, string(encoded), id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// ResetExpired clears all expiry reports, returning the connection to active.
func (d *DB) ResetExpired(id int64) error {
	_, err := d.sql.Exec(`UPDATE connections SET expiry_reports = '[]' WHERE id = ?`, id)
	return err
}

// PurgeOld deletes connections past their lifetime. A row dies when any one
// predicate matches: older than maxAge; of the fast-decay type and older than
// fastAge; time-critical longer than criticalAge; or time-critical with no
// recorded start and older than criticalAge.
func (d *DB) PurgeOld(maxAge, fastAge, criticalAge time.Duration, fastType string) (int64, error) {
	now := time.Now()
	res, err := d.sql.Exec(`
		DELETE FROM connections
		 WHERE created_at < ?
		    OR ((type_from = ? OR type_to = ?) AND created_at < ?)
		    OR (time_critical = 1 AND time_critical_since IS NOT NULL AND time_critical_since < ?)
		    OR (time_critical = 1 AND time_critical_since IS NULL AND created_at < ?)`,
		formatTime(now.Add(-maxAge)),
		fastType, fastType, formatTime(now.Add(-fastAge)),
		formatTime(now.Add(-criticalAge)),
		formatTime(now.Add(-criticalAge)),
	)
	if err != nil {
		return 0, fmt.Errorf("purge connections: %w", err)
	}
	return res.RowsAffected()
}

// ListConnections returns all community connections.
func (d *DB) ListConnections() ([]Connection, error) {
	rows, err := d.sql.Query(`
		SELECT id, system_from, system_to, signature_from, signature_to, type_from, type_to,
		       mass_critical, time_critical, time_critical_since, comment, created_by,
		       created_at, last_seen, expiry_reports
		  FROM connections
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetConnection returns one connection by id, or nil if absent.
func (d *DB) GetConnection(id int64) (*Connection, error) {
	row := d.sql.QueryRow(`
		SELECT id, system_from, system_to, signature_from, signature_to, type_from, type_to,
		       mass_critical, time_critical, time_critical_since, comment, created_by,
		       created_at, last_seen, expiry_reports
		  FROM connections
		 WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*Connection, error) {
	var c Connection
	var since, lastSeen sql.NullString
	var createdAt, reports string
	err := row.Scan(
		&c.ID, &c.SystemFrom, &c.SystemTo, &c.SignatureFrom, &c.SignatureTo,
		&c.TypeFrom, &c.TypeTo, &c.MassCritical, &c.TimeCritical, &since,
		&c.Comment, &c.CreatedBy, &createdAt, &lastSeen, &reports,
	)
	if err != nil {
		return nil, err
	}
	if t, ok := parseTime(createdAt); ok {
		c.CreatedAt = t
	}
	if since.Valid {
		if t, ok := parseTime(since.String); ok {
			c.TimeCriticalSince = &t
		}
	}
	if lastSeen.Valid {
		if t, ok := parseTime(lastSeen.String); ok {
			c.LastSeen = &t
		}
	}
	c.ExpiryReports = decodeReports(reports)
	return &c, nil
}

func decodeReports(raw string) []ExpiryReport {
	var reports []ExpiryReport
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		return nil
	}
	return reports
}
