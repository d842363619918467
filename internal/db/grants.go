package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Entity type tags for access grants.
const (
	EntityCharacter   = "character"
	EntityCorporation = "corporation"
	EntityAlliance    = "alliance"
)

// Grant is a time-bounded access grant for a character, corporation, or
// alliance.
type Grant struct {
	EntityID   int64      `json:"entity_id"`
	EntityType string     `json:"entity_type"`
	Level      int        `json:"level"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// FindGrants returns the grants for any of the given entity ids.
func (d *DB) FindGrants(entityIDs []int64) ([]Grant, error) {
	var out []Grant
	for _, id := range entityIDs {
		g, err := d.GetGrant(id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			out = append(out, *g)
		}
	}
	return out, nil
}

// GetGrant returns one grant, or nil if the entity has none.
func (d *DB) GetGrant(entityID int64) (*Grant, error) {
	row := d.sql.QueryRow(`
		SELECT entity_id, entity_type, level, valid_until FROM allowed_entities WHERE entity_id = ?`,
		entityID)
	var g Grant
	var validUntil sql.NullString
	err := row.Scan(&g.EntityID, &g.EntityType, &g.Level, &validUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if validUntil.Valid {
		// An unparseable stored expiry is treated as absent; the reconciler
		// then extends from now instead of crashing the pass.
		if t, ok := parseTime(validUntil.String); ok {
			g.ValidUntil = &t
		}
	}
	return &g, nil
}

// InsertGrantBatch inserts grants, ignoring entities that already have one.
// Only explicit extension calls ever move an existing expiry.
func (d *DB) InsertGrantBatch(grants []Grant) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO allowed_entities (entity_id, entity_type, level, valid_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range grants {
		var validUntil interface{}
		if g.ValidUntil != nil {
			validUntil = formatTime(*g.ValidUntil)
		}
		if _, err := stmt.Exec(g.EntityID, g.EntityType, g.Level, validUntil); err != nil {
			return fmt.Errorf("insert grant %d: %w", g.EntityID, err)
		}
	}
	return tx.Commit()
}

// ExtendGrant adds whole months to an entity's expiry inside one transaction,
// so two concurrent reconcile passes cannot interleave the read and the write.
// The base is the current expiry when still in the future, otherwise now; an
// absent or unparseable expiry also falls back to now. Returns the new expiry.
func (d *DB) ExtendGrant(entityID int64, months int, now time.Time) (time.Time, error) {
	tx, err := d.sql.Begin()
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	var validUntil sql.NullString
	err = tx.QueryRow(`SELECT valid_until FROM allowed_entities WHERE entity_id = ?`, entityID).
		Scan(&validUntil)
	if err != nil {
		return time.Time{}, fmt.Errorf("extend grant %d: %w", entityID, err)
	}

	base := now
	if validUntil.Valid {
		if t, ok := parseTime(validUntil.String); ok && t.After(now) {
			base = t
		}
	}
	newExpiry := base.AddDate(0, months, 0)

	if _, err := tx.Exec(`UPDATE allowed_entities SET valid_until = ? WHERE entity_id = ?`,
		formatTime(newExpiry), entityID); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

// ExpiredGrants returns grants whose expiry is strictly before now. Grants
// without an expiry never expire.
func (d *DB) ExpiredGrants(now time.Time) ([]Grant, error) {
	rows, err := d.sql.Query(`
		SELECT entity_id, entity_type, level, valid_until
		  FROM allowed_entities
		 WHERE valid_until IS NOT NULL AND valid_until < ?`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("expired grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		var validUntil sql.NullString
		if err := rows.Scan(&g.EntityID, &g.EntityType, &g.Level, &validUntil); err != nil {
			return nil, err
		}
		if validUntil.Valid {
			if t, ok := parseTime(validUntil.String); ok {
				g.ValidUntil = &t
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGrant removes an entity's grant.
func (d *DB) DeleteGrant(entityID int64) error {
	_, err := d.sql.Exec(`DELETE FROM allowed_entities WHERE entity_id = ?`, entityID)
	return err
}

// AccessLevel returns the highest access level among the given entities whose
// grant is still valid. Zero means no access.
func (d *DB) AccessLevel(entityIDs []int64, now time.Time) (int, error) {
	grants, err := d.FindGrants(entityIDs)
	if err != nil {
		return 0, err
	}
	level := 0
	for _, g := range grants {
		if g.ValidUntil != nil && g.ValidUntil.Before(now) {
			continue
		}
		if g.Level > level {
			level = g.Level
		}
	}
	return level, nil
}
