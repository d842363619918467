package db

import (
	"database/sql"
	"fmt"
)

// WalletWatcher links a character to a corp wallet whose journal funds
// subscriptions. Credential is an opaque sealed refresh-token blob; it rotates
// on every token renewal.
type WalletWatcher struct {
	CharacterID   int64  `json:"character_id"`
	CorporationID int64  `json:"corporation_id"`
	Division      int    `json:"division"`
	Credential    string `json:"-"`
	LastStatus    string `json:"last_status"`
}

// UpsertWatcher registers or re-registers a wallet watcher.
func (d *DB) UpsertWatcher(w *WalletWatcher) error {
	if w.Division == 0 {
		w.Division = 1
	}
	_, err := d.sql.Exec(`
		INSERT INTO wallet_watchers (character_id, corporation_id, division, credential, last_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(character_id) DO UPDATE SET
			corporation_id = excluded.corporation_id,
			division = excluded.division,
			credential = excluded.credential`,
		w.CharacterID, w.CorporationID, w.Division, w.Credential, w.LastStatus,
	)
	if err != nil {
		return fmt.Errorf("upsert watcher: %w", err)
	}
	return nil
}

// ListWatchers returns all registered wallet watchers.
func (d *DB) ListWatchers() ([]WalletWatcher, error) {
	rows, err := d.sql.Query(`
		SELECT character_id, corporation_id, division, credential, last_status
		  FROM wallet_watchers ORDER BY character_id`)
	if err != nil {
		return nil, fmt.Errorf("list watchers: %w", err)
	}
	defer rows.Close()

	var out []WalletWatcher
	for rows.Next() {
		var w WalletWatcher
		if err := rows.Scan(&w.CharacterID, &w.CorporationID, &w.Division, &w.Credential, &w.LastStatus); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWatcher returns one watcher, or nil if the character has none.
func (d *DB) GetWatcher(characterID int64) (*WalletWatcher, error) {
	row := d.sql.QueryRow(`
		SELECT character_id, corporation_id, division, credential, last_status
		  FROM wallet_watchers WHERE character_id = ?`, characterID)
	var w WalletWatcher
	err := row.Scan(&w.CharacterID, &w.CorporationID, &w.Division, &w.Credential, &w.LastStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SetWatcherCredential rotates the sealed credential after a token renewal.
func (d *DB) SetWatcherCredential(characterID int64, credential string) error {
	_, err := d.sql.Exec(`UPDATE wallet_watchers SET credential = ? WHERE character_id = ?`,
		credential, characterID)
	return err
}

// SetWatcherStatus records the outcome of the latest reconciliation pass.
func (d *DB) SetWatcherStatus(characterID int64, status string) error {
	_, err := d.sql.Exec(`UPDATE wallet_watchers SET last_status = ? WHERE character_id = ?`,
		status, characterID)
	return err
}

// DeleteWatcher removes a watcher registration.
func (d *DB) DeleteWatcher(characterID int64) error {
	_, err := d.sql.Exec(`DELETE FROM wallet_watchers WHERE character_id = ?`, characterID)
	return err
}
