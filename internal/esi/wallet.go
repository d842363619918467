package esi

import (
	"encoding/json"
	"fmt"
)

// JournalEntry is one line of a corporation wallet journal. The id is globally
// unique and drives payment-log deduplication downstream.
type JournalEntry struct {
	ID            int64   `json:"id"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	RefType       string  `json:"ref_type"`
	FirstPartyID  int64   `json:"first_party_id"`
	SecondPartyID int64   `json:"second_party_id"`
	Description   string  `json:"description"`
	Reason        string  `json:"reason"`
	Balance       float64 `json:"balance"`
}

// Raw returns the original journal line as JSON for audit storage.
func (e *JournalEntry) Raw() string {
	raw, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(raw)
}

// JournalPage is one page of a wallet journal plus the total page count from
// the X-Pages header.
type JournalPage struct {
	TotalPages int
	Entries    []JournalEntry
}

// GetCorpJournalPage fetches one page of a corporation wallet division journal.
func (c *Client) GetCorpJournalPage(corporationID int64, division, page int, accessToken string) (*JournalPage, error) {
	url := fmt.Sprintf("%s/corporations/%d/wallets/%d/journal/?datasource=tranquility&page=%d",
		baseURL, corporationID, division, page)
	var entries []JournalEntry
	totalPages, err := c.AuthGetJSON(url, accessToken, &entries)
	if err != nil {
		return nil, fmt.Errorf("corp journal page %d: %w", page, err)
	}
	return &JournalPage{TotalPages: totalPages, Entries: entries}, nil
}

// GetCorpJournal walks every page of a corporation wallet division journal.
// Pages are fetched sequentially: journal polling is a background job and has
// no reason to burst against the ESI error limit.
func (c *Client) GetCorpJournal(corporationID int64, division int, accessToken string) ([]JournalEntry, error) {
	first, err := c.GetCorpJournalPage(corporationID, division, 1, accessToken)
	if err != nil {
		return nil, err
	}
	entries := first.Entries
	for page := 2; page <= first.TotalPages; page++ {
		next, err := c.GetCorpJournalPage(corporationID, division, page, accessToken)
		if err != nil {
			return nil, err
		}
		entries = append(entries, next.Entries...)
	}
	return entries, nil
}

// GetCharacterCorporationID resolves the corporation a character belongs to.
func (c *Client) GetCharacterCorporationID(characterID int64) (int64, error) {
	var info struct {
		CorporationID int64 `json:"corporation_id"`
	}
	url := fmt.Sprintf("%s/characters/%d/?datasource=tranquility", baseURL, characterID)
	if err := c.GetJSON(url, &info); err != nil {
		return 0, fmt.Errorf("character info: %w", err)
	}
	return info.CorporationID, nil
}
