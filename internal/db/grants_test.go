package db

import (
	"testing"
	"time"
)

func TestInsertGrantBatch_ConflictIsNoOp(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	until := time.Now().Add(24 * time.Hour)
	if err := d.InsertGrantBatch([]Grant{
		{EntityID: 90001, EntityType: EntityCharacter, Level: 1, ValidUntil: &until},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Insert-on-conflict never overwrites an existing grant.
	later := until.Add(240 * time.Hour)
	if err := d.InsertGrantBatch([]Grant{
		{EntityID: 90001, EntityType: EntityCharacter, Level: 5, ValidUntil: &later},
	}); err != nil {
		t.Fatalf("conflicting insert: %v", err)
	}

	g, err := d.GetGrant(90001)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Level != 1 {
		t.Errorf("Level = %d, want 1 (insert must not overwrite)", g.Level)
	}
	if g.ValidUntil == nil || !g.ValidUntil.Equal(until.UTC().Truncate(time.Second)) {
		t.Errorf("ValidUntil = %v, want original %v", g.ValidUntil, until)
	}
}

func TestExtendGrant_FromFutureExpiry(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	now := time.Now().UTC().Truncate(time.Second)
	until := now.Add(10 * 24 * time.Hour)
	d.InsertGrantBatch([]Grant{{EntityID: 90001, EntityType: EntityCharacter, Level: 1, ValidUntil: &until}})

	got, err := d.ExtendGrant(90001, 1, now)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	want := until.AddDate(0, 1, 0)
	if !got.Equal(want) {
		t.Errorf("new expiry = %v, want old expiry + 1 month = %v", got, want)
	}
}

func TestExtendGrant_FromNowWhenLapsed(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	now := time.Now().UTC().Truncate(time.Second)
	stale := now.AddDate(-1, 0, 0)
	d.InsertGrantBatch([]Grant{{EntityID: 90001, EntityType: EntityCharacter, Level: 1, ValidUntil: &stale}})

	got, err := d.ExtendGrant(90001, 1, now)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	want := now.AddDate(0, 1, 0)
	if !got.Equal(want) {
		t.Errorf("new expiry = %v, want now + 1 month = %v (not stale + 1 month)", got, want)
	}
}

func TestExtendGrant_FromNowWhenUnparseable(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	d.InsertGrantBatch([]Grant{{EntityID: 90001, EntityType: EntityCharacter, Level: 1}})
	// Corrupt the stored expiry; extension must degrade to extending from now.
	if _, err := d.sql.Exec(`UPDATE allowed_entities SET valid_until = 'garbage' WHERE entity_id = 90001`); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	got, err := d.ExtendGrant(90001, 2, now)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	want := now.AddDate(0, 2, 0)
	if !got.Equal(want) {
		t.Errorf("new expiry = %v, want now + 2 months = %v", got, want)
	}
}

func TestExpiredGrantsAndDelete(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	d.InsertGrantBatch([]Grant{
		{EntityID: 1, EntityType: EntityCharacter, Level: 1, ValidUntil: &past},
		{EntityID: 2, EntityType: EntityCorporation, Level: 1, ValidUntil: &future},
		{EntityID: 3, EntityType: EntityAlliance, Level: 1}, // no expiry, never purged
	})

	expired, err := d.ExpiredGrants(now)
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	if len(expired) != 1 || expired[0].EntityID != 1 {
		t.Fatalf("expired = %+v, want only entity 1", expired)
	}

	if err := d.DeleteGrant(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if g, _ := d.GetGrant(1); g != nil {
		t.Error("grant 1 should be gone")
	}
}

func TestAccessLevel_IgnoresExpired(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	d.InsertGrantBatch([]Grant{
		{EntityID: 1, EntityType: EntityCharacter, Level: 9, ValidUntil: &past},
		{EntityID: 2, EntityType: EntityCorporation, Level: 2, ValidUntil: &future},
	})

	level, err := d.AccessLevel([]int64{1, 2, 3}, now)
	if err != nil {
		t.Fatalf("access level: %v", err)
	}
	if level != 2 {
		t.Errorf("level = %d, want 2 (expired level-9 grant ignored)", level)
	}
}
