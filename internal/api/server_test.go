package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eve-metro/internal/auth"
	"eve-metro/internal/config"
	"eve-metro/internal/db"
	"eve-metro/internal/engine"
	"eve-metro/internal/esi"
	"eve-metro/internal/sde"
)

// GET /api/status is not tested here because it calls esi.Client.HealthCheck()
// which performs a real HTTP request.

const testSealKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store, err := db.OpenAt(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	data := sde.New()
	data.AddSystem(&sde.SolarSystem{ID: 1, Name: "Jita", Security: 0.95})
	data.AddSystem(&sde.SolarSystem{ID: 2, Name: "Perimeter", Security: 0.9})
	data.AddSystem(&sde.SolarSystem{ID: 3, Name: "Maurasi", Security: 0.85})
	data.AddSystem(&sde.SolarSystem{ID: 10, Name: "Raravoss", Security: -0.1})
	data.AddGate(1, 2)
	data.AddGate(2, 1)
	data.AddGate(2, 3)
	data.AddGate(3, 2)

	cfg := config.Default()
	sealer, err := auth.NewSealer(testSealKey)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	srv := NewServer(cfg, &esi.Client{}, store, sealer, &auth.SSOConfig{})
	srv.SetSDE(data, engine.NewRouter(cfg, data, nil, store))
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHandleRoute_FindsStaticRoute(t *testing.T) {
	srv, _ := testServer(t)

	rec, out := doJSON(t, srv, http.MethodPost, "/api/route", map[string]interface{}{
		"from": "Jita",
		"to":   "Maurasi",
		"ship": "cruiser",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out["found"] != true {
		t.Fatalf("found = %v", out["found"])
	}
	if out["jumps"] != float64(2) {
		t.Errorf("jumps = %v, want 2", out["jumps"])
	}
	route := out["route"].([]interface{})
	first := route[0].(map[string]interface{})
	if first["name"] != "Jita" {
		t.Errorf("first hop = %v", first)
	}
}

func TestHandleRoute_NoRouteIsInlineMessage(t *testing.T) {
	srv, _ := testServer(t)

	rec, out := doJSON(t, srv, http.MethodPost, "/api/route", map[string]interface{}{
		"from": "Jita",
		"to":   "Raravoss",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unreachable destination", rec.Code)
	}
	if out["found"] != false || out["message"] != "no route found" {
		t.Errorf("response = %v", out)
	}
}

func TestHandleRoute_UnknownSystemIsBadRequest(t *testing.T) {
	srv, _ := testServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/route", map[string]interface{}{
		"from": "Jita",
		"to":   "Nowhere",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInsertConnection_DuplicateIsInlineMessage(t *testing.T) {
	srv, _ := testServer(t)

	body := map[string]interface{}{
		"system_from":    3,
		"system_to":      10,
		"signature_from": "ABC-123",
		"signature_to":   "DEF-456",
		"type_from":      "F216",
		"created_by":     "Scout Pilot",
	}
	rec, out := doJSON(t, srv, http.MethodPost, "/api/connections", body)
	if rec.Code != http.StatusOK || out["inserted"] != true {
		t.Fatalf("first insert: status=%d out=%v", rec.Code, out)
	}

	rec, out = doJSON(t, srv, http.MethodPost, "/api/connections", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate insert status = %d, want 200", rec.Code)
	}
	if out["inserted"] != false || out["message"] == nil {
		t.Errorf("duplicate insert response = %v", out)
	}
}

func TestHandleInsertConnection_MakesRouteAvailable(t *testing.T) {
	srv, _ := testServer(t)

	_, out := doJSON(t, srv, http.MethodPost, "/api/connections", map[string]interface{}{
		"system_from":    3,
		"system_to":      10,
		"signature_from": "ABC-123",
		"type_from":      "F216",
	})
	if out["inserted"] != true {
		t.Fatalf("insert failed: %v", out)
	}

	_, route := doJSON(t, srv, http.MethodPost, "/api/route", map[string]interface{}{
		"from": "Jita",
		"to":   "Raravoss",
		"ship": "cruiser",
	})
	if route["found"] != true {
		t.Errorf("route via community connection not found: %v", route)
	}
}

func TestHandleReportExpired_DuplicateBySameCharacterIsNoOp(t *testing.T) {
	srv, store := testServer(t)

	inserted, err := store.InsertConnection(&db.Connection{SystemFrom: 3, SystemTo: 10, SignatureFrom: "ABC-123"})
	if err != nil || !inserted {
		t.Fatalf("seed connection: inserted=%v err=%v", inserted, err)
	}
	conns, _ := store.ListConnections()
	id := conns[0].ID
	path := fmt.Sprintf("/api/connections/%d/expired", id)

	_, out := doJSON(t, srv, http.MethodPost, path, map[string]interface{}{"character_id": 90001})
	if out["reported"] != true {
		t.Fatalf("first report: %v", out)
	}
	_, out = doJSON(t, srv, http.MethodPost, path, map[string]interface{}{"character_id": 90001})
	if out["reported"] != false {
		t.Errorf("duplicate report: %v", out)
	}

	rec, _ := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/connections/%d/reset", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	_, out = doJSON(t, srv, http.MethodPost, path, map[string]interface{}{"character_id": 90001})
	if out["reported"] != true {
		t.Errorf("report after reset: %v", out)
	}
}

func TestHandleAccessLevel_InheritsCorpGrant(t *testing.T) {
	srv, store := testServer(t)
	until := time.Now().Add(24 * time.Hour)
	if err := store.InsertGrantBatch([]db.Grant{
		{EntityID: 98000001, EntityType: db.EntityCorporation, Level: 1, ValidUntil: &until},
	}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	_, out := doJSON(t, srv, http.MethodGet, "/api/access/90001?corporation_id=98000001", nil)
	if out["active"] != true {
		t.Errorf("corp member should be active: %v", out)
	}

	_, out = doJSON(t, srv, http.MethodGet, "/api/access/90002", nil)
	if out["active"] != false {
		t.Errorf("stranger should be inactive: %v", out)
	}
}

func TestHandleRegisterWatcher_SealsCredential(t *testing.T) {
	srv, store := testServer(t)

	rec, out := doJSON(t, srv, http.MethodPost, "/api/watchers", map[string]interface{}{
		"character_id":   90001,
		"corporation_id": 98000001,
		"division":       3,
		"refresh_token":  "very-secret",
	})
	if rec.Code != http.StatusOK || out["registered"] != true {
		t.Fatalf("register: status=%d out=%v", rec.Code, out)
	}

	w, err := store.GetWatcher(90001)
	if err != nil {
		t.Fatalf("GetWatcher: %v", err)
	}
	if w.Credential == "very-secret" || w.Credential == "" {
		t.Errorf("credential should be sealed, got %q", w.Credential)
	}
	plain, err := srv.sealer.Open(w.Credential)
	if err != nil || plain != "very-secret" {
		t.Errorf("unseal = %q, %v", plain, err)
	}

	// The sealed token must not leak through the JSON response.
	if bytes.Contains(rec.Body.Bytes(), []byte("very-secret")) {
		t.Error("refresh token leaked in response body")
	}

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/watchers/90001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if w, _ := store.GetWatcher(90001); w != nil {
		t.Error("watcher should be gone")
	}
}
