package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"eve-metro/internal/db"
	"eve-metro/internal/logger"
)

// handleAccessLevel reports the subscription level for an entity. Corporation
// and alliance ids can be passed as query parameters so a character inherits
// any grant bought for its corp or alliance.
func (s *Server) handleAccessLevel(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathID(r, "entityID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}
	ids := []int64{entityID}
	for _, key := range []string{"corporation_id", "alliance_id"} {
		if v := r.URL.Query().Get(key); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+key)
				return
			}
			ids = append(ids, id)
		}
	}
	level, err := s.db.AccessLevel(ids, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "access lookup failed")
		return
	}
	writeJSON(w, map[string]interface{}{
		"entity_id": entityID,
		"level":     level,
		"active":    level > 0,
	})
}

func (s *Server) handleListWatchers(w http.ResponseWriter, r *http.Request) {
	watchers, err := s.db.ListWatchers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list watchers failed")
		return
	}
	if watchers == nil {
		watchers = []db.WalletWatcher{}
	}
	writeJSON(w, map[string]interface{}{"watchers": watchers})
}

func (s *Server) handleRegisterWatcher(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CharacterID   int64  `json:"character_id"`
		CorporationID int64  `json:"corporation_id"`
		Division      int    `json:"division"`
		RefreshToken  string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CharacterID == 0 || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "character_id and refresh_token are required")
		return
	}

	if body.CorporationID == 0 {
		corpID, err := s.esi.GetCharacterCorporationID(body.CharacterID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "could not resolve corporation")
			return
		}
		body.CorporationID = corpID
	}

	sealed, err := s.sealer.Seal(body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "credential sealing failed")
		return
	}
	watcher := &db.WalletWatcher{
		CharacterID:   body.CharacterID,
		CorporationID: body.CorporationID,
		Division:      body.Division,
		Credential:    sealed,
	}
	if err := s.db.UpsertWatcher(watcher); err != nil {
		writeError(w, http.StatusInternalServerError, "register failed")
		return
	}
	logger.Success("API", fmt.Sprintf("wallet watcher %d registered for corp %d division %d",
		watcher.CharacterID, watcher.CorporationID, watcher.Division))
	writeJSON(w, map[string]interface{}{"registered": true, "watcher": watcher})
}

func (s *Server) handleDeleteWatcher(w http.ResponseWriter, r *http.Request) {
	characterID, ok := pathID(r, "characterID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid character id")
		return
	}
	if err := s.db.DeleteWatcher(characterID); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, map[string]interface{}{"deleted": true})
}
