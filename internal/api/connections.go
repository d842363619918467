package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"eve-metro/internal/db"
	"eve-metro/internal/logger"
)

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.db.ListConnections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list connections failed")
		return
	}
	if conns == nil {
		conns = []db.Connection{}
	}
	writeJSON(w, map[string]interface{}{"connections": conns})
}

func (s *Server) handleInsertConnection(w http.ResponseWriter, r *http.Request) {
	var c db.Connection
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if c.SystemFrom == 0 || c.SystemTo == 0 || c.SignatureFrom == "" {
		writeError(w, http.StatusBadRequest, "system_from, system_to and signature_from are required")
		return
	}

	inserted, err := s.db.InsertConnection(&c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "insert failed")
		return
	}
	if !inserted {
		writeJSON(w, map[string]interface{}{
			"inserted": false,
			"message":  "connection with this source signature already exists",
		})
		return
	}
	logger.Info("API", fmt.Sprintf("connection %d -> %d (%s) added by %s", c.SystemFrom, c.SystemTo, c.SignatureFrom, c.CreatedBy))
	writeJSON(w, map[string]interface{}{"inserted": true, "connection": c})
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	var c db.Connection
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c.ID = id
	if err := s.db.UpdateConnection(&c); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, map[string]interface{}{"updated": true})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	if err := s.db.DeleteConnection(id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, map[string]interface{}{"deleted": true})
}

func (s *Server) handleSetCritical(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	var body struct {
		MassCritical bool `json:"mass_critical"`
		TimeCritical bool `json:"time_critical"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.db.SetCritical(id, body.MassCritical, body.TimeCritical); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, map[string]interface{}{"updated": true})
}

func (s *Server) handleSetLastSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	if err := s.db.SetLastSeen(id); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, map[string]interface{}{"updated": true})
}

func (s *Server) handleReportExpired(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	var body struct {
		CharacterID int64 `json:"character_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CharacterID == 0 {
		writeError(w, http.StatusBadRequest, "character_id is required")
		return
	}
	reported, err := s.db.ReportExpired(id, body.CharacterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	if !reported {
		writeJSON(w, map[string]interface{}{
			"reported": false,
			"message":  "already reported by this character",
		})
		return
	}
	writeJSON(w, map[string]interface{}{"reported": true})
}

func (s *Server) handleResetExpired(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}
	if err := s.db.ResetExpired(id); err != nil {
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, map[string]interface{}{"reset": true})
}
