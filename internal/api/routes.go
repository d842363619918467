package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"eve-metro/internal/engine"
	"eve-metro/internal/graph"
	"eve-metro/internal/logger"
)

type routeRequest struct {
	From                string   `json:"from"`
	To                  string   `json:"to"`
	Avoid               []string `json:"avoid"`
	Ship                string   `json:"ship"`
	PreferSafe          bool     `json:"prefer_safe"`
	AvoidExpiredReports bool     `json:"avoid_expired_reports"`
	UseScoutingFeed     bool     `json:"use_scouting_feed"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if !s.isReady() {
		writeError(w, http.StatusServiceUnavailable, "static universe data still loading")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.RLock()
	data := s.sdeData
	router := s.router
	s.mu.RUnlock()

	from, ok := data.SystemID(req.From)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown system %q", req.From))
		return
	}
	to, ok := data.SystemID(req.To)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown system %q", req.To))
		return
	}

	ship := graph.Battleship
	if req.Ship != "" {
		parsed, ok := graph.ParseShipSize(req.Ship)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown ship size %q", req.Ship))
			return
		}
		ship = parsed
	}

	avoid := make([]int32, 0, len(req.Avoid))
	for _, name := range req.Avoid {
		id, ok := data.SystemID(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown avoid system %q", name))
			return
		}
		avoid = append(avoid, id)
	}

	hops, err := router.Calculate(engine.RouteRequest{
		From:                from,
		To:                  to,
		Avoid:               avoid,
		Ship:                ship,
		PreferSafe:          req.PreferSafe,
		AvoidExpiredReports: req.AvoidExpiredReports,
		UseScoutingFeed:     req.UseScoutingFeed,
	})
	if err != nil {
		logger.Error("API", fmt.Sprintf("route %s -> %s: %v", req.From, req.To, err))
		writeError(w, http.StatusBadGateway, "route source unavailable")
		return
	}

	if len(hops) == 0 {
		writeJSON(w, map[string]interface{}{
			"found":   false,
			"message": "no route found",
			"route":   []engine.RouteHop{},
		})
		return
	}
	writeJSON(w, map[string]interface{}{
		"found": true,
		"jumps": len(hops) - 1,
		"route": hops,
	})
}
