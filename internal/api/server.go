package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"eve-metro/internal/auth"
	"eve-metro/internal/config"
	"eve-metro/internal/db"
	"eve-metro/internal/engine"
	"eve-metro/internal/esi"
	"eve-metro/internal/sde"
)

// Server is the HTTP API that connects the route calculator, the connection
// store, and the subscription ledger.
type Server struct {
	cfg    *config.Config
	esi    *esi.Client
	db     *db.DB
	sealer *auth.Sealer
	sso    *auth.SSOConfig

	mu      sync.RWMutex
	sdeData *sde.Data
	router  *engine.Router
	ready   bool
}

// NewServer creates a Server. The router is attached later via SetSDE once the
// static universe data finishes loading.
func NewServer(cfg *config.Config, esiClient *esi.Client, database *db.DB, sealer *auth.Sealer, ssoConfig *auth.SSOConfig) *Server {
	return &Server{
		cfg:    cfg,
		esi:    esiClient,
		db:     database,
		sealer: sealer,
		sso:    ssoConfig,
	}
}

// SetSDE is called when the static universe data finishes loading.
func (s *Server) SetSDE(data *sde.Data, router *engine.Router) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sdeData = data
	s.router = router
	s.ready = true
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/systems/autocomplete", s.handleAutocomplete)
	mux.HandleFunc("POST /api/route", s.handleRoute)
	mux.HandleFunc("GET /api/connections", s.handleListConnections)
	mux.HandleFunc("POST /api/connections", s.handleInsertConnection)
	mux.HandleFunc("PUT /api/connections/{id}", s.handleUpdateConnection)
	mux.HandleFunc("DELETE /api/connections/{id}", s.handleDeleteConnection)
	mux.HandleFunc("POST /api/connections/{id}/critical", s.handleSetCritical)
	mux.HandleFunc("POST /api/connections/{id}/seen", s.handleSetLastSeen)
	mux.HandleFunc("POST /api/connections/{id}/expired", s.handleReportExpired)
	mux.HandleFunc("POST /api/connections/{id}/reset", s.handleResetExpired)
	mux.HandleFunc("GET /api/access/{entityID}", s.handleAccessLevel)
	mux.HandleFunc("GET /api/watchers", s.handleListWatchers)
	mux.HandleFunc("POST /api/watchers", s.handleRegisterWatcher)
	mux.HandleFunc("DELETE /api/watchers/{characterID}", s.handleDeleteWatcher)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	var systemCount int
	if s.sdeData != nil {
		systemCount = len(s.sdeData.Systems)
	}
	s.mu.RUnlock()

	connections := 0
	if conns, err := s.db.ListConnections(); err == nil {
		connections = len(conns)
	}

	writeJSON(w, map[string]interface{}{
		"sde_loaded":  ready,
		"sde_systems": systemCount,
		"esi_ok":      s.esi.HealthCheck(),
		"connections": connections,
	})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if q == "" || !s.isReady() {
		writeJSON(w, map[string][]string{"systems": {}})
		return
	}

	s.mu.RLock()
	names := s.sdeData.SystemNames
	s.mu.RUnlock()

	var prefix, contains []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, q) {
			prefix = append(prefix, name)
		} else if strings.Contains(lower, q) {
			contains = append(contains, name)
		}
	}

	result := append(prefix, contains...)
	if len(result) > 15 {
		result = result[:15]
	}

	writeJSON(w, map[string][]string{"systems": result})
}
