// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/metrics"
	"github.com/talgya/tradesim/internal/persistence"
	"github.com/talgya/tradesim/internal/scenario"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Scenario *scenario.Scenario
	Runner   *engine.Runner
	Journal  *persistence.Journal // Nil when running without a database
	DB       *persistence.DB
	Metrics  *metrics.Collector
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/actors", s.handleActors)
	mux.HandleFunc("/api/v1/actor/", s.handleActorRoutes)
	mux.HandleFunc("/api/v1/notices", s.handleNotices)
	if s.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TRADESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) model() *actor.Model { return s.Scenario.Model }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := s.Runner.Running()
	var status map[string]any
	s.Runner.View(func() {
		m := s.model()
		sched := m.Scheduler()
		status = map[string]any{
			"now":      m.Now().String(),
			"date":     sched.Date(m.Now()),
			"day":      m.Now().Days(),
			"pending":  sched.Pending(),
			"executed": sched.Executed(),
			"actors":   len(m.Actors()),
			"seed":     s.Scenario.Config.Seed,
			"running":  running,
			"speed":    s.Runner.Speed,
		}
		if s.Journal != nil {
			status["run_id"] = s.Journal.RunID()
		}
	})
	writeJSON(w, status)
}

type actorSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Q        int      `json:"q"`
	R        int      `json:"r"`
	Roles    []string `json:"roles"`
	Balance  *float64 `json:"balance,omitempty"`
	Contents int      `json:"contents"`
}

func summarize(a *actor.Actor) actorSummary {
	sum := actorSummary{
		ID:       a.ID(),
		Name:     a.Name(),
		Q:        a.Location().Coord.Q,
		R:        a.Location().Coord.R,
		Contents: a.Store().Len(),
	}
	for _, role := range a.Roles() {
		sum.Roles = append(sum.Roles, role.Kind())
	}
	sort.Strings(sum.Roles)
	if acc := a.Account(); acc != nil {
		b := float64(acc.Balance())
		sum.Balance = &b
	}
	return sum
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	var result []actorSummary
	s.Runner.View(func() {
		for _, a := range s.model().Actors() {
			result = append(result, summarize(a))
		}
	})
	writeJSON(w, result)
}

// handleActorRoutes dispatches between actor detail (GET /api/v1/actor/:id)
// and its content trail (GET /api/v1/actor/:id/content?group=G).
func (s *Server) handleActorRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/actor/"), "/")
	if parts[0] == "" {
		http.Error(w, "missing actor id", http.StatusBadRequest)
		return
	}
	a, ok := s.model().Actor(parts[0])
	if !ok {
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}
	if len(parts) >= 2 && parts[1] == "content" {
		s.handleActorContent(w, r, a)
		return
	}

	type stockView struct {
		Product  string  `json:"product"`
		Actual   float64 `json:"actual"`
		Ordered  float64 `json:"ordered"`
		Reserved float64 `json:"reserved"`
		Virtual  float64 `json:"virtual"`
		UnitCost float64 `json:"unit_cost"`
	}
	var detail struct {
		actorSummary
		Stock  []stockView `json:"stock"`
		Groups []uint64    `json:"groups"`
	}
	s.Runner.View(func() {
		detail.actorSummary = summarize(a)
		for _, name := range a.Ledger().Products() {
			st, _ := a.Ledger().Get(name)
			detail.Stock = append(detail.Stock, stockView{
				Product:  name,
				Actual:   st.Actual,
				Ordered:  st.Ordered,
				Reserved: st.Reserved,
				Virtual:  st.Virtual(),
				UnitCost: float64(st.UnitCost),
			})
		}
		detail.Groups = a.Store().Groups()
	})
	writeJSON(w, detail)
}

type contentView struct {
	Kind      content.Kind    `json:"kind"`
	Direction string          `json:"direction"`
	Content   content.Content `json:"content"`
}

func (s *Server) handleActorContent(w http.ResponseWriter, r *http.Request, a *actor.Actor) {
	var group uint64
	if g := r.URL.Query().Get("group"); g != "" {
		v, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			http.Error(w, "invalid group", http.StatusBadRequest)
			return
		}
		group = v
	}
	kind := content.Kind(r.URL.Query().Get("kind"))

	result := []contentView{}
	s.Runner.View(func() {
		entries := a.Store().Entries()
		if group != 0 {
			entries = a.Store().Group(group)
		}
		for _, e := range entries {
			if kind != "" && e.Content.Kind() != kind {
				continue
			}
			result = append(result, contentView{Kind: e.Content.Kind(), Direction: e.Direction.String(), Content: e.Content})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.Journal == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	notices, err := s.DB.RecentNotices(s.Journal.RunID(), limit)
	if err != nil {
		slog.Error("notices query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, notices)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Runner.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	var speed float64
	s.Runner.View(func() { speed = s.Runner.Speed })
	writeJSON(w, map[string]float64{"speed": speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Journal == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var err error
	var now engine.Time
	s.Runner.View(func() {
		now = s.model().Now()
		err = s.Journal.Checkpoint(s.model())
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"now":     now.String(),
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
