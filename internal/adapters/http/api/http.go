// Package api serves the published collection over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/innerscore/internal/adapters/repository"
	"github.com/okian/innerscore/internal/domain/model"
)

const defaultMaxLimit = 100

// Collection is the read side of the published collection.
type Collection interface {
	All(ctx context.Context) ([]model.Repository, error)
	Get(ctx context.Context, name string) (model.Repository, error)
	TopN(ctx context.Context, n int) ([]Entry, error)
}

// Trigger starts a harvest pass in the background. It reports false when
// a pass is already running.
type Trigger interface {
	Trigger(ctx context.Context) bool
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	reposHandler       *ReposHandler
	leaderboardHandler *LeaderboardHandler
	harvestHandler     *HarvestHandler
}

// NewServer creates a new API server with all handlers. A maxLimit below
// one uses the default.
func NewServer(collection Collection, trigger Trigger, statsProvider StatsProvider, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		reposHandler:       NewReposHandler(collection),
		leaderboardHandler: NewLeaderboardHandler(collection, maxLimit),
		harvestHandler:     NewHarvestHandler(trigger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/repos", MetricsMiddleware(s.reposHandler.HandleList, "repos"))
	mux.HandleFunc("/repos/", MetricsMiddleware(s.reposHandler.HandleGet, "repo"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/harvest", MetricsMiddleware(s.harvestHandler.HandlePostHarvest, "harvest"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}
