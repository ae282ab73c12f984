package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/freight-matching/internal/cache"
	"github.com/example/freight-matching/internal/dispatch"
	"github.com/example/freight-matching/internal/matcher"
	"github.com/example/freight-matching/internal/models"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Finder    *matcher.Finder
	Committer *matcher.Committer
	Cache     cache.Cache
	WSReg     *dispatch.WSRegistry
	Ready     []Pinger // optional readiness checks
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.WSReg == nil {
		deps.WSReg = dispatch.NewWSRegistry()
	}
	s := &Server{deps: deps, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/matches", s.handleFindMatches).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/matches/{candidate_id}/confirm", s.handleConfirm).Methods(http.MethodPost)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{party_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type candidateView struct {
	models.Candidate
	Tier      string   `json:"tier"`
	PriceHint *float64 `json:"price_hint,omitempty"`
}

func newCandidateView(c models.Candidate) candidateView {
	v := candidateView{Candidate: c, Tier: tier(c.Score)}
	if p, ok := c.Load.PriceHint(); ok {
		v.PriceHint = &p
	}
	return v
}

type findResponse struct {
	RoutesAvailable int             `json:"routes_available"`
	LoadsSearching  int             `json:"loads_searching"`
	MatchesFound    int             `json:"matches_found"`
	Candidates      []candidateView `json:"candidates"`
}

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	minScore := 0
	if v := r.URL.Query().Get("minScore"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_min_score", "minScore must be an integer in [0,100]")
			return
		}
		minScore = n
	}

	res, err := s.deps.Finder.Find(r.Context(), minScore)
	if err != nil {
		loggerFrom(r.Context(), s.logger).Error("find matches failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "retrieval_failed", "routes or loads could not be read")
		return
	}

	resp := findResponse{
		RoutesAvailable: res.RoutesAvailable,
		LoadsSearching:  res.LoadsSearching,
		MatchesFound:    len(res.Candidates),
		Candidates:      make([]candidateView, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		resp.Candidates = append(resp.Candidates, newCandidateView(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["candidate_id"]
	ctx := r.Context()

	cand, err := s.deps.Cache.Get(ctx, id)
	switch {
	case errors.Is(err, cache.ErrMiss):
		writeError(w, http.StatusNotFound, "unknown_candidate", "candidate not found or expired; run a new search")
		return
	case err != nil:
		loggerFrom(ctx, s.logger).Error("candidate lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "cache_unavailable", "candidate could not be loaded")
		return
	}

	m, err := s.deps.Committer.Commit(ctx, cand)
	if err != nil {
		status, code := commitStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	// Other candidates sharing the route or load are stale now. The confirmed
	// one stays so a repeated confirm reaches the committer and gets a 409.
	evictCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := errors.Join(
		s.deps.Cache.EvictRoute(evictCtx, cand.Route.ID, cand.ID),
		s.deps.Cache.EvictLoad(evictCtx, cand.Load.Source, cand.Load.ID, cand.ID),
	); err != nil {
		loggerFrom(ctx, s.logger).Warn("candidate eviction failed", "error", err)
	}

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range s.deps.Ready {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["party_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		loggerFrom(r.Context(), s.logger).Warn("ws upgrade failed", "error", err)
		return
	}
	// Server read/write timeouts survive the hijack; sessions are long lived.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})
	s.deps.WSReg.Add(id, conn)
	defer s.deps.WSReg.Remove(id, conn)

	// Parties only listen; reading detects the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// commitStatus maps a commit failure to its HTTP status and error code.
func commitStatus(err error) (int, string) {
	switch {
	case errors.Is(err, matcher.ErrInvalidCandidate):
		return http.StatusBadRequest, "invalid_candidate"
	case errors.Is(err, matcher.ErrStaleCandidate):
		return http.StatusConflict, "stale_candidate"
	case errors.Is(err, matcher.ErrPartialCommit):
		return http.StatusInternalServerError, "partial_commit"
	default:
		return http.StatusInternalServerError, "commit_failed"
	}
}

func tier(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 60:
		return "medium"
	default:
		return "low"
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set(errorCodeHeader, code)
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
