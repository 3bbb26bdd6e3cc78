// Package api serves read-only views of the crawl store over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"league-crawler/internal/report"
	"league-crawler/internal/store"
)

const (
	defaultMatchLimit = 50
	maxMatchLimit     = 500
)

// Reader is the store surface the handlers read from
type Reader interface {
	GetStats(ctx context.Context) (store.Stats, error)
	RecentMatches(ctx context.Context, limit int) ([]store.Match, error)
	GetMatch(ctx context.Context, matchID int64) (*store.Match, error)
	GetParticipations(ctx context.Context, matchID int64) ([]store.Participation, error)
	GetSummoner(ctx context.Context, accountID int64) (*store.Summoner, error)
	ListMatchTiers(ctx context.Context) ([]store.MatchTiers, error)
}

type server struct {
	db     Reader
	logger *log.Entry
}

// MatchDetail is a match with its participation rows
type MatchDetail struct {
	store.Match
	Participations []store.Participation `json:"participations"`
}

// NewRouter builds the HTTP handler.
func NewRouter(db Reader, logger *log.Entry) http.Handler {
	s := &server{db: db, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/matches", s.handleMatches)
		r.Get("/matches/{matchID}", s.handleMatchDetail)
		r.Get("/summoners/{accountID}", s.handleSummoner)
		r.Get("/report/objectives", s.handleObjectives)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultMatchLimit)
	if limit <= 0 || limit > maxMatchLimit {
		s.writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
		return
	}

	matches, err := s.db.RecentMatches(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if matches == nil {
		matches = []store.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *server) handleMatchDetail(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("match id must be an integer"))
		return
	}

	m, err := s.db.GetMatch(r.Context(), matchID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	parts, err := s.db.GetParticipations(r.Context(), matchID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if parts == nil {
		parts = []store.Participation{}
	}
	writeJSON(w, http.StatusOK, MatchDetail{Match: *m, Participations: parts})
}

func (s *server) handleSummoner(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("account id must be an integer"))
		return
	}
	sm, err := s.db.GetSummoner(r.Context(), accountID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sm)
}

func (s *server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	var objectives []report.Objective
	if name := r.URL.Query().Get("objective"); name != "" {
		o, err := report.ParseObjective(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		objectives = append(objectives, o)
	}

	reports, err := report.Build(r.Context(), s.db, objectives...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
