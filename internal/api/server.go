// Package api exposes the prediction engine over HTTP: predictions, outcome
// reports, the pick ledger and its performance, tournament bracket
// predictions, plus a WebSocket feed of pick updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"match-predictor/internal/bracket"
	"match-predictor/internal/common"
	"match-predictor/internal/engine"
	"match-predictor/internal/sports"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// GameRecorder archives completed games so later predictions see them as
// head-to-head history.
type GameRecorder interface {
	StoreGame(g sports.HistoricalGame) error
}

// Server serves the engine's operations.
type Server struct {
	engine   *engine.Engine
	recorder GameRecorder
	bracket  *bracket.Tracker
	hub      *Hub
	server   *http.Server
	started  time.Time
}

// OutcomeRequest reports the result of a match. Either HomeWon or both
// scores must be given; scores are also archived as history.
type OutcomeRequest struct {
	Match     sports.Match `json:"match"`
	HomeWon   *bool        `json:"homeWon,omitempty"`
	HomeScore *int         `json:"homeScore,omitempty" validate:"omitempty,gte=0"`
	AwayScore *int         `json:"awayScore,omitempty" validate:"omitempty,gte=0"`
}

// PicksQuery filters GET /picks.
type PicksQuery struct {
	Status string `default:"all" validate:"oneof=all open resolved"`
	Limit  int    `default:"100" validate:"min=1,max=1000"`
}

// PerformanceQuery selects an optional breakdown for GET /performance.
type PerformanceQuery struct {
	GroupBy string `validate:"omitempty,oneof=sport type"`
}

// BracketRequest seeds a new bracket. Each region lists its seeded teams.
type BracketRequest struct {
	StartTime time.Time                `json:"startTime"`
	Regions   map[string][]sports.Team `json:"regions" validate:"required,min=1"`
}

type bracketResponse struct {
	Summary bracket.Summary      `json:"summary"`
	Games   []sports.BracketPick `json:"games"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string  `json:"status"`
	Threshold float64 `json:"threshold"`
	Picks     int     `json:"picks"`
	Clients   int     `json:"streamClients"`
	Uptime    string  `json:"uptime"`
}

// NewServer wires the routes and starts the stream hub, which stops with ctx.
// recorder and tracker may be nil; without a tracker /bracket answers 404.
func NewServer(ctx context.Context, eng *engine.Engine, recorder GameRecorder, tracker *bracket.Tracker, port int) *Server {
	s := &Server{
		engine:   eng,
		recorder: recorder,
		bracket:  tracker,
		hub:      NewHub(eng.PerformanceMetrics),
		started:  time.Now(),
	}
	eng.OnPick(s.hub.Publish)
	go s.hub.Run(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/outcome", s.handleOutcome)
	mux.HandleFunc("/picks", s.handlePicks)
	mux.HandleFunc("/performance", s.handlePerformance)
	mux.HandleFunc("/bracket", s.handleBracket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/picks/stream", s.hub)
	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidMatch):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrModelNotReady):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", common.ErrInvalidMatch, err)
	}
	return nil
}

func normalize(m *sports.Match) {
	m.HomeTeam.Record = sports.SanitizeRecord(m.HomeTeam.Record)
	m.AwayTeam.Record = sports.SanitizeRecord(m.AwayTeam.Record)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var m sports.Match
	if err := decodeBody(r, &m); err != nil {
		writeError(w, err)
		return
	}
	if err := sports.Validate(m); err != nil {
		writeError(w, err)
		return
	}
	normalize(&m)

	pred, err := s.engine.PredictMatch(r.Context(), m)
	if err != nil {
		log.Error().Err(err).Str("match_id", m.ID).Msg("prediction failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req OutcomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidMatch, err))
		return
	}
	if err := sports.Validate(req.Match); err != nil {
		writeError(w, err)
		return
	}
	normalize(&req.Match)

	hasScores := req.HomeScore != nil && req.AwayScore != nil
	var homeWon bool
	switch {
	case req.HomeWon != nil:
		homeWon = *req.HomeWon
	case hasScores:
		homeWon = *req.HomeScore > *req.AwayScore
	default:
		writeError(w, fmt.Errorf("%w: homeWon or both scores are required", common.ErrInvalidMatch))
		return
	}

	if err := s.engine.UpdateModel(r.Context(), req.Match, homeWon); err != nil {
		log.Error().Err(err).Str("match_id", req.Match.ID).Msg("model update failed")
		writeError(w, err)
		return
	}

	if s.bracket != nil {
		s.bracket.Resolve(req.Match.ID, homeWon)
	}

	if hasScores && s.recorder != nil {
		g := sports.HistoricalGame{
			ID:         req.Match.ID,
			HomeTeamID: req.Match.HomeTeam.ID,
			AwayTeamID: req.Match.AwayTeam.ID,
			HomeScore:  *req.HomeScore,
			AwayScore:  *req.AwayScore,
			StartTime:  req.Match.StartTime,
		}
		if err := s.recorder.StoreGame(g); err != nil {
			log.Warn().Err(err).Str("match_id", g.ID).Msg("failed to archive game")
		}
	}

	writeJSON(w, http.StatusOK, s.engine.PerformanceMetrics())
}

func parsePicksQuery(r *http.Request) (PicksQuery, error) {
	var q PicksQuery
	if err := defaults.Set(&q); err != nil {
		return q, err
	}
	if v := r.URL.Query().Get("status"); v != "" {
		q.Status = v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (s *Server) handlePicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := parsePicksQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	picks := make([]sports.HighConfidencePick, 0)
	for _, p := range s.engine.HighConfidencePicks() {
		if (q.Status == "open" && p.Resolved()) || (q.Status == "resolved" && !p.Resolved()) {
			continue
		}
		picks = append(picks, p)
		if len(picks) == q.Limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, picks)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	q := PerformanceQuery{GroupBy: r.URL.Query().Get("groupBy")}
	if err := validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	switch q.GroupBy {
	case "sport":
		writeJSON(w, http.StatusOK, s.engine.PerformanceBySport())
	case "type":
		writeJSON(w, http.StatusOK, s.engine.PerformanceByType())
	default:
		writeJSON(w, http.StatusOK, s.engine.PerformanceMetrics())
	}
}

func (s *Server) handleBracket(w http.ResponseWriter, r *http.Request) {
	if s.bracket == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "bracket tracking disabled"})
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req BracketRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidMatch, err))
			return
		}
		if _, err := s.bracket.Generate(r.Context(), req.Regions, req.StartTime); err != nil {
			log.Error().Err(err).Int("regions", len(req.Regions)).Msg("bracket generation failed")
			writeError(w, err)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, bracketResponse{
		Summary: s.bracket.Summary(),
		Games:   s.bracket.Picks(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Threshold: s.engine.Threshold(),
		Picks:     len(s.engine.HighConfidencePicks()),
		Clients:   s.hub.ClientCount(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}
