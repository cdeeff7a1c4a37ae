// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/ledger"
	"github.com/jason-s-yu/matchledger/internal/models"
	log "github.com/sirupsen/logrus"
)

// MatchServer exposes the ledger engine over JSON.
type MatchServer struct {
	Engine *ledger.Engine
}

func NewMatchServer(engine *ledger.Engine) *MatchServer {
	return &MatchServer{Engine: engine}
}

// Register mounts every route on mux, wrapping each handler with wrap.
func (s *MatchServer) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /match/record", wrap(http.HandlerFunc(s.RecordMatchHandler)))
	mux.Handle("POST /match/delete", wrap(http.HandlerFunc(s.DeleteMatchHandler)))
	mux.Handle("GET /match/list", wrap(http.HandlerFunc(s.ListMatchesHandler)))
	mux.Handle("POST /player/create", wrap(http.HandlerFunc(s.CreatePlayerHandler)))
	mux.Handle("GET /player/rating", wrap(http.HandlerFunc(s.PlayerRatingHandler)))
}

// RecordMatchHandler records a match submitted by the authenticated player.
//
// Request payload: a MatchSubmission. submitted_by is always the caller.
func (s *MatchServer) RecordMatchHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requirePlayer(w, r)
	if !ok {
		return
	}

	var sub models.MatchSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	sub.SubmittedBy = callerID

	res, err := s.Engine.RecordMatch(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DeleteMatchHandler reverses a match and removes its ledger entry.
//
// Request payload: { "match_id": "some-uuid-string" }
func (s *MatchServer) DeleteMatchHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requirePlayer(w, r)
	if !ok {
		return
	}

	var req struct {
		MatchID string `json:"match_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		http.Error(w, "invalid match_id", http.StatusBadRequest)
		return
	}

	if err := s.Engine.DeleteMatch(r.Context(), matchID, callerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePlayerHandler registers the caller in a group with default ratings.
//
// Request payload: { "group_id": "some-uuid-string" }
func (s *MatchServer) CreatePlayerHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requirePlayer(w, r)
	if !ok {
		return
	}

	var req struct {
		GroupID string `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		http.Error(w, "invalid group_id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.Engine.CreatePlayer(ctx, groupID, callerID); err != nil {
		writeError(w, err)
		return
	}
	ratings, err := s.Engine.PlayerRatings(ctx, groupID, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	log.WithFields(log.Fields{"group_id": groupID, "player_id": callerID}).Info("player registered")
	writeJSON(w, http.StatusCreated, ratings)
}

// PlayerRatingHandler returns a player's singles and doubles state.
func (s *MatchServer) PlayerRatingHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := queryUUID(w, r, "group")
	if !ok {
		return
	}
	playerID, ok := queryUUID(w, r, "player")
	if !ok {
		return
	}

	ratings, err := s.Engine.PlayerRatings(r.Context(), groupID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// ListMatchesHandler returns a group's ledger, oldest first.
func (s *MatchServer) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := queryUUID(w, r, "group")
	if !ok {
		return
	}

	entries, err := s.Engine.Matches(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
