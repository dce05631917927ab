package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/trivia/internal/gateway"
)

func (s *Server) ListPlayersHandler(w http.ResponseWriter, r *http.Request) {
	players, err := s.Gateway.GetAllPlayers(r.Context())
	if err != nil {
		s.Log.WithError(err).Error("failed to list players")
		http.Error(w, "failed to list players", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) ListReadyPlayersHandler(w http.ResponseWriter, r *http.Request) {
	players, err := s.Gateway.GetAllPlayers(r.Context())
	if err != nil {
		s.Log.WithError(err).Error("failed to list players")
		http.Error(w, "failed to list players", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, gateway.ReadyPlayers(players))
}

func (s *Server) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.Gateway.GetAllRounds(r.Context())
	if err != nil {
		s.Log.WithError(err).Error("failed to list rounds")
		http.Error(w, "failed to list rounds", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) GetRoundHandler(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.ParseInt(r.PathValue("startTime"), 10, 64)
	if err != nil {
		http.Error(w, "invalid start time", http.StatusBadRequest)
		return
	}
	round, err := s.Gateway.GetRound(r.Context(), start)
	if err != nil {
		s.Log.WithError(err).Error("failed to get round")
		http.Error(w, "failed to get round", http.StatusBadGateway)
		return
	}
	if round == nil {
		http.Error(w, "round not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// CreateRoundHandler records a round now for the given language. Requires a caller identity.
func (s *Server) CreateRoundHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r); !ok {
		return
	}
	lang, ok := s.readLanguage(w, r)
	if !ok {
		return
	}
	if err := s.Gateway.CreateRound(r.Context(), lang); err != nil {
		s.Log.WithError(err).Error("failed to create round")
		http.Error(w, "failed to create round", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
