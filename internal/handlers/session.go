package handlers

import (
	"net/http"

	"github.com/jason-s-yu/trivia/internal/lobby"
	"github.com/jason-s-yu/trivia/internal/questions"
)

// callerLobby returns the caller's existing lobby. Session endpoints never create one.
func (s *Server) callerLobby(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	id, ok := authenticate(w, r)
	if !ok {
		return nil, false
	}
	l, ok := s.Lobbies.Get(id)
	if !ok {
		s.writeError(w, r, lobby.ErrNoSession)
		return nil, false
	}
	return l, true
}

func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.callerLobby(w, r)
	if !ok {
		return
	}
	snap, err := l.Session()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.callerLobby(w, r)
	if !ok {
		return
	}
	var req struct {
		Option questions.OptionKey `json:"option"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := l.Select(req.Option); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := l.Session()
	if err != nil {
		// the answer finished the session between the two calls
		writeJSON(w, http.StatusOK, l.View())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) HintHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.callerLobby(w, r)
	if !ok {
		return
	}
	visible, err := l.ToggleHint()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hintVisible": visible})
}
