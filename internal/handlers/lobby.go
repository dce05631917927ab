// internal/handlers/lobby.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/trivia/internal/lobby"
	"github.com/jason-s-yu/trivia/internal/session"
)

type languageRequest struct {
	Language string `json:"language"`
}

// readLanguage decodes {"language": ...} and checks it against the configured list.
func (s *Server) readLanguage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req languageRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return "", false
	}
	if !s.validLanguage(req.Language) {
		http.Error(w, "unsupported language", http.StatusBadRequest)
		return "", false
	}
	return req.Language, true
}

// LobbyHandler returns the caller's lobby view, creating the lobby on first visit.
func (s *Server) LobbyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Lobbies.GetOrCreate(id).View())
}

// LeaveLobbyHandler closes the caller's lobby, abandoning any running session.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := authenticate(w, r)
	if !ok {
		return
	}
	s.Lobbies.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := authenticate(w, r)
	if !ok {
		return
	}
	lang, ok := s.readLanguage(w, r)
	if !ok {
		return
	}
	l := s.Lobbies.GetOrCreate(id)
	if err := l.Register(r.Context(), lang); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.View())
}

func (s *Server) LanguageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := authenticate(w, r)
	if !ok {
		return
	}
	lang, ok := s.readLanguage(w, r)
	if !ok {
		return
	}
	l := s.Lobbies.GetOrCreate(id)
	if err := l.ChangeLanguage(lang); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l.View())
}

// ForceStartHandler starts a session without waiting for the boundary. A player
// who is not ready yet gets 202: the request stays armed until they register.
func (s *Server) ForceStartHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := authenticate(w, r)
	if !ok {
		return
	}
	l := s.Lobbies.GetOrCreate(id)
	err := l.ForceStart()
	switch {
	case err == nil, errors.Is(err, session.ErrNoQuestionsAvailable):
		writeJSON(w, http.StatusOK, l.View())
	case errors.Is(err, lobby.ErrNotReady):
		writeJSON(w, http.StatusAccepted, l.View())
	default:
		s.writeError(w, r, err)
	}
}
