// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/lobby"
	"github.com/jason-s-yu/trivia/internal/readiness"
	"github.com/jason-s-yu/trivia/internal/session"
	"github.com/sirupsen/logrus"
)

// Server holds what the HTTP handlers need.
type Server struct {
	Lobbies   *lobby.LobbyStore
	Gateway   gateway.Gateway
	Languages []string
	// Accounts enables /user/create and /user/login; they need Postgres.
	Accounts bool
	Log      logrus.FieldLogger
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HealthHandler)

	mux.HandleFunc("POST /auth/guest", s.GuestHandler)
	mux.HandleFunc("POST /user/create", s.CreateUserHandler)
	mux.HandleFunc("POST /user/login", s.LoginHandler)

	mux.HandleFunc("GET /lobby", s.LobbyHandler)
	mux.HandleFunc("DELETE /lobby", s.LeaveLobbyHandler)
	mux.HandleFunc("POST /lobby/ready", s.ReadyHandler)
	mux.HandleFunc("POST /lobby/language", s.LanguageHandler)
	mux.HandleFunc("POST /lobby/force-start", s.ForceStartHandler)

	mux.HandleFunc("GET /session", s.SessionHandler)
	mux.HandleFunc("POST /session/answer", s.AnswerHandler)
	mux.HandleFunc("POST /session/hint", s.HintHandler)

	mux.HandleFunc("GET /players", s.ListPlayersHandler)
	mux.HandleFunc("GET /players/ready", s.ListReadyPlayersHandler)
	mux.HandleFunc("GET /rounds", s.ListRoundsHandler)
	mux.HandleFunc("GET /rounds/{startTime}", s.GetRoundHandler)
	mux.HandleFunc("POST /rounds", s.CreateRoundHandler)

	return mux
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) validLanguage(code string) bool {
	for _, l := range s.Languages {
		if l == code {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var gwErr *readiness.GatewayError
	switch {
	case errors.Is(err, readiness.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	case errors.Is(err, readiness.ErrEmptyLanguage),
		errors.Is(err, session.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, readiness.ErrLanguageLocked),
		errors.Is(err, session.ErrAnswerLocked),
		errors.Is(err, session.ErrFinished),
		errors.Is(err, lobby.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	http.Error(w, err.Error(), status)
}
