package handlers

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/models"
)

type identityResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// GuestHandler issues a token for a fresh anonymous identity.
func (s *Server) GuestHandler(w http.ResponseWriter, r *http.Request) {
	id, token, err := auth.NewGuest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setAuthCookie(w, token)
	writeJSON(w, http.StatusCreated, identityResponse{ID: id.String(), Token: token})
}

func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Accounts {
		http.Error(w, "accounts are not enabled", http.StatusNotImplemented)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		s.Log.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges email and password for a token, also set as the auth cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Accounts {
		http.Error(w, "accounts are not enabled", http.StatusNotImplemented)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidCredentials) {
			s.Log.WithError(err).Error("failed to authenticate user")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}
	id, err := auth.Identity(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, identityResponse{ID: id.String(), Token: token})
}
