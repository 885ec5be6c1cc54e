package main

import (
	"net/http"
	"strings"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r credentialsRequest) valid() bool {
	return strings.TrimSpace(r.Email) != "" && r.Password != ""
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(r, &req) || !req.valid() {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	user, err := s.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(r, &req) || !req.valid() {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.User(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (s *server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeBody(r, &req) || req.Password == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	user, err := s.accounts.ChangePassword(r.Context(), userID(r), req.Password, req.NewPassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
