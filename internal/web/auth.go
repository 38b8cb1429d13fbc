package web

import (
	"encoding/json"
	"net/http"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

type signInResponse struct {
	Token string      `json:"token"`
	User  *media.User `json:"user"`
}

// handleSignIn handles POST /api/auth/signin - exchange an identity token
// for a session token
func (s *server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.IDToken == "" {
		s.sendJSONError(w, "idToken is required", http.StatusBadRequest)
		return
	}

	token, user, err := s.auth.SignIn(r.Context(), body.IDToken)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, signInResponse{Token: token, User: user}, http.StatusOK)
}

// handleSignOut handles POST /api/auth/signout - revoke the session
func (s *server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// handleMe handles GET /api/me - the signed-in user's profile
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.currentUser(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, user, http.StatusOK)
}
