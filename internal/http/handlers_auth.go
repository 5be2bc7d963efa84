package http

import (
	"net/http"

	"splitperfect/internal/log"
)

// handleGoogleAuth exchanges a verified Google ID token for a session
// token, creating the user on first sign-in.
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	identity, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user, err := s.store.UpsertGoogleUser(r.Context(), identity.GoogleID, identity.Email, identity.Name, identity.Avatar)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user authenticated", log.FieldUserID, user.ID)
	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(*user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), currentUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}
