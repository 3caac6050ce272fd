package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/abdulmalikadebayo/safehaven/internal/auth"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/tts"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
)

type userPayload struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Username        string    `json:"username"`
	VoicePreference string    `json:"voice_preference"`
	Consent         bool      `json:"consent"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUserPayload(u *store.User) userPayload {
	return userPayload{
		ID:              u.ID,
		FullName:        u.FullName,
		Username:        u.Username,
		VoicePreference: u.VoicePreference,
		Consent:         u.Consent,
		CreatedAt:       u.CreatedAt,
	}
}

type credentialsRequest struct {
	FullName string `json:"full_name"`
}

func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleRegister creates a user from a display name and issues a token.
// The username is derived from the name; collisions get a numeric
// suffix.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	user, err := s.store.CreateUser(r.Context(), fullName)
	if err != nil {
		s.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := s.store.IssueToken(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  toUserPayload(user),
	})
}

// handleLogin resolves an existing user by display name and returns
// their token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	user, err := s.store.UserByFullName(r.Context(), fullName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found, please register first")
			return
		}
		s.logger.Error("failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := s.store.IssueToken(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserPayload(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(p.User)})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, toUserPayload(p.User))
}

// handlePatchProfile applies a partial update. Absent fields are left
// untouched; a voice must be one of the known speakers.
func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req struct {
		VoicePreference *string `json:"voice_preference"`
		Consent         *bool   `json:"consent"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VoicePreference == nil && req.Consent == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if req.VoicePreference != nil && !tts.IsKnownVoice(*req.VoicePreference) {
		writeError(w, http.StatusBadRequest, "unknown voice_preference")
		return
	}

	user, err := s.store.UpdateProfile(r.Context(), p.User.ID, store.ProfileUpdate{
		VoicePreference: req.VoicePreference,
		Consent:         req.Consent,
	})
	if err != nil {
		s.logger.Error("failed to update profile", "user_id", p.User.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(user))
}

const sessionListLimit = 10

// handleSessions lists the caller's most recent sessions, newest first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	sessions, err := s.store.RecentSessions(r.Context(), p.User.ID, sessionListLimit)
	if err != nil {
		s.logger.Error("failed to list sessions", "user_id", p.User.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type sessionPayload struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		StartedAt time.Time `json:"started_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]sessionPayload, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionPayload{
			ID:        sess.ID,
			Title:     sess.Title,
			StartedAt: sess.StartedAt,
			UpdatedAt: sess.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}
