package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/abdulmalikadebayo/safehaven/internal/auth"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
	"github.com/abdulmalikadebayo/safehaven/internal/turn"
)

// turnRequest is the decoded voice_input payload, whichever content type
// carried it.
type turnRequest struct {
	audio          []byte
	audioName      string
	audioMediaType string
	text           string
	voice          string
	sessionID      string
}

// handleVoiceInput runs one conversation turn. The reply is returned as
// an audio stream with the text carried in base64-encoded headers; when
// synthesis fails the reply degrades to a JSON body.
func (s *Server) handleVoiceInput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	req, err := s.parseTurnRequest(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user *store.User
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		user = p.User
	}

	res, err := s.orc.ProcessTurn(r.Context(), turn.Input{
		Audio:          req.audio,
		AudioName:      req.audioName,
		AudioMediaType: req.audioMediaType,
		Text:           req.text,
		Voice:          req.voice,
		User:           user,
		SessionID:      req.sessionID,
	})
	if err != nil {
		s.writeTurnError(w, r, err)
		return
	}

	if res.SessionID != "" {
		w.Header().Set("X-Session-ID", res.SessionID)
	}

	if res.SynthesisErr != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_query":    res.Transcript,
			"transcript":    res.Transcript,
			"response_text": res.Reply,
			"audio_url":     nil,
			"tts_error":     res.SynthesisErr.Error(),
			"message":       "TTS service unavailable. Text response provided.",
		})
		return
	}

	// Header values are base64-encoded so non-ASCII transcript text
	// survives the HTTP header character set.
	enc := base64.StdEncoding.EncodeToString
	w.Header().Set("X-User-Query", enc([]byte(res.Transcript)))
	w.Header().Set("X-Transcript", enc([]byte(res.Transcript)))
	w.Header().Set("X-Response-Text", enc([]byte(res.Reply)))
	w.Header().Set("X-Encoding", "base64")
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="response.mp3"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

func (s *Server) parseTurnRequest(r *http.Request) (*turnRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		return parseMultipartTurn(r)
	case mediaType == "application/json":
		return parseJSONTurn(r)
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return &turnRequest{
			text:      r.PostFormValue("text"),
			voice:     firstNonEmpty(r.PostFormValue("voice"), r.PostFormValue("voice_preference")),
			sessionID: r.PostFormValue("session_id"),
		}, nil
	default:
		return nil, errors.New("unsupported content type")
	}
}

func parseMultipartTurn(r *http.Request) (*turnRequest, error) {
	// Keep small fields in memory; audio spills to disk past 4 MiB.
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		return nil, err
	}

	req := &turnRequest{
		text:      r.FormValue("text"),
		voice:     firstNonEmpty(r.FormValue("voice"), r.FormValue("voice_preference")),
		sessionID: r.FormValue("session_id"),
	}

	file, header, err := r.FormFile("audio")
	switch {
	case err == nil:
		defer file.Close()
		audio, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		req.audio = audio
		req.audioName = header.Filename
		req.audioMediaType = header.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile):
		// Text-only multipart submission.
	default:
		return nil, err
	}
	return req, nil
}

func parseJSONTurn(r *http.Request) (*turnRequest, error) {
	var body struct {
		Text            string `json:"text"`
		Voice           string `json:"voice"`
		VoicePreference string `json:"voice_preference"`
		SessionID       string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.New("invalid request body")
	}
	return &turnRequest{
		text:      body.Text,
		voice:     firstNonEmpty(body.Voice, body.VoicePreference),
		sessionID: body.SessionID,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writeTurnError maps pipeline failures onto HTTP statuses. Input
// problems are the caller's fault; transcription failures point at the
// upstream; anything else is hidden behind a generic 500.
func (s *Server) writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	var te *turn.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case turn.KindInvalidInput:
			writeError(w, http.StatusBadRequest, te.Message)
			return
		case turn.KindTranscriptionFailed:
			s.logger.Warn("transcription failed", "error", err)
			writeError(w, http.StatusBadGateway, te.Message)
			return
		}
	}
	reqID, _ := RequestIDFrom(r.Context())
	s.logger.Error("turn failed", "request_id", reqID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
