package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abdulmalikadebayo/safehaven/internal/config"
	"github.com/abdulmalikadebayo/safehaven/internal/reasoning"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/stt"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
	"github.com/abdulmalikadebayo/safehaven/internal/testutil"
	"github.com/abdulmalikadebayo/safehaven/internal/turn"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Name() string { return "stub-stt" }

func (s *stubTranscriber) Transcribe(_ context.Context, audio io.Reader, _ stt.TranscribeOptions) (*stt.Transcript, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &stt.Transcript{Text: s.text}, nil
}

type stubSynthesizer struct {
	audio []byte
	err   error
}

func (s *stubSynthesizer) Name() string { return "stub-tts" }

func (s *stubSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Complete(_ context.Context, _ string, _ []reasoning.Exchange, userInput string) (string, error) {
	return "You said: " + userInput, nil
}

type testServer struct {
	store       *testutil.MockStore
	transcriber *stubTranscriber
	synthesizer *stubSynthesizer
	handler     http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:       testutil.NewMockStore(),
		transcriber: &stubTranscriber{text: "I had a rough day"},
		synthesizer: &stubSynthesizer{audio: []byte("mp3-bytes")},
	}

	engine := reasoning.NewEngine(echoProvider{}, reasoning.WithMaxRetries(0))
	orc := turn.New(ts.transcriber, engine, ts.synthesizer, ts.store)

	cfg := config.Config{
		MaxBodyBytes: 12 << 20,
		DefaultVoice: "tayo",
	}
	ts.handler = New(cfg, nil, ts.store, orc, nil).Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ts.do(t, method, path, token, bytes.NewReader(body), "application/json")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRegisterIssuesTokenAndDerivesUsername(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"full_name": "Abdul Malik"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Token string      `json:"token"`
		User  userPayload `json:"user"`
	}
	decodeBody(t, rec, &out)

	if out.Token == "" {
		t.Error("token should be issued on registration")
	}
	if out.User.Username != "abdul_malik" {
		t.Errorf("username = %q, want abdul_malik", out.User.Username)
	}
	if out.User.VoicePreference != "Chinenye" {
		t.Errorf("voice_preference = %q, want Chinenye default", out.User.VoicePreference)
	}

	// The token authenticates /auth/me.
	me := ts.do(t, http.MethodGet, "/api/auth/me", out.Token, nil, "")
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d", me.Code)
	}
	var meOut struct {
		User userPayload `json:"user"`
	}
	decodeBody(t, me, &meOut)
	if meOut.User.ID != out.User.ID {
		t.Errorf("me returned user %q, want %q", meOut.User.ID, out.User.ID)
	}
}

func TestRegisterCollidingNamesGetSuffixedUsernames(t *testing.T) {
	ts := newTestServer(t)

	first := ts.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"full_name": "Ada Obi"})
	second := ts.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"full_name": "Ada Obi"})

	var a, b struct {
		User userPayload `json:"user"`
	}
	decodeBody(t, first, &a)
	decodeBody(t, second, &b)

	if a.User.Username != "ada_obi" {
		t.Errorf("first username = %q, want ada_obi", a.User.Username)
	}
	if b.User.Username != "ada_obi_1" {
		t.Errorf("second username = %q, want ada_obi_1", b.User.Username)
	}
}

func TestRegisterRequiresFullName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"full_name": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var out map[string]string
	decodeBody(t, rec, &out)
	if out["error"] == "" {
		t.Error("error message should be present")
	}
}

func TestLoginUnknownUser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"full_name": "Nobody"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLoginReturnsExistingToken(t *testing.T) {
	ts := newTestServer(t)

	reg := ts.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"full_name": "Ada Obi"})
	var regOut struct {
		Token string `json:"token"`
	}
	decodeBody(t, reg, &regOut)

	login := ts.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"full_name": "Ada Obi"})
	if login.Code != http.StatusOK {
		t.Fatalf("status = %d", login.Code)
	}
	var loginOut struct {
		Token string `json:"token"`
	}
	decodeBody(t, login, &loginOut)
	if loginOut.Token != regOut.Token {
		t.Errorf("login token = %q, want the registration token %q", loginOut.Token, regOut.Token)
	}
}

func TestAuthenticatedRoutesRejectBadTokens(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/api/auth/me", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/auth/me", "sh_bogus", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token: status = %d, want 401", rec.Code)
	}
}

func TestVoiceInputRejectsEmptyRequest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/voice_input", "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var out map[string]string
	decodeBody(t, rec, &out)
	if out["error"] != "no audio file or text provided" {
		t.Errorf("error = %q", out["error"])
	}
}

func TestVoiceInputTextTurnReturnsAudio(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/voice_input", "", map[string]string{"text": "hello there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="response.mp3"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("X-Encoding"); got != "base64" {
		t.Errorf("X-Encoding = %q, want base64", got)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q, want raw audio", rec.Body.String())
	}

	transcript, err := base64.StdEncoding.DecodeString(rec.Header().Get("X-Transcript"))
	if err != nil {
		t.Fatalf("X-Transcript is not base64: %v", err)
	}
	if string(transcript) != "hello there" {
		t.Errorf("X-Transcript = %q, want the verbatim text input", transcript)
	}
	replyText, err := base64.StdEncoding.DecodeString(rec.Header().Get("X-Response-Text"))
	if err != nil {
		t.Fatalf("X-Response-Text is not base64: %v", err)
	}
	if string(replyText) != "You said: hello there" {
		t.Errorf("X-Response-Text = %q", replyText)
	}

	// Anonymous turns leave no trace.
	if ts.store.AppendTurnCalls != 0 {
		t.Errorf("AppendTurnCalls = %d, want 0", ts.store.AppendTurnCalls)
	}
}

func TestVoiceInputMultipartAudioTurn(t *testing.T) {
	ts := newTestServer(t)

	token := ts.store.AddUser(&store.User{FullName: "Ada Obi", Username: "ada_obi", VoicePreference: "Chinenye"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "turn.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("fake-audio")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mw.WriteField("voice", "Emma"); err != nil {
		t.Fatalf("write voice field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/voice_input", token, &buf, mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	transcript, _ := base64.StdEncoding.DecodeString(rec.Header().Get("X-Transcript"))
	if string(transcript) != "I had a rough day" {
		t.Errorf("X-Transcript = %q", transcript)
	}
	if rec.Header().Get("X-Session-ID") == "" {
		t.Error("X-Session-ID should be set for an authenticated turn")
	}

	turns := ts.store.Turns()
	if len(turns) != 1 {
		t.Fatalf("persisted turns = %d, want 1", len(turns))
	}
	if turns[0].Voice != "Emma" {
		t.Errorf("persisted voice = %q, want the per-turn override", turns[0].Voice)
	}
	if string(turns[0].UserAudio) != "fake-audio" {
		t.Errorf("persisted audio = %q", turns[0].UserAudio)
	}
}

func TestVoiceInputSynthesisFailureReturnsJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.synthesizer.err = errors.New("tts down")

	rec := ts.doJSON(t, http.MethodPost, "/api/voice_input", "", map[string]string{"text": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with a text fallback", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var out struct {
		UserQuery    string  `json:"user_query"`
		Transcript   string  `json:"transcript"`
		ResponseText string  `json:"response_text"`
		AudioURL     *string `json:"audio_url"`
		TTSError     string  `json:"tts_error"`
		Message      string  `json:"message"`
	}
	decodeBody(t, rec, &out)

	if out.Message != "TTS service unavailable. Text response provided." {
		t.Errorf("message = %q", out.Message)
	}
	if out.AudioURL != nil {
		t.Errorf("audio_url = %v, want null", out.AudioURL)
	}
	if out.ResponseText != "You said: hello" {
		t.Errorf("response_text = %q", out.ResponseText)
	}
	if out.TTSError == "" {
		t.Error("tts_error should describe the failure")
	}
}

func TestVoiceInputTranscriptionFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.transcriber.err = errors.New("upstream unavailable")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("audio", "turn.webm")
	_, _ = fw.Write([]byte("fake-audio"))
	_ = mw.Close()

	rec := ts.do(t, http.MethodPost, "/api/voice_input", "", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestProfilePatch(t *testing.T) {
	ts := newTestServer(t)
	token := ts.store.AddUser(&store.User{FullName: "Ada Obi", Username: "ada_obi", VoicePreference: "Chinenye"})

	rec := ts.doJSON(t, http.MethodPatch, "/api/profile", token, map[string]any{"voice_preference": "Emma"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out userPayload
	decodeBody(t, rec, &out)
	if out.VoicePreference != "Emma" {
		t.Errorf("voice_preference = %q, want Emma", out.VoicePreference)
	}
}

func TestProfilePatchRejectsUnknownVoice(t *testing.T) {
	ts := newTestServer(t)
	token := ts.store.AddUser(&store.User{FullName: "Ada Obi", Username: "ada_obi"})

	rec := ts.doJSON(t, http.MethodPatch, "/api/profile", token, map[string]any{"voice_preference": "hal9000"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProfilePatchRequiresAField(t *testing.T) {
	ts := newTestServer(t)
	token := ts.store.AddUser(&store.User{FullName: "Ada Obi", Username: "ada_obi"})

	rec := ts.doJSON(t, http.MethodPatch, "/api/profile", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSessionsListsAfterTurns(t *testing.T) {
	ts := newTestServer(t)
	token := ts.store.AddUser(&store.User{FullName: "Ada Obi", Username: "ada_obi"})

	empty := ts.do(t, http.MethodGet, "/api/sessions", token, nil, "")
	if empty.Code != http.StatusOK {
		t.Fatalf("status = %d", empty.Code)
	}
	var emptyOut struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	decodeBody(t, empty, &emptyOut)
	if len(emptyOut.Sessions) != 0 {
		t.Errorf("sessions = %d, want 0 before any turn", len(emptyOut.Sessions))
	}

	if rec := ts.doJSON(t, http.MethodPost, "/api/voice_input", token, map[string]string{"text": "hello"}); rec.Code != http.StatusOK {
		t.Fatalf("turn status = %d", rec.Code)
	}

	after := ts.do(t, http.MethodGet, "/api/sessions", token, nil, "")
	var afterOut struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	decodeBody(t, after, &afterOut)
	if len(afterOut.Sessions) != 1 {
		t.Errorf("sessions = %d, want 1 after a turn", len(afterOut.Sessions))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadyzReflectsStoreHealth(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/readyz", "", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("healthy: status = %d, want 200", rec.Code)
	}

	ts.store.PingErr = errors.New("db down")
	if rec := ts.do(t, http.MethodGet, "/readyz", "", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d, want 503", rec.Code)
	}
}
