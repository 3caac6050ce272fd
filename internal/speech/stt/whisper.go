package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const whisperDefaultBaseURL = "https://api.openai.com/v1"

// WhisperProvider implements the Transcriber interface using OpenAI's
// audio transcription API.
type WhisperProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type WhisperOption func(*WhisperProvider)

func WithWhisperBaseURL(baseURL string) WhisperOption {
	return func(p *WhisperProvider) {
		if strings.TrimSpace(baseURL) != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithWhisperModel(model string) WhisperOption {
	return func(p *WhisperProvider) {
		if strings.TrimSpace(model) != "" {
			p.model = model
		}
	}
}

func WithWhisperHTTPClient(client *http.Client) WhisperOption {
	return func(p *WhisperProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(apiKey string, opts ...WhisperOption) *WhisperProvider {
	p := &WhisperProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    whisperDefaultBaseURL,
		model:      "whisper-1",
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *WhisperProvider) Name() string {
	return "whisper"
}

// Transcribe uploads the blob as a multipart form and returns the text.
func (p *WhisperProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	audioData, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := opts.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	fw, err := createFormFile(mw, "file", filename, opts.MediaType)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", p.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("whisper error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &Transcript{Text: out.Text}, nil
}

// createFormFile is multipart.Writer.CreateFormFile with an explicit
// content type, which the upstream uses as a decoding hint.
func createFormFile(mw *multipart.Writer, field, filename, mediaType string) (io.Writer, error) {
	if mediaType == "" {
		return mw.CreateFormFile(field, filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", mediaType)
	return mw.CreatePart(h)
}
