package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const yarnGPTDefaultURL = "https://yarngpt.ai/api/v1/tts"

// YarnGPTProvider implements the Synthesizer interface against the
// YarnGPT HTTP API.
type YarnGPTProvider struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

type YarnGPTOption func(*YarnGPTProvider)

func WithAPIURL(apiURL string) YarnGPTOption {
	return func(p *YarnGPTProvider) {
		if strings.TrimSpace(apiURL) != "" {
			p.apiURL = apiURL
		}
	}
}

func WithHTTPClient(client *http.Client) YarnGPTOption {
	return func(p *YarnGPTProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewYarnGPT creates a YarnGPT synthesizer.
func NewYarnGPT(apiKey string, opts ...YarnGPTOption) *YarnGPTProvider {
	p := &YarnGPTProvider{
		apiKey:     strings.TrimSpace(apiKey),
		apiURL:     yarnGPTDefaultURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *YarnGPTProvider) Name() string {
	return "yarngpt"
}

// Synthesize renders text as speech. The upstream may stream the body in
// chunks; the response is drained fully so callers always see a complete
// blob.
func (p *YarnGPTProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	payload := struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{
		Text:  text,
		Voice: CanonicalVoice(voice),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yarngpt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Detail:     readErrorDetail(resp.Body),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, &Error{Provider: p.Name(), StatusCode: resp.StatusCode, Detail: "empty audio response"}
	}
	return audio, nil
}

// readErrorDetail prefers the structured body when it parses as JSON,
// falling back to the raw text.
func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var structured json.RawMessage
	if json.Unmarshal(raw, &structured) == nil {
		compact := &bytes.Buffer{}
		if json.Compact(compact, structured) == nil {
			return compact.String()
		}
	}
	return strings.TrimSpace(string(raw))
}
