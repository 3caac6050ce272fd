package reasoning

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface using the Gemini API.
// The client is created lazily on first use and shared across turns.
type GeminiProvider struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGemini creates a Gemini provider.
func NewGemini(apiKey, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{apiKey: strings.TrimSpace(apiKey), model: model}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) ensureClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if p.initErr != nil {
		return nil, fmt.Errorf("create gemini client: %w", p.initErr)
	}
	return p.client, nil
}

// Complete sends the directive as the system instruction, with the
// history and new input as alternating content turns.
func (p *GeminiProvider) Complete(ctx context.Context, directive string, history []Exchange, userInput string) (string, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, conversationContents(history, userInput), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(directive, genai.RoleUser),
		Temperature:       genai.Ptr[float32](completionTemperature),
		MaxOutputTokens:   completionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	return resp.Text(), nil
}

// conversationContents maps the history and the new input onto the
// alternating content turns the API expects.
func conversationContents(history []Exchange, userInput string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, ex := range history {
		role := genai.Role(genai.RoleUser)
		if ex.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(ex.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(userInput, genai.RoleUser))
	return contents
}
