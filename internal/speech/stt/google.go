package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleProvider implements the Transcriber interface using Google Cloud
// Speech-to-Text. Authentication relies on Application Default
// Credentials. The underlying client is created lazily on first use and
// shared across turns.
type GoogleProvider struct {
	language string

	once    sync.Once
	client  *speech.Client
	initErr error
}

// NewGoogle creates a Google Cloud Speech transcriber.
func NewGoogle(language string) *GoogleProvider {
	if strings.TrimSpace(language) == "" {
		language = "en-US"
	}
	return &GoogleProvider{language: language}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) ensureClient(ctx context.Context) (*speech.Client, error) {
	p.once.Do(func() {
		p.client, p.initErr = speech.NewClient(ctx)
	})
	if p.initErr != nil {
		return nil, fmt.Errorf("create speech client: %w", p.initErr)
	}
	return p.client, nil
}

// Close releases the shared client connection.
func (p *GoogleProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Transcribe runs synchronous recognition over the whole blob. Encoding
// is left unspecified so the service reads it from the container header.
func (p *GoogleProvider) Transcribe(ctx context.Context, audio io.Reader, _ TranscribeOptions) (*Transcript, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	audioData, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:     speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			LanguageCode: p.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	return &Transcript{Text: strings.Join(parts, " ")}, nil
}
