// Package stt wraps external speech-to-text providers.
package stt

import (
	"context"
	"io"
)

// Transcriber converts an audio blob into text.
type Transcriber interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe reads the audio stream to completion and returns its
	// transcript. The reader is consumed; callers keep their own copy of
	// the bytes when they need them afterwards.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions carries the blob's declared identity.
type TranscribeOptions struct {
	Filename  string // original upload filename, used as a format hint
	MediaType string // declared media type of the blob
}

// Transcript is the result of transcription.
type Transcript struct {
	Text string
}
