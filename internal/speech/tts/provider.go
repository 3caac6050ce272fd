// Package tts wraps external speech-synthesis providers.
package tts

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Synthesizer converts reply text into an audio blob.
type Synthesizer interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize renders text with the named voice and returns the
	// complete audio blob.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Error is a non-success upstream synthesis outcome. It carries the
// upstream status and whatever detail the body provided.
type Error struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Detail)
}

// CanonicalVoice normalizes a voice selector to the capitalize-first-letter
// form the upstream expects (idera -> Idera, tAYO -> Tayo).
func CanonicalVoice(voice string) string {
	voice = strings.ToLower(strings.TrimSpace(voice))
	if voice == "" {
		return ""
	}
	r := []rune(voice)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// KnownVoices is the synthesis voice catalog.
var KnownVoices = []string{
	"Idera", "Emma", "Zainab", "Osagie", "Wura", "Jude", "Chinenye",
	"Tayo", "Regina", "Femi", "Adaora", "Umar", "Mary", "Nonso",
	"Remi", "Adam",
}

// IsKnownVoice reports whether the selector names a catalog voice,
// ignoring case.
func IsKnownVoice(voice string) bool {
	canonical := CanonicalVoice(voice)
	for _, v := range KnownVoices {
		if v == canonical {
			return true
		}
	}
	return false
}
