// Package reasoning produces the assistant reply for a turn. A Provider
// talks to one upstream model API; the Engine wraps a Provider with the
// retry and fallback policy so callers always receive speakable text.
package reasoning

import (
	"context"
	"strconv"
)

// Role values for conversation history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Exchange is one prior message in the conversation, oldest first.
type Exchange struct {
	Role string
	Text string
}

// Provider generates a single reply from an upstream model.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete sends the directive, the prior history, and the new user
	// input to the upstream model and returns its reply text.
	Complete(ctx context.Context, directive string, history []Exchange, userInput string) (string, error)
}

// ProviderError is a structured upstream failure. The engine inspects
// the status code when classifying a failed turn.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return e.Provider + " status " + strconv.Itoa(e.StatusCode) + ": " + e.Message
	}
	return e.Provider + ": " + e.Message
}
