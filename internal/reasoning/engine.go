package reasoning

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/abdulmalikadebayo/safehaven/internal/metrics"
)

// Fallback replies returned when the upstream model cannot answer. The
// exact wording is part of the product surface: these strings are spoken
// aloud to the user.
const (
	FallbackTimeout   = "I'm having trouble connecting right now. Could you please try again in a moment?"
	FallbackRateLimit = "I need a moment to catch my breath. Please try again shortly."
	FallbackGeneric   = "I'm having a small technical difficulty. Could you please repeat that?"
)

// Fallback reason labels recorded on the metrics counter.
const (
	reasonTimeout   = "timeout"
	reasonRateLimit = "rate_limit"
	reasonGeneric   = "generic"
	reasonEmpty     = "empty_reply"
)

const (
	defaultTimeout    = 30 * time.Minute
	defaultMaxRetries = 2
)

// Engine wraps a Provider with the timeout, retry, and fallback policy.
// Generate never returns an error: when the provider cannot produce a
// reply the engine degrades to a canned response so the caller always
// has speakable text.
type Engine struct {
	provider   Provider
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type EngineOption func(*Engine)

func WithTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine around the given provider.
func NewEngine(provider Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:   provider,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate produces the assistant reply for one turn. Failed attempts
// are retried up to maxRetries times when the failure looks transient;
// after that the reply degrades to a fallback string matched to the
// failure class.
func (e *Engine) Generate(ctx context.Context, history []Exchange, userInput string) string {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.metrics.RecordReasoningRetry()
		}

		reply, err := e.provider.Complete(ctx, Directive, history, userInput)
		if err == nil {
			reply = strings.TrimSpace(reply)
			if reply != "" {
				return reply
			}
			err = errors.New("empty reply from provider")
		}
		lastErr = err

		e.logger.Warn("reasoning attempt failed",
			"provider", e.provider.Name(),
			"attempt", attempt+1,
			"error", err,
		)
		if !isRetryable(err) {
			break
		}
	}

	reply, reason := classifyFailure(lastErr)
	e.logger.Error("reasoning failed, using fallback reply",
		"provider", e.provider.Name(),
		"reason", reason,
		"error", lastErr,
	)
	e.metrics.RecordReasoningFallback(reason)
	return reply
}

// isRetryable reports whether the failure is worth another attempt:
// rate limits, upstream 5xx, timeouts, and transport-level errors.
func isRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 429 || pe.StatusCode >= 500 || pe.StatusCode == 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Transport failures surface as wrapped url.Error values.
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "request:")
}

// classifyFailure maps the final error onto a fallback reply and a
// metrics label.
func classifyFailure(err error) (reply, reason string) {
	if err == nil {
		return FallbackGeneric, reasonGeneric
	}

	msg := strings.ToLower(err.Error())

	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline") {
		return FallbackTimeout, reasonTimeout
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode == 429 {
		return FallbackRateLimit, reasonRateLimit
	}
	if strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429") {
		return FallbackRateLimit, reasonRateLimit
	}

	if strings.Contains(msg, "empty reply") {
		return FallbackGeneric, reasonEmpty
	}
	return FallbackGeneric, reasonGeneric
}
