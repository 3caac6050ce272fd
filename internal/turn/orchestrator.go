// Package turn runs the conversation pipeline for a single exchange:
// transcribe the input, generate the assistant reply, synthesize it as
// speech, and persist the pair.
package turn

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abdulmalikadebayo/safehaven/internal/metrics"
	"github.com/abdulmalikadebayo/safehaven/internal/reasoning"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/stt"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/tts"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
)

// Input is one user turn. At least one of Audio or Text must be set;
// when both are present the audio is transcribed and the text ignored.
type Input struct {
	Audio          []byte
	AudioName      string
	AudioMediaType string
	Text           string

	// Voice overrides the speaker for this turn only.
	Voice string

	// User is nil for anonymous turns, which are processed but never
	// persisted.
	User *store.User

	// SessionID pins the turn to an existing session. Empty means the
	// user's most recent session, creating one when none exists.
	SessionID string
}

// Result is a completed turn. Audio is nil when synthesis failed; the
// failure itself is carried in SynthesisErr so the transport can report
// it without losing the text reply.
type Result struct {
	Transcript   string
	Reply        string
	Voice        string
	Audio        []byte
	SynthesisErr error
	SessionID    string
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	transcriber  stt.Transcriber
	engine       *reasoning.Engine
	synthesizer  tts.Synthesizer
	store        store.DataStore
	logger       *slog.Logger
	defaultVoice string
	metrics      *metrics.Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithDefaultVoice(voice string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(voice) != "" {
			o.defaultVoice = voice
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator. The store may be nil when persistence is
// disabled entirely, for example in smoke tests.
func New(transcriber stt.Transcriber, engine *reasoning.Engine, synthesizer tts.Synthesizer, st store.DataStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transcriber:  transcriber,
		engine:       engine,
		synthesizer:  synthesizer,
		store:        st,
		logger:       slog.Default(),
		defaultVoice: "tayo",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn runs the pipeline. It returns a *Error for input and
// transcription failures; synthesis and persistence failures degrade
// the result instead of failing the turn.
func (o *Orchestrator) ProcessTurn(ctx context.Context, in Input) (*Result, error) {
	started := time.Now()

	inputKind, err := validate(in)
	if err != nil {
		return nil, err
	}

	transcript, err := o.transcript(ctx, in)
	if err != nil {
		o.metrics.RecordTurn(inputKind, "transcription_failed", time.Since(started))
		return nil, err
	}

	voice := o.resolveVoice(in)
	reply := o.engine.Generate(ctx, nil, transcript)

	res := &Result{
		Transcript: transcript,
		Reply:      reply,
		Voice:      voice,
	}

	audio, synthErr := o.synthesizer.Synthesize(ctx, reply, voice)
	if synthErr != nil {
		o.logger.Warn("speech synthesis failed, returning text only",
			"provider", o.synthesizer.Name(),
			"voice", voice,
			"error", synthErr,
		)
		o.metrics.RecordSynthesisFailure()
		res.SynthesisErr = synthErr
	} else {
		res.Audio = audio
	}

	o.persist(ctx, in, res)

	outcome := "ok"
	if res.SynthesisErr != nil {
		outcome = "no_audio"
	}
	o.metrics.RecordTurn(inputKind, outcome, time.Since(started))
	return res, nil
}

func validate(in Input) (inputKind string, err error) {
	hasAudio := len(in.Audio) > 0
	hasText := strings.TrimSpace(in.Text) != ""

	switch {
	case hasAudio:
		// Audio wins when both are supplied.
		return "audio", nil
	case hasText:
		return "text", nil
	default:
		return "", NewInvalidInput("no audio file or text provided")
	}
}

func (o *Orchestrator) transcript(ctx context.Context, in Input) (string, error) {
	if len(in.Audio) == 0 {
		// Text input is its own transcript, verbatim.
		return in.Text, nil
	}

	tr, err := o.transcriber.Transcribe(ctx, bytes.NewReader(in.Audio), stt.TranscribeOptions{
		Filename:  in.AudioName,
		MediaType: in.AudioMediaType,
	})
	if err != nil {
		return "", NewTranscriptionFailed(err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return "", NewTranscriptionFailed(nil)
	}
	return tr.Text, nil
}

// resolveVoice picks the speaker: per-turn override first, then the
// user's stored preference, then the service default.
func (o *Orchestrator) resolveVoice(in Input) string {
	if v := strings.TrimSpace(in.Voice); v != "" {
		return v
	}
	if in.User != nil && strings.TrimSpace(in.User.VoicePreference) != "" {
		return in.User.VoicePreference
	}
	return o.defaultVoice
}

// persist writes the turn for known users. Failures are logged and
// swallowed: the user already has their reply, and losing history is
// preferable to losing the conversation.
func (o *Orchestrator) persist(ctx context.Context, in Input, res *Result) {
	if in.User == nil || o.store == nil {
		return
	}

	sessionID, err := o.store.AppendTurn(ctx, store.Turn{
		UserID:             in.User.ID,
		SessionID:          in.SessionID,
		Transcript:         res.Transcript,
		UserAudio:          in.Audio,
		UserAudioMediaType: in.AudioMediaType,
		Reply:              res.Reply,
		Voice:              res.Voice,
		ReplyAudio:         res.Audio,
	})
	if err != nil {
		o.logger.Error("failed to persist turn",
			"user_id", in.User.ID,
			"error", err,
		)
		return
	}
	res.SessionID = sessionID
}
