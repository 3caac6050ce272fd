package turn

// Kind classifies a turn failure for the transport layer.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindSynthesisFailed     Kind = "synthesis_failed"
)

// Error is a classified turn failure. Message is safe to show to the
// user; Detail carries the underlying cause for logs and diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Detail  error
}

func (e *Error) Error() string {
	if e.Detail != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Detail.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Detail
}

// NewInvalidInput reports a request the pipeline refuses to start.
func NewInvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// NewTranscriptionFailed reports a speech-to-text failure.
func NewTranscriptionFailed(detail error) *Error {
	return &Error{Kind: KindTranscriptionFailed, Message: "could not transcribe audio", Detail: detail}
}
