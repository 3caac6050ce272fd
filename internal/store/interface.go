package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// User is a registered caller identity.
type User struct {
	ID              string
	Username        string
	FullName        string
	VoicePreference string
	Consent         bool
	CreatedAt       time.Time
}

// Session groups an identity's messages across turns.
type Session struct {
	ID        string
	Title     string
	StartedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate carries a partial profile change; nil fields are left as-is.
type ProfileUpdate struct {
	VoicePreference *string
	Consent         *bool
}

// Turn is one completed exchange to persist: the user utterance and the
// assistant reply, with their audio blobs when present.
type Turn struct {
	UserID    string
	SessionID string // optional explicit session handle; empty = most recent or new

	Transcript         string
	UserAudio          []byte
	UserAudioMediaType string

	Reply      string
	Voice      string
	ReplyAudio []byte
}

// DataStore is the persistence contract consumed by the orchestrator and
// the HTTP layer.
type DataStore interface {
	CreateUser(ctx context.Context, fullName string) (*User, error)
	UserByFullName(ctx context.Context, fullName string) (*User, error)
	UserByToken(ctx context.Context, token string) (*User, error)
	IssueToken(ctx context.Context, userID string) (string, error)
	UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*User, error)
	RecentSessions(ctx context.Context, userID string, limit int) ([]Session, error)
	AppendTurn(ctx context.Context, t Turn) (string, error)
	Ping(ctx context.Context) error
}
