// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdulmalikadebayo/safehaven/internal/store"
)

// MockStore is an in-memory store.DataStore for handler and pipeline
// tests. All methods are safe for concurrent use. Call counters let
// tests assert how the code under test touched persistence.
type MockStore struct {
	mu sync.Mutex

	users    map[string]*store.User // by ID
	tokens   map[string]string      // token -> user ID
	sessions map[string][]*mockSession
	turns    []store.Turn

	CreateUserCalls int
	AppendTurnCalls int

	// Error overrides; when set the corresponding method fails.
	CreateUserErr error
	AppendTurnErr error
	PingErr       error
}

var _ store.DataStore = (*MockStore)(nil)

type mockSession struct {
	session store.Session
	userID  string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*store.User),
		tokens:   make(map[string]string),
		sessions: make(map[string][]*mockSession),
	}
}

func (m *MockStore) CreateUser(_ context.Context, fullName string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateUserCalls++
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}

	base := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fullName)), " ", "_")
	username := base
	for n := 1; m.usernameTakenLocked(username); n++ {
		username = fmt.Sprintf("%s_%d", base, n)
	}

	u := &store.User{
		ID:              uuid.NewString(),
		Username:        username,
		FullName:        fullName,
		VoicePreference: "Chinenye",
		Consent:         true,
		CreatedAt:       time.Now().UTC(),
	}
	m.users[u.ID] = u
	return cloneUser(u), nil
}

func (m *MockStore) usernameTakenLocked(username string) bool {
	for _, u := range m.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

func (m *MockStore) UserByFullName(_ context.Context, fullName string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.FullName == fullName {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) UserByToken(_ context.Context, token string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MockStore) IssueToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return "", store.ErrNotFound
	}
	for token, owner := range m.tokens {
		if owner == userID {
			return token, nil
		}
	}
	token := "sh_" + uuid.NewString()
	m.tokens[token] = userID
	return token, nil
}

func (m *MockStore) UpdateProfile(_ context.Context, userID string, p store.ProfileUpdate) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.VoicePreference != nil {
		u.VoicePreference = *p.VoicePreference
	}
	if p.Consent != nil {
		u.Consent = *p.Consent
	}
	return cloneUser(u), nil
}

func (m *MockStore) RecentSessions(_ context.Context, userID string, limit int) ([]store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []store.Session
	for _, ms := range m.sessions[userID] {
		out = append(out, ms.session)
	}
	// Newest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) AppendTurn(_ context.Context, t store.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendTurnCalls++
	if m.AppendTurnErr != nil {
		return "", m.AppendTurnErr
	}

	var target *mockSession
	if t.SessionID != "" {
		for _, ms := range m.sessions[t.UserID] {
			if ms.session.ID == t.SessionID {
				target = ms
				break
			}
		}
		if target == nil {
			return "", store.ErrNotFound
		}
	} else {
		// Most recent session, or a new one when the user has none.
		for _, ms := range m.sessions[t.UserID] {
			if target == nil || ms.session.UpdatedAt.After(target.session.UpdatedAt) {
				target = ms
			}
		}
	}

	now := time.Now().UTC()
	if target == nil {
		target = &mockSession{
			session: store.Session{
				ID:        uuid.NewString(),
				Title:     "Conversation",
				StartedAt: now,
			},
			userID: t.UserID,
		}
		m.sessions[t.UserID] = append(m.sessions[t.UserID], target)
	}
	target.session.UpdatedAt = now

	t.SessionID = target.session.ID
	m.turns = append(m.turns, t)
	return target.session.ID, nil
}

func (m *MockStore) Ping(context.Context) error {
	return m.PingErr
}

// Turns returns a copy of every persisted turn.
func (m *MockStore) Turns() []store.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// SessionCount reports how many sessions exist for the user.
func (m *MockStore) SessionCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[userID])
}

// AddUser inserts a prebuilt user and returns a token for it.
func (m *MockStore) AddUser(u *store.User) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = cloneUser(u)
	token := "sh_" + uuid.NewString()
	m.tokens[token] = u.ID
	return token
}

func cloneUser(u *store.User) *store.User {
	c := *u
	return &c
}
