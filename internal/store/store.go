package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `id, username, full_name, voice_preference, consent, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.VoicePreference, &u.Consent, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a new identity, deriving a unique handle from the
// display name (lowercased, spaces to underscores, numeric suffix on
// collision).
func (s *Store) CreateUser(ctx context.Context, fullName string) (*User, error) {
	base := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fullName)), " ", "_")
	username := base
	for i := 1; ; i++ {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if !exists {
			break
		}
		username = fmt.Sprintf("%s_%d", base, i)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, full_name, consent)
		VALUES ($1, $2, $3, TRUE)
		RETURNING `+userColumns,
		uuid.NewString(), username, strings.TrimSpace(fullName),
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByFullName(ctx context.Context, fullName string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE full_name = $1 ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(fullName),
	)
	return scanUser(row)
}

func (s *Store) UserByToken(ctx context.Context, token string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id = (SELECT user_id FROM auth_tokens WHERE token = $1)`,
		token,
	)
	return scanUser(row)
}

// IssueToken returns the caller's durable bearer token, minting one on
// first issue.
func (s *Store) IssueToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM auth_tokens WHERE user_id = $1`, userID,
	).Scan(&token)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lookup token: %w", err)
	}

	token = "sh_" + randHex(24)
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO auth_tokens (token, user_id) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		token, userID,
	); err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}

	// Re-read in case a concurrent issue won the insert.
	if err := s.pool.QueryRow(ctx,
		`SELECT token FROM auth_tokens WHERE user_id = $1`, userID,
	).Scan(&token); err != nil {
		return "", fmt.Errorf("reread token: %w", err)
	}
	return token, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*User, error) {
	if p.VoicePreference != nil {
		if _, err := s.pool.Exec(ctx,
			`UPDATE users SET voice_preference = $2 WHERE id = $1`,
			userID, *p.VoicePreference,
		); err != nil {
			return nil, fmt.Errorf("update voice preference: %w", err)
		}
	}
	if p.Consent != nil {
		if _, err := s.pool.Exec(ctx,
			`UPDATE users SET consent = $2 WHERE id = $1`,
			userID, *p.Consent,
		); err != nil {
			return nil, fmt.Errorf("update consent: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) RecentSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, started_at, updated_at FROM sessions
		WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.StartedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendTurn records one user/assistant exchange inside a single
// transaction. Session selection is a single statement (most recently
// updated, or a fresh row) rather than query-then-create in application
// code; concurrent first turns can still each mint a session, which is an
// accepted outcome.
func (s *Store) AppendTurn(ctx context.Context, t Turn) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sessionID, err := acquireSession(ctx, tx, t.UserID, t.SessionID)
	if err != nil {
		return "", err
	}

	// clock_timestamp() rather than now(): both inserts share the
	// transaction, and the user message must sort before the reply.
	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, session_id, user_id, role, text, audio, audio_media_type, created_at)
		VALUES ($1, $2, $3, 'user', $4, $5, $6, clock_timestamp())`,
		uuid.NewString(), sessionID, t.UserID, t.Transcript, t.UserAudio, t.UserAudioMediaType,
	); err != nil {
		return "", fmt.Errorf("insert user message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, session_id, user_id, role, text, audio, voice_used, created_at)
		VALUES ($1, $2, $3, 'assistant', $4, $5, $6, clock_timestamp())`,
		uuid.NewString(), sessionID, t.UserID, t.Reply, t.ReplyAudio, t.Voice,
	); err != nil {
		return "", fmt.Errorf("insert assistant message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID,
	); err != nil {
		return "", fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return sessionID, nil
}

func acquireSession(ctx context.Context, tx pgx.Tx, userID, explicitID string) (string, error) {
	if explicitID != "" {
		var id string
		err := tx.QueryRow(ctx,
			`SELECT id FROM sessions WHERE id = $1 AND user_id = $2`,
			explicitID, userID,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			// Unknown handle, or a session belonging to someone else.
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("lookup session: %w", err)
		}
		return id, nil
	}

	var id string
	err := tx.QueryRow(ctx, `
		WITH latest AS (
			SELECT id FROM sessions WHERE user_id = $1
			ORDER BY updated_at DESC LIMIT 1
		), created AS (
			INSERT INTO sessions (id, user_id)
			SELECT $2, $1 WHERE NOT EXISTS (SELECT 1 FROM latest)
			RETURNING id
		)
		SELECT id FROM latest UNION ALL SELECT id FROM created`,
		userID, uuid.NewString(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("acquire session: %w", err)
	}
	return id, nil
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(b)
}
